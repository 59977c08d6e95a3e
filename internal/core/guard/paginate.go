package guard

// Pagination bounds shared by list operations.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	DefaultItemsLimit = 100
	MaxItemsLimit     = 500
)

// ClampLimit bounds limit to [lo, hi].
func ClampLimit(limit, lo, hi int) int {
	if limit < lo {
		return lo
	}
	if limit > hi {
		return hi
	}
	return limit
}

// ListLimit clamps a list page size to [1, MaxListLimit].
func ListLimit(limit int) int {
	return ClampLimit(limit, 1, MaxListLimit)
}

// ItemsLimit clamps a repository listing size to [1, MaxItemsLimit].
func ItemsLimit(limit int) int {
	return ClampLimit(limit, 1, MaxItemsLimit)
}
