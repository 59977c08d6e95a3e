package guard

import "sort"

const bytesPerMB = 1024 * 1024

// Args is the named-argument bag passed to a guarded operation.
type Args map[string]any

// MaxPayloadBytes converts a megabyte budget to bytes.
func MaxPayloadBytes(maxMB float64) int {
	return int(maxMB * bytesPerMB)
}

// CheckPayload rejects args when any string value is longer, in UTF-8 bytes,
// than maxMB megabytes. Only top-level string values are inspected and the
// first offender (in key order) is reported. A non-positive budget disables
// the check.
func CheckPayload(args Args, maxMB float64) error {
	if maxMB <= 0 || len(args) == 0 {
		return nil
	}
	limit := MaxPayloadBytes(maxMB)

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := args[key].(string)
		if !ok {
			continue
		}
		if len(value) > limit {
			return payloadTooLarge(key, maxMB)
		}
	}
	return nil
}
