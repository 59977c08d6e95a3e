package guard

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPayload(t *testing.T) {
	const maxMB = 0.001 // 1048 bytes
	limit := MaxPayloadBytes(maxMB)

	t.Run("WithinBudget", func(t *testing.T) {
		err := CheckPayload(Args{"title": strings.Repeat("a", limit)}, maxMB)
		require.NoError(t, err)
	})

	t.Run("OverBudget", func(t *testing.T) {
		err := CheckPayload(Args{
			"project":     "Fabrikam",
			"description": strings.Repeat("a", limit+1),
		}, maxMB)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrPayloadTooLarge))

		var failure *Failure
		require.ErrorAs(t, err, &failure)
		require.Equal(t, KindPayloadTooLarge, failure.Kind)
		require.Equal(t, "description", failure.Argument)
		require.Equal(t, maxMB, failure.MaxPayloadMB)
	})

	t.Run("CountsUTF8Bytes", func(t *testing.T) {
		// Each rune is three bytes, so rune count stays under the limit while
		// the encoded size does not.
		value := strings.Repeat("€", limit/3+1)
		require.Less(t, len([]rune(value)), limit)
		require.Error(t, CheckPayload(Args{"comment": value}, maxMB))
	})

	t.Run("IgnoresNonTextualArguments", func(t *testing.T) {
		err := CheckPayload(Args{
			"reviewers":    []string{strings.Repeat("a", limit+1)},
			"work_item_id": 42,
		}, maxMB)
		require.NoError(t, err)
	})

	t.Run("ReportsFirstOffenderInKeyOrder", func(t *testing.T) {
		big := strings.Repeat("a", limit+1)
		err := CheckPayload(Args{"title": big, "description": big}, maxMB)
		var failure *Failure
		require.ErrorAs(t, err, &failure)
		require.Equal(t, "description", failure.Argument)
	})

	t.Run("NonPositiveBudgetDisablesCheck", func(t *testing.T) {
		require.NoError(t, CheckPayload(Args{"title": strings.Repeat("a", 4096)}, 0))
	})
}

func TestMaxPayloadBytes(t *testing.T) {
	require.Equal(t, 1048576, MaxPayloadBytes(1))
	require.Equal(t, 524288, MaxPayloadBytes(0.5))
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 1, ListLimit(0))
	require.Equal(t, 1, ListLimit(-5))
	require.Equal(t, 50, ListLimit(50))
	require.Equal(t, 200, ListLimit(1000))
	require.Equal(t, 500, ItemsLimit(501))
	require.Equal(t, 100, ItemsLimit(100))
	require.Equal(t, 3, ClampLimit(7, 1, 3))
}
