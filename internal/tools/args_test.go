package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func TestIntArg(t *testing.T) {
	args := guard.Args{
		"float":   float64(42),
		"frac":    1.5,
		"number":  json.Number("7"),
		"text":    " 12 ",
		"blank":   "",
		"garbage": "twelve",
		"bool":    true,
	}

	n, err := intArg(args, "float", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = intArg(args, "number", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = intArg(args, "text", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = intArg(args, "blank", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = intArg(args, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	for _, key := range []string{"frac", "garbage", "bool"} {
		_, err = intArg(args, key, 0)
		assert.EqualError(t, err, key+" must be an integer")
	}
}

func TestStringArg(t *testing.T) {
	args := guard.Args{"branch": "", "path": "/src", "id": float64(3)}
	assert.Equal(t, "main", stringArg(args, "branch", "main"))
	assert.Equal(t, "/src", stringArg(args, "path", "/"))
	assert.Equal(t, "3", stringArg(args, "id", ""))
	assert.Equal(t, "x", stringArg(args, "missing", "x"))
}

func TestBoolArg(t *testing.T) {
	args := guard.Args{"a": true, "b": "true", "c": "False", "e": ""}
	for key, want := range map[string]bool{"a": true, "b": true, "c": false, "e": false, "missing": false} {
		got, err := boolArg(args, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err := boolArg(guard.Args{"active": "yes"}, "active")
	require.EqualError(t, err, "active must be a boolean")

	_, err = boolArg(guard.Args{"active": float64(1)}, "active")
	require.EqualError(t, err, "active must be a boolean")
}

func TestStringsArg(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringsArg(guard.Args{"r": []any{"a", " ", "b", 3}}, "r"))
	assert.Equal(t, []string{"a", "b"}, stringsArg(guard.Args{"r": "a, b,"}, "r"))
	assert.Equal(t, []string{"x"}, stringsArg(guard.Args{"r": []string{"x"}}, "r"))
	assert.Empty(t, stringsArg(guard.Args{}, "r"))
}
