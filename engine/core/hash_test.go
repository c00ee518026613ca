package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableJSONBytes(t *testing.T) {
	t.Run("Should sort object keys recursively", func(t *testing.T) {
		raw, err := StableJSONBytes(map[string]any{
			"b": 2,
			"a": map[string]any{"z": true, "y": "v"},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"y":"v","z":true},"b":2}`, string(raw))
	})

	t.Run("Should preserve array order", func(t *testing.T) {
		raw, err := StableJSONBytes([]any{3, 1, 2})
		require.NoError(t, err)
		assert.Equal(t, `[3,1,2]`, string(raw))
	})

	t.Run("Should normalize typed maps and structs", func(t *testing.T) {
		type payload struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		a, err := StableJSONBytes(payload{Name: "x", Count: 1})
		require.NoError(t, err)
		b, err := StableJSONBytes(map[string]string{"name": "x"})
		require.NoError(t, err)
		assert.Equal(t, `{"count":1,"name":"x"}`, string(a))
		assert.Equal(t, `{"name":"x"}`, string(b))
	})
}

func TestHashOf(t *testing.T) {
	t.Run("Should be stable under key ordering", func(t *testing.T) {
		a, err := HashOf(map[string]any{"x": 1, "y": []any{"a", "b"}})
		require.NoError(t, err)
		b, err := HashOf(map[string]any{"y": []any{"a", "b"}, "x": 1})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Should differ for different values", func(t *testing.T) {
		a, err := HashOf(map[string]any{"x": 1})
		require.NoError(t, err)
		b, err := HashOf(map[string]any{"x": 2})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should reject values that cannot encode to JSON", func(t *testing.T) {
		_, err := HashOf(func() {})
		assert.Error(t, err)
	})
}
