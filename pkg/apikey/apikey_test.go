package apikey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/pkg/apikey"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("format", func(t *testing.T) {
		key, err := apikey.Generate()
		require.NoError(t, err)
		assert.True(t, apikey.Match(key))
		// prefix + 32 bytes hex encoded
		assert.Len(t, key, len(apikey.Prefix)+64)
	})

	t.Run("uniqueness", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)
		for range 1000 {
			key, err := apikey.Generate()
			require.NoError(t, err)
			_, dup := seen[key]
			require.False(t, dup, "generated duplicate key")
			seen[key] = struct{}{}
		}
	})
}

func TestMatch(t *testing.T) {
	t.Parallel()

	assert.True(t, apikey.Match("sk_abc123"))
	assert.False(t, apikey.Match("eyJhbGciOiJIUzI1NiJ9.payload.sig"))
	assert.False(t, apikey.Match(""))
	assert.False(t, apikey.Match("SK_uppercase-prefix-is-not-a-key"))
}
