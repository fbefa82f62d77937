package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecretRoundTrip(t *testing.T) {
	h, err := HashSecret("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", h)
	assert.True(t, CheckSecret("123456", h))
	assert.False(t, CheckSecret("123457", h))
	assert.False(t, CheckSecret("123456", "not-a-hash"))
}

func TestRandomDigitsRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		s, err := RandomDigits(100000, 999999)
		require.NoError(t, err)
		require.Len(t, s, 6)
		n, err := strconv.Atoi(s)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
