package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureID(t *testing.T) {
	id, err := GenerateSecureID("vsess", 24)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "vsess_"))

	body := strings.TrimPrefix(id, "vsess_")
	assert.Len(t, body, 24)
	for _, r := range body {
		assert.True(t, strings.ContainsRune(charset, r), "unexpected rune %q", r)
	}

	other, err := GenerateSecureID("vsess", 24)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestFrameIDIsDatePartitioned(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)

	id := FrameID(now)
	parts := strings.SplitN(id, "/", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "2024-03-10", parts[0])
	assert.Len(t, parts[1], 36)
	assert.NotEqual(t, id, FrameID(now))
}
