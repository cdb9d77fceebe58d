package eventid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsValidAndOrdered(t *testing.T) {
	first := New()
	second := New()

	assert.True(t, IsValid(first))
	assert.True(t, IsValid(second))
	assert.Less(t, first, second)

	parsed, err := Parse(first)
	require.NoError(t, err)
	assert.NotZero(t, parsed.Time())
}

func TestIsValidRejectsForeignIDs(t *testing.T) {
	assert.False(t, IsValid("jan_01hx0000000000000000000000"))
	assert.False(t, IsValid("evt_not-a-ulid"))
	assert.False(t, IsValid(""))
}
