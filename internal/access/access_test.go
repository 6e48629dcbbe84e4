package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHolds(t *testing.T) {
	assert.True(t, Holds("owner-1", "owner-1"))
	assert.False(t, Holds("owner-1", "owner-2"))

	// Unassigned roles are held by nobody, including an empty caller.
	assert.False(t, Holds("", ""))
	assert.False(t, Holds("", "owner-1"))
}
