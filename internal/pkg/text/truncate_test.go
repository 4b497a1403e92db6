package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
	// "é" is two bytes; cutting inside it backs off to the rune start
	assert.Equal(t, "a...", Truncate("aé", 2))
}
