package keyhash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameDeterministicAndFixedWidth(t *testing.T) {
	keys := []string{
		"a",
		"temperature/c/0/0/0",
		"temperature/c/12/7/3",
		"group/.zarray",
		"deeply/nested/path/with/many/segments",
	}
	for _, k := range keys {
		n1, n2 := Name(k), Name(k)
		assert.Equal(t, n1, n2, "hash of %q must be stable", k)
		assert.Len(t, n1, 16, "name of %q must be 16 hex digits", k)
	}
}

func TestNameDistinguishesKeys(t *testing.T) {
	assert.NotEqual(t, Name("a/c/0/0"), Name("a/c/0/1"))
	assert.NotEqual(t, Name("a"), Name("b"))
}

func TestSumMatchesName(t *testing.T) {
	assert.NotZero(t, Sum("chunk/c/1/2/3"))
	assert.Equal(t, fmt.Sprintf("%016x", Sum("chunk/c/1/2/3")), Name("chunk/c/1/2/3"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("a"))
	assert.True(t, Valid("path/like/key"))
	assert.True(t, Valid(".zarray"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("bad\x00key"))
}
