package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	assert.Equal(t, HashCode([]byte("788788")), HashCode([]byte("788788")))
	assert.NotEqual(t, HashCode([]byte("a")), HashCode([]byte("b")))
}
