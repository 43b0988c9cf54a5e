package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	l := New(100)
	assert.Equal(t, 100, l.Len())
	for i := 0; i < 100; i++ {
		assert.False(t, l.Left(i))
		assert.False(t, l.Right(i))
	}
	l.SetLeft(0)
	l.SetRight(63) // crosses the first word boundary: bit 127
	l.SetLeft(99)
	assert.True(t, l.Left(0))
	assert.False(t, l.Right(0))
	assert.True(t, l.Right(63))
	assert.False(t, l.Left(63))
	assert.True(t, l.Left(99))
	// Neighbors are untouched.
	assert.False(t, l.Left(1))
	assert.False(t, l.Right(98))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, 8, New(1).Bytes())
	assert.Equal(t, 8, New(32).Bytes())
	assert.Equal(t, 16, New(33).Bytes())
}
