package duel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceSentinels(t *testing.T) {
	assert.Equal(t, uint32(0), newU32Cell().Get())
	assert.Equal(t, int32(-1), newI32Cell().Get())
	assert.Equal(t, false, newBoolCell().Get())

	cell := newU32Cell()
	assert.True(t, cell.AtSentinel())
	assert.True(t, cell.AtTail())
	assert.Equal(t, 1, cell.Len())
}

func TestSequenceAppendAndRewind(t *testing.T) {
	cell := newU32Cell()

	cell.AddOrNext(true, 100)
	assert.Equal(t, uint32(100), cell.Get())
	cell.AddOrNext(true, 200)
	assert.Equal(t, uint32(200), cell.Get())
	assert.Equal(t, 3, cell.Len())

	cell.Prev()
	assert.Equal(t, uint32(100), cell.Get())
	cell.Prev()
	assert.Equal(t, uint32(0), cell.Get())
	assert.True(t, cell.AtSentinel())

	// Re-walking recorded history advances without appending.
	cell.AddOrNext(false, 999)
	assert.Equal(t, uint32(100), cell.Get())
	cell.AddOrNext(false, 999)
	assert.Equal(t, uint32(200), cell.Get())
	assert.Equal(t, 3, cell.Len())
}

func TestSequenceMisusePanics(t *testing.T) {
	cell := newI32Cell()
	assert.Panics(t, func() { cell.Prev() })
	assert.Panics(t, func() { cell.AddOrNext(false, 0) })

	cell.AddOrNext(true, 7)
	assert.Panics(t, func() { cell.AddOrNext(false, 0) })
	cell.Prev()
	assert.Panics(t, func() { cell.Prev() })
}
