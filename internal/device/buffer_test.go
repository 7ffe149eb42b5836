package device

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

func testReading(i int) models.Reading {
	return models.Reading{
		ReadingUID: fmt.Sprintf("uid-%d", i),
		UserID:     1,
		DeviceID:   "D1",
	}
}

func uids(readings []models.Reading) []string {
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.ReadingUID)
	}
	return out
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := NewBuffer(5, logging.NewNop())

	for i := 0; i < 12; i++ {
		b.Push(testReading(i))
		assert.LessOrEqual(t, b.Len(), 5)
	}

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint64(7), b.Dropped())
	// The oldest surviving readings are the last five pushed.
	assert.Equal(t, []string{"uid-7", "uid-8", "uid-9", "uid-10", "uid-11"}, uids(b.Peek(5)))
}

func TestBufferOverflowDropsExactlyOneOldest(t *testing.T) {
	b := NewBuffer(3, logging.NewNop())
	for i := 0; i < 3; i++ {
		b.Push(testReading(i))
	}
	require.Equal(t, 3, b.Len())
	require.Equal(t, uint64(0), b.Dropped())

	b.Push(testReading(3))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, []string{"uid-1", "uid-2", "uid-3"}, uids(b.Peek(3)))
}

func TestBufferPeekDoesNotRemove(t *testing.T) {
	b := NewBuffer(4, logging.NewNop())
	b.Push(testReading(0))
	b.Push(testReading(1))

	assert.Equal(t, []string{"uid-0"}, uids(b.Peek(1)))
	assert.Equal(t, 2, b.Len())
	// Peek beyond the count is truncated.
	assert.Equal(t, []string{"uid-0", "uid-1"}, uids(b.Peek(10)))
	assert.Equal(t, 2, b.Len())
}

func TestBufferEvictFIFO(t *testing.T) {
	b := NewBuffer(5, logging.NewNop())
	for i := 0; i < 5; i++ {
		b.Push(testReading(i))
	}

	assert.Equal(t, 2, b.Evict(2))
	assert.Equal(t, []string{"uid-2", "uid-3", "uid-4"}, uids(b.Peek(5)))

	assert.Equal(t, 3, b.Evict(10))
	assert.Equal(t, 0, b.Len())
}

func TestBufferEvictWrapsAround(t *testing.T) {
	// Exercise ring wraparound: fill, evict, refill past the array end.
	b := NewBuffer(4, logging.NewNop())
	for i := 0; i < 4; i++ {
		b.Push(testReading(i))
	}
	b.Evict(3)
	for i := 4; i < 7; i++ {
		b.Push(testReading(i))
	}

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, []string{"uid-3", "uid-4", "uid-5", "uid-6"}, uids(b.Peek(4)))
}

func TestBufferPopNewest(t *testing.T) {
	b := NewBuffer(4, logging.NewNop())
	b.Push(testReading(0))
	b.Push(testReading(1))

	// Non-matching UID is a no-op.
	assert.False(t, b.PopNewest("uid-0"))
	assert.Equal(t, 2, b.Len())

	assert.True(t, b.PopNewest("uid-1"))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []string{"uid-0"}, uids(b.Peek(2)))

	b.Evict(1)
	assert.False(t, b.PopNewest("uid-0"))
}
