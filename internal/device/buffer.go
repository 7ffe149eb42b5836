// Package device implements the on-device side of the ingestion protocol:
// a bounded reading buffer, the uploader, and the cooperative sampling loop.
package device

import (
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

// Buffer is a bounded FIFO of readings awaiting confirmed upload, backed by
// a ring so push and evict are O(1). It is not safe for concurrent use; the
// agent's single loop is the only caller.
type Buffer struct {
	entries []models.Reading
	head    int
	count   int
	dropped uint64
	logger  *logging.Logger
}

func NewBuffer(capacity int, logger *logging.Logger) *Buffer {
	return &Buffer{
		entries: make([]models.Reading, capacity),
		logger:  logger,
	}
}

// Push appends a reading. At capacity the single oldest unconfirmed reading
// is dropped to make room: deliberate data loss, counted and logged, never
// silent.
func (b *Buffer) Push(r models.Reading) {
	if b.count == len(b.entries) {
		b.head = (b.head + 1) % len(b.entries)
		b.count--
		b.dropped++
		b.logger.Warnf("Buffer full, dropped oldest reading (%d readings lost so far)", b.dropped)
	}
	b.entries[(b.head+b.count)%len(b.entries)] = r
	b.count++
}

// Peek returns copies of up to n oldest readings without removing them.
func (b *Buffer) Peek(n int) []models.Reading {
	if n > b.count {
		n = b.count
	}
	out := make([]models.Reading, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.entries[(b.head+i)%len(b.entries)])
	}
	return out
}

// Evict removes up to n oldest readings and returns how many were removed.
// Only called once the server has acknowledged them.
func (b *Buffer) Evict(n int) int {
	if n > b.count {
		n = b.count
	}
	b.head = (b.head + n) % len(b.entries)
	b.count -= n
	return n
}

// PopNewest removes the most recently pushed reading if it matches uid.
// Used by the fast path, whose acked reading must never re-enter the batch
// path; batch eviction stays strictly FIFO via Evict.
func (b *Buffer) PopNewest(uid string) bool {
	if b.count == 0 {
		return false
	}
	last := (b.head + b.count - 1) % len(b.entries)
	if b.entries[last].ReadingUID != uid {
		return false
	}
	b.count--
	return true
}

func (b *Buffer) Len() int { return b.count }

func (b *Buffer) Cap() int { return len(b.entries) }

// Dropped reports how many readings overflow has discarded since start.
func (b *Buffer) Dropped() uint64 { return b.dropped }
