package book

import "truex-fixmd/pkg/types"

// snapshotBuffer is a bounded FIFO of the most recently published
// snapshots, used for volatility scoring. It is a fixed-size ring so
// appends are O(1) regardless of window size, the same shape as the
// reference FIX client's trade ring buffer (head/count/maxSize, oldest
// overwritten in place rather than shifting a slice).
type snapshotBuffer struct {
	entries []*types.OrderBookSnapshot
	head    int
	count   int
	maxSize int
}

func newSnapshotBuffer(maxSize int) *snapshotBuffer {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &snapshotBuffer{
		entries: make([]*types.OrderBookSnapshot, maxSize),
		maxSize: maxSize,
	}
}

// push appends a snapshot, evicting the oldest entry once the buffer is
// full.
func (b *snapshotBuffer) push(s *types.OrderBookSnapshot) {
	idx := (b.head + b.count) % b.maxSize
	if b.count < b.maxSize {
		b.entries[idx] = s
		b.count++
	} else {
		b.entries[b.head] = s
		b.head = (b.head + 1) % b.maxSize
	}
}

// recent returns the buffered snapshots in chronological (oldest-first)
// order, copied into a slice allocated once at its final length.
func (b *snapshotBuffer) recent() []*types.OrderBookSnapshot {
	if b.count == 0 {
		return nil
	}
	out := make([]*types.OrderBookSnapshot, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.head+i)%b.maxSize]
	}
	return out
}
