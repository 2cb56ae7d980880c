// ABOUTME: Bounded FIFO of decoded blocks awaiting playback
// ABOUTME: Drops new blocks when full instead of blocking the producer
package playback

import (
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

// Buffer is a fixed-capacity ring of blocks in arrival order.
//
// Buffer does no locking of its own. The Scheduler guards it together with
// the playback state so that decisions reading both are atomic.
type Buffer struct {
	blocks   []audio.Block
	head     int
	count    int
	duration time.Duration
}

// NewBuffer creates a buffer holding at most capacity blocks
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{blocks: make([]audio.Block, capacity)}
}

// Enqueue appends a block, or returns ErrBufferFull and leaves the buffer untouched
func (b *Buffer) Enqueue(block audio.Block) error {
	if b.count == len(b.blocks) {
		return ErrBufferFull
	}
	b.blocks[(b.head+b.count)%len(b.blocks)] = block
	b.count++
	b.duration += block.Duration
	return nil
}

// Dequeue removes and returns the oldest block
func (b *Buffer) Dequeue() (audio.Block, error) {
	if b.count == 0 {
		return audio.Block{}, ErrBufferEmpty
	}
	block := b.blocks[b.head]
	b.blocks[b.head] = audio.Block{}
	b.head = (b.head + 1) % len(b.blocks)
	b.count--
	b.duration -= block.Duration
	return block, nil
}

// Len returns the number of queued blocks
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity
func (b *Buffer) Cap() int {
	return len(b.blocks)
}

// Duration returns the total playback length of queued blocks at rate 1.0
func (b *Buffer) Duration() time.Duration {
	return b.duration
}

// Clear discards every queued block
func (b *Buffer) Clear() {
	for i := range b.blocks {
		b.blocks[i] = audio.Block{}
	}
	b.head = 0
	b.count = 0
	b.duration = 0
}
