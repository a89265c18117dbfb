// Package audio holds the raw PCM plumbing between capture and segmentation.
package audio

import (
	"sync"

	"speech-to-data/internal/observability/metrics"
)

// ChunkQueue is an unbounded FIFO of raw little-endian 16-bit PCM chunks.
// Producers Push from the capture goroutine; the segmentation engine drains
// everything queued so far in one atomic step.
type ChunkQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	ready  chan struct{}
	m      *metrics.Metrics
}

// NewChunkQueue creates an empty queue. m may be nil.
func NewChunkQueue(m *metrics.Metrics) *ChunkQueue {
	return &ChunkQueue{
		ready: make(chan struct{}, 1),
		m:     m,
	}
}

// Push appends a chunk. Empty chunks are ignored. The queue takes ownership
// of the slice.
func (q *ChunkQueue) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	if q.m != nil {
		q.m.RecordChunkQueued(len(chunk))
	}

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued chunk in arrival order, or nil when
// the queue is empty.
func (q *ChunkQueue) Drain() [][]byte {
	q.mu.Lock()
	out := q.chunks
	q.chunks = nil
	q.mu.Unlock()

	if len(out) > 0 && q.m != nil {
		q.m.RecordDrain(len(out))
	}
	return out
}

// Len returns the number of chunks waiting.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Ready is signalled after a Push. The signal is coalesced; a receiver must
// still Drain to see every chunk.
func (q *ChunkQueue) Ready() <-chan struct{} {
	return q.ready
}

// Concat joins drained chunks into one buffer.
func Concat(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	buf := make([]byte, 0, n)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return buf
}
