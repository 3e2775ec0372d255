package devices

import (
	"sync"

	"github.com/jiangweiming/opendial/pkg/speech"
)

// pcmBuffer is a byte FIFO bridging the audio backend's callback thread
// and the blocking device API. Capture uses lossy writes (oldest audio is
// dropped on overrun, as a real input line would); playback uses bounded
// writes for backpressure.
type pcmBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	data     []byte
	max      int
	overruns int64
	closed   bool
}

func newPCMBuffer(max int) *pcmBuffer {
	b := &pcmBuffer{max: max}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// write appends p, discarding the oldest bytes when the buffer exceeds its
// capacity. Safe to call from the backend callback.
func (b *pcmBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.data = append(b.data, p...)
	if len(b.data) > b.max {
		b.data = b.data[len(b.data)-b.max:]
		b.overruns++
	}
	b.cond.Broadcast()
}

// writeBounded appends p, blocking while the buffer is at capacity.
func (b *pcmBuffer) writeBounded(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) >= b.max && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return speech.ErrDeviceClosed
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return nil
}

// read blocks until data is available or the buffer is closed.
func (b *pcmBuffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.data) == 0 {
		return 0, speech.ErrDeviceClosed
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	b.cond.Broadcast()
	return n, nil
}

// pop copies available bytes without blocking. Safe to call from the
// backend callback.
func (b *pcmBuffer) pop(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(p, b.data)
	b.data = b.data[n:]
	if n > 0 {
		b.cond.Broadcast()
	}
	return n
}

func (b *pcmBuffer) flush() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.cond.Broadcast()
	b.mu.Unlock()
}

// waitEmpty blocks until all buffered bytes have been consumed.
func (b *pcmBuffer) waitEmpty() {
	b.mu.Lock()
	for len(b.data) > 0 && !b.closed {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

func (b *pcmBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *pcmBuffer) overrunCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overruns
}

func (b *pcmBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
