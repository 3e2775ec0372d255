package speech

import (
	"context"
	"io"
	"sync"
	"time"
)

// SpeechBuffer is a growable, append-only byte stream holding one audio
// utterance. It is written by exactly one producer (the capture loop or a
// synthesizer) and read by one consumer, possibly concurrently. Appends
// become visible as whole chunks. Once final, no further bytes may be
// appended.
//
// Concatenation chains a second buffer after this one; the reader crosses
// the boundary transparently and only observes end-of-stream once the last
// segment in the chain is final and fully consumed.
type SpeechBuffer struct {
	format Format

	mu    sync.Mutex
	cond  *sync.Cond
	data  []byte
	pos   int
	final bool
	next  *SpeechBuffer
}

func NewSpeechBuffer(format Format) *SpeechBuffer {
	b := &SpeechBuffer{format: format}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *SpeechBuffer) Format() Format {
	return b.format
}

// Write appends a chunk to the buffer and wakes any blocked reader.
func (b *SpeechBuffer) Write(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final {
		return ErrBufferFinal
	}
	b.data = append(b.data, chunk...)
	b.cond.Broadcast()
	return nil
}

// SetFinal marks this segment as complete. Readers blocked on it are
// released.
func (b *SpeechBuffer) SetFinal() {
	b.mu.Lock()
	b.final = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Final reports whether the whole chain is complete, i.e. no segment will
// ever receive more bytes.
func (b *SpeechBuffer) Final() bool {
	for s := b; s != nil; {
		s.mu.Lock()
		final, next := s.final, s.next
		s.mu.Unlock()
		if !final {
			return false
		}
		s = next
	}
	return true
}

// Read copies up to len(p) bytes of unread audio into p. It blocks while
// no unread data exists and the current segment is still being written,
// and returns io.EOF once the chain is final and fully consumed. It never
// returns bytes past the write cursor.
func (b *SpeechBuffer) Read(p []byte) (int, error) {
	return b.ReadContext(context.Background(), p)
}

// ReadContext is Read with cancellation: a blocked read returns ctx.Err()
// as soon as the context is done, without waiting for the producer.
func (b *SpeechBuffer) ReadContext(ctx context.Context, p []byte) (int, error) {
	s := b
	for {
		seg := s
		stop := context.AfterFunc(ctx, func() {
			seg.mu.Lock()
			seg.cond.Broadcast()
			seg.mu.Unlock()
		})

		seg.mu.Lock()
		for seg.pos == len(seg.data) && !seg.final && ctx.Err() == nil {
			seg.cond.Wait()
		}
		if err := ctx.Err(); err != nil {
			seg.mu.Unlock()
			stop()
			return 0, err
		}
		if seg.pos < len(seg.data) {
			n := copy(p, seg.data[seg.pos:])
			seg.pos += n
			seg.mu.Unlock()
			stop()
			return n, nil
		}
		// Segment exhausted and final: cross into the next one.
		next := seg.next
		seg.mu.Unlock()
		stop()
		if next == nil {
			return 0, io.EOF
		}
		s = next
	}
}

// Concatenate appends other after the last segment of this chain. The two
// buffers must share the same format.
func (b *SpeechBuffer) Concatenate(other *SpeechBuffer) error {
	if other.format != b.format {
		return ErrFormatMismatch
	}
	s := b
	for {
		s.mu.Lock()
		if s.next == nil {
			s.next = other
			s.cond.Broadcast()
			s.mu.Unlock()
			return nil
		}
		next := s.next
		s.mu.Unlock()
		s = next
	}
}

// Drained reports whether every segment is final and fully read, i.e. a
// further Read would return io.EOF.
func (b *SpeechBuffer) Drained() bool {
	for s := b; s != nil; {
		s.mu.Lock()
		done := s.final && s.pos == len(s.data)
		next := s.next
		s.mu.Unlock()
		if !done {
			return false
		}
		s = next
	}
	return true
}

// Len returns the total number of bytes written across the chain so far.
func (b *SpeechBuffer) Len() int {
	total := 0
	for s := b; s != nil; {
		s.mu.Lock()
		total += len(s.data)
		next := s.next
		s.mu.Unlock()
		s = next
	}
	return total
}

// Bytes returns a copy of all audio written to the chain so far,
// independent of the read cursor.
func (b *SpeechBuffer) Bytes() []byte {
	out := make([]byte, 0, b.Len())
	for s := b; s != nil; {
		s.mu.Lock()
		out = append(out, s.data...)
		next := s.next
		s.mu.Unlock()
		s = next
	}
	return out
}

// Duration returns the play time of the audio written so far.
func (b *SpeechBuffer) Duration() time.Duration {
	bps := b.format.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(bps)
}
