package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func testFormat() Format {
	return Format{SampleRate: 16000, BitDepth: 16, Channels: 1}
}

func TestSpeechBufferWriteRead(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	if err := sb.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	p := make([]byte, 2)
	n, err := sb.Read(p)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if n != 2 || p[0] != 1 || p[1] != 2 {
		t.Errorf("expected bytes [1 2], got %v", p[:n])
	}

	n, err = sb.Read(p)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 more bytes, got %d (%v)", n, err)
	}
}

func TestSpeechBufferReadBlocksUntilWrite(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())

	got := make(chan []byte, 1)
	go func() {
		p := make([]byte, 4)
		n, _ := sb.Read(p)
		got <- p[:n]
	}()

	select {
	case <-got:
		t.Fatal("read returned before any data was written")
	case <-time.After(20 * time.Millisecond):
	}

	sb.Write([]byte{9, 8})

	select {
	case p := <-got:
		if !bytes.Equal(p, []byte{9, 8}) {
			t.Errorf("expected [9 8], got %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not return after write")
	}
}

func TestSpeechBufferFinalEndsStream(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	sb.Write([]byte{1})
	sb.SetFinal()

	p := make([]byte, 4)
	n, err := sb.Read(p)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 byte, got %d (%v)", n, err)
	}

	_, err = sb.Read(p)
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after final buffer is drained, got %v", err)
	}
}

func TestSpeechBufferWriteAfterFinal(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	sb.SetFinal()
	if err := sb.Write([]byte{1}); !errors.Is(err, ErrBufferFinal) {
		t.Errorf("expected ErrBufferFinal, got %v", err)
	}
}

func TestReadContextCanceledWhileBlocked(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan error, 1)
	go func() {
		p := make([]byte, 4)
		_, err := sb.ReadContext(ctx, p)
		got <- err
	}()

	select {
	case <-got:
		t.Fatal("read returned before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-got:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not return after cancellation")
	}
}

func TestConcatenateFormatMismatch(t *testing.T) {
	a := NewSpeechBuffer(Format{SampleRate: 16000, BitDepth: 16, Channels: 1})
	b := NewSpeechBuffer(Format{SampleRate: 44100, BitDepth: 16, Channels: 1})
	if err := a.Concatenate(b); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("expected ErrFormatMismatch, got %v", err)
	}
}

func TestConcatenateReadsUnreadTailThenAppended(t *testing.T) {
	a := NewSpeechBuffer(testFormat())
	a.Write([]byte{1, 2, 3, 4})

	// Consume the first half of a before concatenating.
	p := make([]byte, 2)
	a.Read(p)

	b := NewSpeechBuffer(testFormat())
	b.Write([]byte{5, 6})
	if err := a.Concatenate(b); err != nil {
		t.Fatalf("unexpected concatenate error: %v", err)
	}

	a.SetFinal()
	if a.Final() {
		t.Error("chain must not report final while the appended buffer is still open")
	}
	b.SetFinal()
	if !a.Final() {
		t.Error("chain should report final once every segment is final")
	}

	var rest []byte
	buf := make([]byte, 3)
	for {
		n, err := a.Read(buf)
		rest = append(rest, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
	}
	if !bytes.Equal(rest, []byte{3, 4, 5, 6}) {
		t.Errorf("expected remaining sequence [3 4 5 6], got %v", rest)
	}
	if !a.Drained() {
		t.Error("chain should be drained after reading everything")
	}
}

func TestConcatenateChainsOntoTail(t *testing.T) {
	a := NewSpeechBuffer(testFormat())
	b := NewSpeechBuffer(testFormat())
	c := NewSpeechBuffer(testFormat())
	a.Concatenate(b)
	a.Concatenate(c)

	for _, sb := range []*SpeechBuffer{a, b, c} {
		sb.Write([]byte{7})
		sb.SetFinal()
	}
	if got := a.Len(); got != 3 {
		t.Errorf("expected 3 bytes across the chain, got %d", got)
	}
	if !bytes.Equal(a.Bytes(), []byte{7, 7, 7}) {
		t.Errorf("unexpected chain content %v", a.Bytes())
	}
}

func TestSpeechBufferDuration(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	// 16000 Hz * 2 bytes = 32000 bytes/s, so 8000 bytes is 250ms.
	sb.Write(make([]byte, 8000))
	if got := sb.Duration(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}
}

func TestSpeechBufferBytesIgnoresReadCursor(t *testing.T) {
	sb := NewSpeechBuffer(testFormat())
	sb.Write([]byte{1, 2, 3})
	p := make([]byte, 2)
	sb.Read(p)
	if !bytes.Equal(sb.Bytes(), []byte{1, 2, 3}) {
		t.Errorf("Bytes should return all written audio, got %v", sb.Bytes())
	}
}
