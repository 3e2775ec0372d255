package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jiangweiming/opendial/pkg/speech"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	format := speech.Format{SampleRate: 16000, BitDepth: 16, Channels: 1}
	wav := NewWavBuffer(pcm, format)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("Expected length %d, got %d", expectedLen, len(wav))
	}

	if !bytes.HasSuffix(wav, pcm) {
		t.Errorf("Expected PCM payload at end of container")
	}
}

func TestNewWavBufferHeaderFields(t *testing.T) {
	format := speech.Format{SampleRate: 44100, BitDepth: 16, Channels: 2}
	wav := NewWavBuffer(make([]byte, 8), format)

	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Errorf("Expected 2 channels, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 44100*4 {
		t.Errorf("Expected byte rate %d, got %d", 44100*4, got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 4 {
		t.Errorf("Expected block align 4, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("Expected bit depth 16, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 8 {
		t.Errorf("Expected data length 8, got %d", got)
	}
}

func TestFileSaverWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utterance.wav")
	pcm := []byte{1, 2, 3, 4, 5, 6}
	format := speech.Format{SampleRate: 16000, BitDepth: 16, Channels: 1}

	if err := (FileSaver{}).WriteFile(pcm, format, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, NewWavBuffer(pcm, format)) {
		t.Errorf("file content does not match the WAV container")
	}
}

func TestFileSaverWriteFileBadPath(t *testing.T) {
	format := speech.Format{SampleRate: 16000, BitDepth: 16, Channels: 1}
	err := (FileSaver{}).WriteFile([]byte{1}, format, filepath.Join(t.TempDir(), "missing", "x.wav"))
	if err == nil {
		t.Error("expected error for unwritable path")
	}
}
