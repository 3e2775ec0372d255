package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/jiangweiming/opendial/pkg/speech"
)

// NewWavBuffer wraps raw PCM data in a RIFF/WAVE container for the given
// format.
func NewWavBuffer(pcm []byte, format speech.Format) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	blockAlign := format.FrameSize()
	byteRate := format.BytesPerSecond()

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(format.BitDepth))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// FileSaver persists captured speech as WAV files. It implements the
// speech.Persister interface.
type FileSaver struct{}

func (FileSaver) WriteFile(data []byte, format speech.Format, path string) error {
	if err := os.WriteFile(path, NewWavBuffer(data, format), 0o644); err != nil {
		return fmt.Errorf("write wav %q: %w", path, err)
	}
	return nil
}
