package speech

import (
	"log/slog"
	"time"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func (s *SlogLogger) Debug(msg string, args ...interface{}) { s.L.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...interface{})  { s.L.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...interface{})  { s.L.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...interface{}) { s.L.Error(msg, args...) }

// Format describes the PCM encoding of an audio stream.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
	BigEndian  bool
}

func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the number of bytes for one sample across all channels.
func (f Format) FrameSize() int {
	return f.BytesPerSample() * f.Channels
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// CaptureDevice is a blocking audio input line.
type CaptureDevice interface {
	Open() error
	Start() error
	// Read blocks until at least one byte of captured audio is available.
	Read(p []byte) (int, error)
	// Flush discards any captured audio buffered on the device.
	Flush() error
	// BufferSize reports the device's internal buffer size in bytes.
	BufferSize() int
	Format() Format
	IsOpen() bool
	Stop() error
	Close() error
}

// PlaybackDevice is a blocking audio output line.
type PlaybackDevice interface {
	Open(format Format) error
	Start() error
	Write(p []byte) (int, error)
	// Drain blocks until all written audio has been played.
	Drain() error
	Close() error
}

// Value is a dialogue-state variable value. Exactly one concrete kind
// applies per value: a plain string or a speech utterance.
type Value interface {
	isValue()
}

type StringValue string

func (StringValue) isValue() {}

type SpeechValue struct {
	Speech *SpeechBuffer
}

func (SpeechValue) isValue() {}

// DialogueState is the external dialogue-state collaborator. Variable
// updates flow back into the module through AudioModule.Trigger.
type DialogueState interface {
	AddUtterance(variable string, speech *SpeechBuffer)
	Remove(variable string)
	// QueryBest returns the best value for the variable, or nil if the
	// variable is absent.
	QueryBest(variable string) Value
	Has(variable string) bool
}

// Persister saves captured speech to stable storage.
type Persister interface {
	WriteFile(data []byte, format Format, path string) error
}

type Config struct {
	// UserSpeechVar is the dialogue-state variable holding user speech.
	UserSpeechVar string
	// SystemSpeechVar is the dialogue-state variable holding system speech.
	SystemSpeechVar string
	// VolumeThreshold is the difference between current and background
	// volume above which audio counts as speech. Device and unit
	// dependent; recalibrate per deployment.
	VolumeThreshold float64
	// MinDuration gates the commit of a just-started utterance to the
	// dialogue state. Buffering starts immediately on detection.
	MinDuration time.Duration
	// SavePath, when non-empty, is where finished utterances longer than
	// MinDuration are written.
	SavePath string
	// PlaybackChunkSize is the read size of the playback loop in bytes.
	PlaybackChunkSize int
}

func DefaultConfig() Config {
	return Config{
		UserSpeechVar:     "s_u",
		SystemSpeechVar:   "s_m",
		VolumeThreshold:   250,
		MinDuration:       300 * time.Millisecond,
		PlaybackChunkSize: 4096,
	}
}
