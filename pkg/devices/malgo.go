// Package devices implements the audio module's capture and playback
// device contracts on top of malgo (miniaudio). The backend delivers and
// consumes samples on its own realtime thread; a buffering layer converts
// that into the blocking read/write model the capture and playback loops
// expect.
package devices

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/jiangweiming/opendial/pkg/speech"
)

// Engine wraps the malgo context shared by all devices of a process.
type Engine struct {
	ctx *malgo.AllocatedContext
}

func NewEngine() (*Engine, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Engine{ctx: ctx}, nil
}

func (e *Engine) Close() error {
	if err := e.ctx.Uninit(); err != nil {
		return err
	}
	e.ctx.Free()
	return nil
}

func malgoFormat(f speech.Format) (malgo.FormatType, error) {
	if f.BigEndian {
		return malgo.FormatUnknown, fmt.Errorf("big-endian capture is not supported by the miniaudio backend")
	}
	switch f.BitDepth {
	case 16:
		return malgo.FormatS16, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	}
}

// Capture is a microphone input line with blocking reads. It implements
// speech.CaptureDevice.
type Capture struct {
	engine *Engine
	format speech.Format

	mu  sync.Mutex
	dev *malgo.Device
	buf *pcmBuffer
}

func NewCapture(engine *Engine, format speech.Format) *Capture {
	return &Capture{
		engine: engine,
		format: format,
		// Hold up to two seconds before overrunning.
		buf: newPCMBuffer(2 * format.BytesPerSecond()),
	}
}

func (c *Capture) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return nil
	}

	mf, err := malgoFormat(c.format)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = mf
	cfg.Capture.Channels = uint32(c.format.Channels)
	cfg.SampleRate = uint32(c.format.SampleRate)
	cfg.Alsa.NoMMap = 1 // Better compatibility on some systems

	dev, err := malgo.InitDevice(c.engine.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			c.buf.write(pInput)
		},
	})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	c.dev = dev
	return nil
}

func (c *Capture) Start() error {
	c.mu.Lock()
	dev := c.dev
	c.mu.Unlock()
	if dev == nil {
		return speech.ErrDeviceClosed
	}
	return dev.Start()
}

func (c *Capture) Read(p []byte) (int, error) {
	return c.buf.read(p)
}

func (c *Capture) Flush() error {
	c.buf.flush()
	return nil
}

// BufferSize reports one second of audio, mirroring the default line
// buffer of a desktop sound stack.
func (c *Capture) BufferSize() int {
	return c.format.BytesPerSecond()
}

func (c *Capture) Format() speech.Format {
	return c.format
}

func (c *Capture) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev != nil
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	dev := c.dev
	c.mu.Unlock()
	if dev == nil {
		return nil
	}
	return dev.Stop()
}

// Close releases the device and unblocks any pending Read.
func (c *Capture) Close() error {
	c.mu.Lock()
	dev := c.dev
	c.dev = nil
	c.mu.Unlock()
	if dev != nil {
		dev.Uninit()
	}
	c.buf.close()
	return nil
}

// Overruns reports how often captured audio was dropped because the
// capture loop fell behind.
func (c *Capture) Overruns() int64 {
	return c.buf.overrunCount()
}

// Playback is a speaker output line with blocking, backpressured writes.
// It implements speech.PlaybackDevice.
type Playback struct {
	engine *Engine

	mu     sync.Mutex
	dev    *malgo.Device
	buf    *pcmBuffer
	format speech.Format
}

func NewPlayback(engine *Engine) *Playback {
	return &Playback{engine: engine}
}

func (p *Playback) Open(format speech.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil {
		return fmt.Errorf("playback device already open")
	}

	mf, err := malgoFormat(format)
	if err != nil {
		return err
	}

	// Keep at most half a second queued so an aborted playback stops
	// quickly.
	buf := newPCMBuffer(format.BytesPerSecond() / 2)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = mf
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(p.engine.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			n := buf.pop(pOutput)
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	p.dev = dev
	p.buf = buf
	p.format = format
	return nil
}

func (p *Playback) Start() error {
	p.mu.Lock()
	dev := p.dev
	p.mu.Unlock()
	if dev == nil {
		return speech.ErrDeviceClosed
	}
	return dev.Start()
}

func (p *Playback) Write(chunk []byte) (int, error) {
	p.mu.Lock()
	buf := p.buf
	p.mu.Unlock()
	if buf == nil {
		return 0, speech.ErrDeviceClosed
	}
	if err := buf.writeBounded(chunk); err != nil {
		return 0, err
	}
	return len(chunk), nil
}

// Drain blocks until all queued audio has been handed to the backend.
func (p *Playback) Drain() error {
	p.mu.Lock()
	buf := p.buf
	p.mu.Unlock()
	if buf != nil {
		buf.waitEmpty()
	}
	return nil
}

func (p *Playback) Close() error {
	p.mu.Lock()
	dev, buf := p.dev, p.buf
	p.dev, p.buf = nil, nil
	p.mu.Unlock()
	if buf != nil {
		buf.close()
	}
	if dev != nil {
		dev.Uninit()
	}
	return nil
}
