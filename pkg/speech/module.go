package speech

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// AudioModule owns audio capture and playback for the dialogue pipeline.
// It records user speech from the capture device, whether detected by the
// EnergyVAD or driven by explicit commands, and commits it to the dialogue
// state. System speech arriving through Trigger is played on the playback
// device; playback aborts when the user barges in.
type AudioModule struct {
	logger   Logger
	cfg      Config
	state    DialogueState
	capture  CaptureDevice
	playback PlaybackDevice
	saver    Persister

	mu           sync.Mutex
	vad          *EnergyVAD
	inputSpeech  *SpeechBuffer
	outputSpeech *SpeechBuffer
	playCancel   context.CancelFunc
	paused       bool
	vadEnabled   bool
	captureDone  chan struct{}
	captureErr   error
}

// New creates an audio module with a no-op logger.
func New(capture CaptureDevice, playback PlaybackDevice, state DialogueState, cfg Config) *AudioModule {
	return NewWithLogger(capture, playback, state, cfg, &NoOpLogger{})
}

// NewWithLogger creates an audio module with a custom logger.
// If logger is nil, a no-op logger is used.
func NewWithLogger(capture CaptureDevice, playback PlaybackDevice, state DialogueState, cfg Config, logger Logger) *AudioModule {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &AudioModule{
		logger:   logger,
		cfg:      cfg,
		state:    state,
		capture:  capture,
		playback: playback,
		vad:      NewEnergyVAD(cfg.VolumeThreshold, cfg.MinDuration),
		paused:   true,
	}
}

// SetSaver installs the persistence collaborator used to save finished
// utterances when Config.SavePath is set.
func (m *AudioModule) SetSaver(saver Persister) {
	m.mu.Lock()
	m.saver = saver
	m.mu.Unlock()
}

// Start opens and starts the capture device and launches the capture loop
// on its own goroutine. The module leaves the paused state.
func (m *AudioModule) Start() error {
	m.mu.Lock()
	m.paused = false
	m.captureErr = nil
	m.mu.Unlock()

	if err := m.capture.Open(); err != nil {
		return fmt.Errorf("%w: open capture: %v", ErrDeviceUnavailable, err)
	}
	if err := m.capture.Start(); err != nil {
		m.capture.Close()
		return fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.captureDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if err := m.captureLoop(); err != nil {
			m.mu.Lock()
			m.captureErr = err
			m.inputSpeech = nil
			m.mu.Unlock()
			m.logger.Error("capture loop terminated", "error", err)
		}
	}()
	return nil
}

// captureLoop pulls fixed-size buffers from the capture device, feeds the
// VAD, and drives the recording state transitions. It runs until the
// device closes and returns a non-nil error on device I/O failure, which
// ends the capture session.
func (m *AudioModule) captureLoop() error {
	format := m.capture.Format()
	buf := make([]byte, m.capture.BufferSize()/20)

	for m.capture.IsOpen() {
		systemTurnBeforeRead := m.outputActive()

		n, err := m.capture.Read(buf)
		if err != nil {
			if !m.capture.IsOpen() {
				return nil
			}
			return fmt.Errorf("capture read: %w", err)
		}

		// The user interrupted the system mid-read: the buffer straddles
		// the playback cut-off, so discard it along with anything still
		// queued on the device.
		if systemTurnBeforeRead && !m.outputActive() {
			if err := m.capture.Flush(); err != nil {
				return fmt.Errorf("capture flush: %w", err)
			}
			continue
		}

		// While system speech is playing, captured audio is assumed to be
		// playback bleed and is neither analyzed nor recorded.
		if m.outputActive() || n == 0 {
			continue
		}

		finished := m.processBuffer(buf[:n], format)
		if finished != nil {
			m.retireInput(finished)
		}
	}
	return nil
}

// processBuffer updates the volume estimates from one captured buffer,
// applies the VAD decision policy, and appends the samples to the active
// utterance. It returns the utterance if this buffer finalized it.
func (m *AudioModule) processBuffer(buf []byte, format Format) *SpeechBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.vadEnabled && m.inputSpeech == nil {
		return nil
	}

	difference := m.vad.Update(RMS(buf, format))

	if m.vadEnabled && m.inputSpeech == nil && m.vad.SpeechStarted(difference) {
		m.logger.Debug("speech detected", "difference", difference)
		m.startRecordingLocked(format, m.cfg.MinDuration)
	}

	sp := m.inputSpeech
	if sp == nil || sp.Final() {
		return nil
	}
	if err := sp.Write(buf); err != nil {
		m.logger.Warn("dropping captured buffer", "error", err)
		return nil
	}
	if m.vadEnabled && m.vad.SpeechEnded(difference) {
		sp.SetFinal()
		m.inputSpeech = nil
		return sp
	}
	return nil
}

// StartRecording begins a new speech segment. The segment buffers audio
// immediately but is only committed to the dialogue state once it survives
// minDuration without being finalized, suppressing spurious short noises.
// Returns ErrPaused (after an informational log) while paused.
func (m *AudioModule) StartRecording(minDuration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		m.logger.Info("audio module is currently paused; ignoring recording start")
		return ErrPaused
	}
	m.startRecordingLocked(m.capture.Format(), minDuration)
	return nil
}

func (m *AudioModule) startRecordingLocked(format Format, minDuration time.Duration) {
	sp := NewSpeechBuffer(format)
	m.inputSpeech = sp
	// Wake a playback read blocked on a still-streaming utterance so the
	// barge-in takes effect without waiting for the next audio chunk.
	if m.playCancel != nil {
		m.playCancel()
	}
	if minDuration > 0 {
		time.AfterFunc(minDuration, func() { m.commitInput(sp) })
	} else {
		// Commit asynchronously: the dialogue state notifies its
		// listeners, which re-enter the module through Trigger.
		go m.commitInput(sp)
	}
}

// commitInput announces sp to the dialogue state, unless it has already
// been finalized or superseded in the meantime.
func (m *AudioModule) commitInput(sp *SpeechBuffer) {
	m.mu.Lock()
	ok := m.inputSpeech == sp && !sp.Final()
	m.mu.Unlock()
	if ok {
		m.logger.Debug("committing user utterance", "variable", m.cfg.UserSpeechVar)
		m.state.AddUtterance(m.cfg.UserSpeechVar, sp)
	}
}

// StopRecording finalizes the current speech segment, saves it if
// configured, and retracts the user-speech variable.
func (m *AudioModule) StopRecording() {
	m.mu.Lock()
	sp := m.inputSpeech
	if sp != nil {
		sp.SetFinal()
		m.inputSpeech = nil
	}
	m.mu.Unlock()
	if sp != nil {
		m.retireInput(sp)
	}
}

// retireInput handles a finalized utterance: optional persistence, then
// retraction of the user-speech variable from the dialogue state.
func (m *AudioModule) retireInput(sp *SpeechBuffer) {
	m.mu.Lock()
	saver, savePath, minDur := m.saver, m.cfg.SavePath, m.cfg.MinDuration
	m.mu.Unlock()

	if saver != nil && savePath != "" && sp.Duration() > minDur {
		if err := saver.WriteFile(sp.Bytes(), sp.Format(), savePath); err != nil {
			m.logger.Warn("could not save speech", "path", savePath, "error", err)
		}
	}
	m.state.Remove(m.cfg.UserSpeechVar)
}

// Trigger reacts to a dialogue-state update. When the system-speech
// variable carries a new utterance, it either becomes the active output
// (starting a playback episode) or is concatenated onto the one already
// playing, so consecutive system utterances play back to back without a
// gap. Safe to call concurrently with itself and with both loops.
func (m *AudioModule) Trigger(updatedVars []string) {
	if !slices.Contains(updatedVars, m.cfg.SystemSpeechVar) {
		return
	}
	if !m.state.Has(m.cfg.SystemSpeechVar) {
		return
	}
	value, ok := m.state.QueryBest(m.cfg.SystemSpeechVar).(SpeechValue)
	if !ok || value.Speech == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outputSpeech == nil {
		m.outputSpeech = value.Speech
		go m.playLoop(value.Speech)
		return
	}
	if err := m.outputSpeech.Concatenate(value.Speech); err != nil {
		m.logger.Error("rejecting system utterance", "error", err)
	}
}

// Pause toggles whether capture-driven recording is accepted. Open devices
// stay open.
func (m *AudioModule) Pause(toPause bool) {
	m.mu.Lock()
	m.paused = toPause
	m.mu.Unlock()
}

// IsRunning reports whether the module is not paused.
func (m *AudioModule) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.paused
}

// ActivateVAD switches between automatic voice activity detection and
// manually driven recording. The VAD smoothing state is not reset.
func (m *AudioModule) ActivateVAD(active bool) {
	m.mu.Lock()
	m.vadEnabled = active
	m.mu.Unlock()
}

// Volume returns the latest smoothed energy estimate.
func (m *AudioModule) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vad.CurrentVolume()
}

// BackgroundVolume returns the current noise floor estimate.
func (m *AudioModule) BackgroundVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vad.BackgroundVolume()
}

// Err returns the error that terminated the capture session, if any.
func (m *AudioModule) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureErr
}

// Shutdown pauses the module and releases both devices. The capture loop
// exits once the device reports closed.
func (m *AudioModule) Shutdown() {
	m.mu.Lock()
	m.paused = true
	done := m.captureDone
	m.mu.Unlock()

	m.capture.Stop()
	m.capture.Close()
	m.playback.Close()
	if done != nil {
		<-done
	}
}

func (m *AudioModule) outputActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputSpeech != nil
}

func (m *AudioModule) inputActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputSpeech != nil
}
