package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// playLoop is one playback episode: it drains the active output utterance
// to the playback device and ends on completion, on barge-in, or on a
// device error. Exactly one episode runs at a time; Trigger starts a new
// one only after the previous episode cleared the output reference.
func (m *AudioModule) playLoop(out *SpeechBuffer) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.playCancel = cancel
	m.mu.Unlock()

	err := m.play(ctx, out)

	m.mu.Lock()
	m.playCancel = nil
	m.mu.Unlock()
	cancel()

	if err != nil {
		m.logger.Error("playback terminated", "error", err)
	}
	m.state.Remove(m.cfg.SystemSpeechVar)
}

// play keeps the output reference assigned until the device is fully
// released, so a system utterance arriving during the drain is
// concatenated by Trigger instead of racing a second episode against this
// one. After teardown it re-checks the chain and keeps going if new audio
// arrived meanwhile.
func (m *AudioModule) play(ctx context.Context, out *SpeechBuffer) error {
	for {
		if err := m.playback.Open(out.Format()); err != nil {
			m.clearOutput()
			return fmt.Errorf("%w: open playback: %v", ErrDeviceUnavailable, err)
		}
		if err := m.playback.Start(); err != nil {
			m.playback.Close()
			m.clearOutput()
			return fmt.Errorf("%w: start playback: %v", ErrDeviceUnavailable, err)
		}

		buf := make([]byte, m.cfg.PlaybackChunkSize)
		for {
			n, err := out.ReadContext(ctx, buf)
			if errors.Is(err, io.EOF) {
				// A system utterance may have been concatenated between the
				// final read and now; re-check before giving up the episode
				// so quick-succession utterances are never dropped.
				m.mu.Lock()
				drained := out.Drained()
				m.mu.Unlock()
				if !drained {
					continue
				}
				break
			}
			aborted := errors.Is(err, context.Canceled)
			if err != nil && !aborted {
				m.playback.Close()
				m.clearOutput()
				return fmt.Errorf("playback read: %w", err)
			}

			// Stop playing as soon as the user starts talking, including
			// while the read sits blocked on a still-streaming utterance.
			// The unread tail is discarded.
			if aborted || m.inputActive() {
				m.logger.Info("user barge-in, aborting playback")
				m.playback.Close()
				m.clearOutput()
				return nil
			}

			if n > 0 {
				if _, err := m.playback.Write(buf[:n]); err != nil {
					m.playback.Close()
					m.clearOutput()
					return fmt.Errorf("playback write: %w", err)
				}
			}
		}

		if err := m.playback.Drain(); err != nil {
			m.playback.Close()
			m.clearOutput()
			return fmt.Errorf("playback drain: %w", err)
		}
		if err := m.playback.Close(); err != nil {
			m.clearOutput()
			return fmt.Errorf("playback close: %w", err)
		}

		m.mu.Lock()
		if out.Drained() {
			m.outputSpeech = nil
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
		// More audio was concatenated while the device drained: play it on
		// the same episode.
	}
}

func (m *AudioModule) clearOutput() {
	m.mu.Lock()
	m.outputSpeech = nil
	m.mu.Unlock()
}
