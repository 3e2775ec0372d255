// Package synth streams synthesized system speech into the dialogue
// state, where the audio module picks it up for playback.
package synth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jiangweiming/opendial/pkg/speech"
)

// Remote is a client for a websocket speech synthesis service. Each Speak
// call creates a fresh utterance buffer, commits it to the system-speech
// variable right away, and appends audio chunks as they arrive, so
// playback starts while synthesis is still running.
type Remote struct {
	apiKey   string
	host     string
	scheme   string
	format   speech.Format
	state    speech.DialogueState
	variable string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemote(host, apiKey string, format speech.Format, state speech.DialogueState, variable string) *Remote {
	return &Remote{
		apiKey:   apiKey,
		host:     host,
		scheme:   "wss",
		format:   format,
		state:    state,
		variable: variable,
	}
}

func (r *Remote) getConn(ctx context.Context) (*websocket.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}

	u := url.URL{Scheme: r.scheme, Host: r.host, Path: "/ws", RawQuery: "api_key=" + r.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to synthesizer: %w", err)
	}

	conn.SetReadLimit(10 * 1024 * 1024)

	r.conn = conn
	return conn, nil
}

// Speak synthesizes text and feeds the audio into the dialogue state as a
// system utterance. It returns once the utterance is fully synthesized;
// the utterance buffer is finalized on every exit path.
func (r *Remote) Speak(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.getConn(ctx)
	if err != nil {
		return err
	}

	req := map[string]interface{}{
		"text":        text,
		"sample_rate": r.format.SampleRate,
		"channels":    r.format.Channels,
		"speed":       1.0,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		r.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	sp := speech.NewSpeechBuffer(r.format)
	defer sp.SetFinal()
	r.state.AddUtterance(r.variable, sp)

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			r.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from synthesizer: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := sp.Write(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return fmt.Errorf("synthesizer error: %s", msg)
			}
		}
	}
}

func (r *Remote) Name() string {
	return "remote"
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		err := r.conn.Close(websocket.StatusNormalClosure, "")
		r.conn = nil
		return err
	}
	return nil
}
