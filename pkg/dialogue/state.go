// Package dialogue holds the in-memory dialogue state shared by the audio
// module and the rest of the pipeline. Variables map names to tagged
// values; registered listeners are told which variables changed after
// every update.
package dialogue

import (
	"sync"

	"github.com/jiangweiming/opendial/pkg/speech"
)

// Listener receives the names of the variables changed by an update.
type Listener func(updatedVars []string)

// State is a thread-safe variable store. Listeners are invoked outside the
// state lock, so they may query or update the state re-entrantly.
type State struct {
	mu        sync.RWMutex
	values    map[string]speech.Value
	listeners []Listener
}

func New() *State {
	return &State{values: make(map[string]speech.Value)}
}

// AddListener registers a listener for subsequent updates.
func (s *State) AddListener(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// SetValue assigns a value to a variable and notifies listeners.
func (s *State) SetValue(name string, value speech.Value) {
	s.mu.Lock()
	s.values[name] = value
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l([]string{name})
	}
}

// AddUtterance assigns a speech utterance to a variable. It implements the
// dialogue-state collaborator interface of the audio module.
func (s *State) AddUtterance(variable string, sp *speech.SpeechBuffer) {
	s.SetValue(variable, speech.SpeechValue{Speech: sp})
}

// Remove deletes a variable and notifies listeners of the retraction.
func (s *State) Remove(name string) {
	s.mu.Lock()
	_, present := s.values[name]
	delete(s.values, name)
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if !present {
		return
	}
	for _, l := range listeners {
		l([]string{name})
	}
}

// QueryBest returns the value of a variable, or nil if it is absent.
func (s *State) QueryBest(name string) speech.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Has reports whether the variable is present.
func (s *State) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[name]
	return ok
}
