// Package conversation drives the client-side conversation state machine
// over decoded control messages.
package conversation

import (
	"fmt"
	"sync"
)

// State describes the high-level conversation state for the session.
type State string

const (
	// StateIdle means no request is outstanding.
	StateIdle State = "idle"
	// StateAwaitingReply means a request expecting a server reply was sent.
	StateAwaitingReply State = "awaiting_reply"
	// StateSpeaking means the server is mid-stream sending synthesized audio.
	StateSpeaking State = "speaking"
)

// Machine is a lightweight deterministic conversation state machine.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnRequestSent marks a reply-expecting request on the wire.
func (m *Machine) OnRequestSent() {
	m.transition(StateAwaitingReply)
}

// OnSpeechStart marks the server starting a synthesized-audio stream.
func (m *Machine) OnSpeechStart() {
	m.transition(StateSpeaking)
}

// OnSpeechStop marks the end of the synthesized-audio stream.
func (m *Machine) OnSpeechStop() {
	m.transition(StateIdle)
}

// OnFollowUps marks the conversation turn complete.
func (m *Machine) OnFollowUps() {
	m.transition(StateIdle)
}

// Reset returns the machine to idle, for disconnects.
func (m *Machine) Reset() {
	m.transition(StateIdle)
}

// Force sets the state unconditionally.
func (m *Machine) Force(state State) error {
	switch state {
	case StateIdle, StateAwaitingReply, StateSpeaking:
		m.transition(state)
		return nil
	default:
		return fmt.Errorf("invalid state: %s", state)
	}
}

func (m *Machine) transition(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
