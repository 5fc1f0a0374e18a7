package conversation

import "testing"

func TestMachineDefault(t *testing.T) {
	m := NewMachine()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
}

func TestMachineTurnLifecycle(t *testing.T) {
	m := NewMachine()
	m.OnRequestSent()
	if got := m.State(); got != StateAwaitingReply {
		t.Fatalf("state=%s, want %s", got, StateAwaitingReply)
	}
	m.OnSpeechStart()
	if got := m.State(); got != StateSpeaking {
		t.Fatalf("state=%s, want %s", got, StateSpeaking)
	}
	m.OnSpeechStop()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
}

func TestMachineFollowUpsReturnToIdle(t *testing.T) {
	m := NewMachine()
	m.OnRequestSent()
	m.OnFollowUps()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
}

func TestMachineInvalidForce(t *testing.T) {
	m := NewMachine()
	if err := m.Force(State("unknown")); err == nil {
		t.Fatal("Force(unknown) error=nil, want non-nil")
	}
}
