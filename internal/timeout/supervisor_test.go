package timeout

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorFiresOnceAfterDeadline(t *testing.T) {
	var fired atomic.Int32
	s := New(nil, func() { fired.Add(1) })

	s.Arm(20 * time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("timeout fired %d times, want 1", got)
	}
	if s.Armed() {
		t.Fatal("Armed=true after firing, want false")
	}
}

func TestSupervisorDisarmBeforeDeadline(t *testing.T) {
	var fired atomic.Int32
	s := New(nil, func() { fired.Add(1) })

	s.Arm(30 * time.Millisecond)
	s.Disarm()
	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("timeout fired %d times after disarm, want 0", got)
	}
}

func TestSupervisorRearmReplacesDeadline(t *testing.T) {
	var fired atomic.Int32
	s := New(nil, func() { fired.Add(1) })

	s.Arm(20 * time.Millisecond)
	s.Arm(200 * time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("replaced timer fired %d times, want 0", got)
	}
	if !s.Armed() {
		t.Fatal("Armed=false, want true while replacement pending")
	}
	s.Disarm()
}

func TestSupervisorDisarmWhenIdleIsNoop(t *testing.T) {
	s := New(nil, nil)
	s.Disarm()
	if s.Armed() {
		t.Fatal("Armed=true on fresh supervisor")
	}
}
