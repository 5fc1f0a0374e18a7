// Package timeout tracks the reply deadline for outstanding requests.
package timeout

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Supervisor arms a single deadline timer per outstanding request. Arming
// replaces any prior timer; the first disarm after arming cancels it. A
// timer that expires fires the notify callback exactly once.
type Supervisor struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	logger     *zap.Logger
	notify     func()
}

// New creates a supervisor invoking notify on every expired deadline.
func New(logger *zap.Logger, notify func()) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{logger: logger, notify: notify}
}

// Arm starts the deadline timer, replacing any prior one.
func (s *Supervisor) Arm(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	s.timer = time.AfterFunc(d, func() {
		s.fire(gen)
	})
}

// Disarm cancels the pending deadline, if any.
func (s *Supervisor) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.generation++
}

// Armed reports whether a deadline is pending.
func (s *Supervisor) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Supervisor) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.logger.Warn("server response deadline expired")
	if s.notify != nil {
		s.notify()
	}
}
