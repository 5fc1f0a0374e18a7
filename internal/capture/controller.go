// Package capture owns the microphone recording session and interprets
// press/hold and touch-drag gestures into start, cancel, and finish
// decisions.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Capture errors.
var (
	ErrNotConnected = errors.New("capture: no established session")
	ErrNotRecording = errors.New("capture: no active recording")
)

// State describes the recording-session state.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateCancelling State = "cancelling"
	StateFinished   State = "finished"
)

// Options are the fixed capture parameters handed to the recorder port.
type Options struct {
	MaxDuration time.Duration
	SampleRate  int
	Channels    int
	BitRate     int
	Format      string
}

// Recorder is the platform microphone port. Stop returns the path of the
// recorded artifact.
type Recorder interface {
	Start(ctx context.Context, opts Options) error
	Stop(ctx context.Context) (string, error)
	Cancel(ctx context.Context) error
}

// Haptics emits a discrete haptic pulse. Implementations may be no-ops on
// platforms without haptics.
type Haptics interface {
	Pulse()
}

// Config holds gesture and capture policy.
type Config struct {
	MinDuration    time.Duration
	MaxDuration    time.Duration
	CancelDistance float64 // logical units before a drag cancels
	DensityScale   float64 // logical unit to device pixel ratio
	SampleRate     int
	Channels       int
	BitRate        int
	Format         string
}

// Controller runs at most one recording session at a time. Starting a new
// capture while one is active force-stops the prior session first.
type Controller struct {
	cfg         Config
	recorder    Recorder
	haptics     Haptics
	logger      *zap.Logger
	established func() bool
	onFinished  func(artifact string, duration time.Duration)

	mu           sync.Mutex
	state        State
	startedAt    time.Time
	touchOriginY float64
	cancelling   bool
	maxTimer     *time.Timer
}

// NewController wires the controller to its platform ports. onFinished
// receives the recorded artifact of every normally finished capture.
func NewController(cfg Config, recorder Recorder, haptics Haptics, established func() bool, onFinished func(artifact string, duration time.Duration), logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DensityScale <= 0 {
		cfg.DensityScale = 1
	}
	return &Controller{
		cfg:         cfg,
		recorder:    recorder,
		haptics:     haptics,
		logger:      logger,
		established: established,
		onFinished:  onFinished,
		state:       StateIdle,
	}
}

// State returns the current recording-session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsCancelling reports whether the active drag is past the cancel threshold.
func (c *Controller) IsCancelling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelling
}

// StartCapture begins a recording session. A session that is already active
// is force-stopped (finished, not cancelled) before the new one starts.
func (c *Controller) StartCapture(ctx context.Context) error {
	if c.established != nil && !c.established() {
		return ErrNotConnected
	}

	if c.State() == StateRecording {
		c.logger.Info("force-stopping prior recording before new capture")
		if err := c.FinishCapture(ctx); err != nil {
			c.logger.Warn("failed to stop prior recording", zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		return nil
	}

	opts := Options{
		MaxDuration: c.cfg.MaxDuration,
		SampleRate:  c.cfg.SampleRate,
		Channels:    c.cfg.Channels,
		BitRate:     c.cfg.BitRate,
		Format:      c.cfg.Format,
	}
	if err := c.recorder.Start(ctx, opts); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	c.state = StateRecording
	c.startedAt = time.Now()
	c.cancelling = false
	if c.cfg.MaxDuration > 0 {
		c.maxTimer = time.AfterFunc(c.cfg.MaxDuration, c.autoFinish)
	}
	c.logger.Info("recording started",
		zap.Int("sample_rate", opts.SampleRate),
		zap.Int("channels", opts.Channels),
		zap.String("format", opts.Format),
	)
	return nil
}

// TouchStart begins a touch-held capture and records the gesture origin.
func (c *Controller) TouchStart(ctx context.Context, originY float64) error {
	if err := c.StartCapture(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.touchOriginY = originY
	c.mu.Unlock()
	return nil
}

// TouchMove updates the cancel flag from the vertical drag distance.
func (c *Controller) TouchMove(currentY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return
	}
	threshold := c.cfg.CancelDistance * c.cfg.DensityScale
	c.cancelling = c.touchOriginY-currentY > threshold
}

// TouchEnd evaluates the finished gesture: a drag past the cancel threshold
// cancels, a hold shorter than the minimum duration counts as an accidental
// tap and cancels, anything else finishes normally.
func (c *Controller) TouchEnd(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	cancelling := c.cancelling
	elapsed := time.Since(c.startedAt)
	c.mu.Unlock()

	if cancelling {
		return c.CancelCapture(ctx)
	}
	if elapsed < c.cfg.MinDuration {
		c.logger.Info("recording too short, cancelled", zap.Duration("elapsed", elapsed))
		return c.CancelCapture(ctx)
	}
	return c.FinishCapture(ctx)
}

// CancelCapture discards the in-progress audio without uploading. It is a
// no-op when nothing is recording.
func (c *Controller) CancelCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	c.state = StateCancelling
	c.stopMaxTimerLocked()
	c.mu.Unlock()

	err := c.recorder.Cancel(ctx)

	c.mu.Lock()
	c.state = StateIdle
	c.cancelling = false
	c.mu.Unlock()

	c.pulse()
	if err != nil {
		return fmt.Errorf("cancel recorder: %w", err)
	}
	c.logger.Info("recording cancelled")
	return nil
}

// FinishCapture stops the recorder and hands the artifact to the finished
// callback.
func (c *Controller) FinishCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.state = StateFinished
	c.stopMaxTimerLocked()
	startedAt := c.startedAt
	c.mu.Unlock()

	artifact, err := c.recorder.Stop(ctx)

	c.mu.Lock()
	c.state = StateIdle
	c.cancelling = false
	c.mu.Unlock()

	c.pulse()
	if err != nil {
		return fmt.Errorf("stop recorder: %w", err)
	}

	duration := time.Since(startedAt)
	c.logger.Info("recording finished",
		zap.String("artifact", artifact),
		zap.Duration("duration", duration),
	)
	if c.onFinished != nil {
		c.onFinished(artifact, duration)
	}
	return nil
}

// autoFinish is the hard safety cutoff: a capture that reaches the maximum
// duration finishes normally instead of being discarded.
func (c *Controller) autoFinish() {
	if c.State() != StateRecording {
		return
	}
	c.logger.Info("recording reached maximum duration, auto-finishing")
	if err := c.FinishCapture(context.Background()); err != nil && !errors.Is(err, ErrNotRecording) {
		c.logger.Warn("auto-finish failed", zap.Error(err))
	}
}

func (c *Controller) stopMaxTimerLocked() {
	if c.maxTimer != nil {
		c.maxTimer.Stop()
		c.maxTimer = nil
	}
}

func (c *Controller) pulse() {
	if c.haptics != nil {
		c.haptics.Pulse()
	}
}
