// Package upload transmits a finished recording as the ordered three-phase
// begin-signal / binary-payload / end-signal sequence.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/protocol"
)

// Upload errors.
var (
	ErrNotConnected    = errors.New("upload: session not established")
	ErrArtifactTimeout = errors.New("upload: recording artifact did not materialize")
)

const artifactPollInterval = 100 * time.Millisecond

// Sender is the outbound half of the transport.
type Sender interface {
	SendMessage(ctx context.Context, msg protocol.Message) error
	SendBinary(ctx context.Context, payload []byte) error
	Established() bool
}

// Config holds the pipeline timing policy.
type Config struct {
	Format       string
	SettleDelay  time.Duration
	ArtifactWait time.Duration
}

// Pipeline sends one utterance at a time. The backend associates the three
// phases by socket order, not by a request id, so invocations are strictly
// serialized and phases are never reordered or parallelized.
type Pipeline struct {
	cfg    Config
	sender Sender
	logger *zap.Logger

	// single-slot in-flight guard: a second upload waits for the first to
	// clear its settling delay rather than interleaving phases
	inFlight sync.Mutex
}

// NewPipeline creates an upload pipeline over the given sender.
func NewPipeline(cfg Config, sender Sender, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	return &Pipeline{cfg: cfg, sender: sender, logger: logger}
}

// Upload transmits one recorded utterance. Progress is reported after the
// binary phase. A failed phase aborts the sequence; completed phases are not
// rolled back because the protocol has no abort message.
func (p *Pipeline) Upload(ctx context.Context, audio []byte, voice string, address string, progress func(percent int)) error {
	p.inFlight.Lock()
	defer p.inFlight.Unlock()

	if !p.sender.Established() {
		return ErrNotConnected
	}

	begin := protocol.ListenStart(p.cfg.Format, voice, address)
	if err := p.sender.SendMessage(ctx, begin); err != nil {
		return fmt.Errorf("upload begin signal: %w", err)
	}

	if err := p.sender.SendBinary(ctx, audio); err != nil {
		return fmt.Errorf("upload audio payload: %w", err)
	}
	p.logger.Info("audio payload sent", zap.Int("bytes", len(audio)))
	if progress != nil {
		progress(100)
	}

	// give the backend time to ingest the payload before the end signal
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.cfg.SettleDelay):
	}

	end := protocol.ListenStop(p.cfg.Format, voice)
	if err := p.sender.SendMessage(ctx, end); err != nil {
		return fmt.Errorf("upload end signal: %w", err)
	}
	return nil
}

// UploadFile waits for the recording artifact to materialize, reads it, and
// uploads its contents.
func (p *Pipeline) UploadFile(ctx context.Context, path string, voice string, address string, progress func(percent int)) error {
	if err := p.waitForArtifact(ctx, path); err != nil {
		return err
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read recording artifact: %w", err)
	}
	return p.Upload(ctx, audio, voice, address, progress)
}

func (p *Pipeline) waitForArtifact(ctx context.Context, path string) error {
	deadline := time.Now().Add(p.cfg.ArtifactWait)
	for {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrArtifactTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(artifactPollInterval):
		}
	}
}
