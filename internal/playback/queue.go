// Package playback buffers received audio segments and plays them strictly
// one at a time.
package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Player is the platform audio port. Play blocks until the segment finishes
// or fails.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Queue holds pending audio segments in arrival order. Each segment is
// materialized into a temporary file for the duration of its playback; the
// file is removed on completion and on error, and a failing segment never
// stalls the queue.
type Queue struct {
	player  Player
	logger  *zap.Logger
	tempDir string

	mu      sync.Mutex
	items   [][]byte
	playing bool
	idle    chan struct{}
}

// NewQueue creates an empty queue writing temp files under tempDir.
func NewQueue(player Player, tempDir string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Queue{
		player:  player,
		logger:  logger,
		tempDir: tempDir,
	}
}

// Enqueue appends a segment and starts the drain cycle if idle.
func (q *Queue) Enqueue(ctx context.Context, segment []byte) {
	if len(segment) == 0 {
		q.logger.Warn("dropping empty audio segment")
		return
	}

	q.mu.Lock()
	q.items = append(q.items, segment)
	start := !q.playing
	if start {
		q.playing = true
		q.idle = make(chan struct{})
	}
	queued := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("audio segment queued", zap.Int("queued", queued))
	if start {
		go q.drain(ctx)
	}
}

// IsPlaying reports whether a dequeue/materialize/play cycle is active.
func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Wait blocks until the queue drains or the context expires.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	playing := q.playing
	q.mu.Unlock()
	if !playing || idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || ctx.Err() != nil {
			q.playing = false
			if q.idle != nil {
				close(q.idle)
				q.idle = nil
			}
			q.mu.Unlock()
			return
		}
		segment := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if err := q.playSegment(ctx, segment); err != nil {
			q.logger.Warn("audio segment skipped", zap.Error(err))
		}
	}
}

func (q *Queue) playSegment(ctx context.Context, segment []byte) error {
	path := filepath.Join(q.tempDir, "segment_"+uuid.NewString()+".mp3")
	if err := os.WriteFile(path, segment, 0o600); err != nil {
		return fmt.Errorf("materialize segment: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			q.logger.Warn("failed to remove segment file", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := q.player.Play(ctx, path); err != nil {
		return fmt.Errorf("play segment: %w", err)
	}
	return nil
}
