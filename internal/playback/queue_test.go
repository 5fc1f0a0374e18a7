package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingPlayer struct {
	mu         sync.Mutex
	active     int
	maxActive  int
	played     []string
	failOn     map[int]bool
	call       int
	delay      time.Duration
	seenExists []bool
}

func (p *recordingPlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.call++
	call := p.call
	data, err := os.ReadFile(path)
	p.seenExists = append(p.seenExists, err == nil)
	p.played = append(p.played, string(data))
	fail := p.failOn[call]
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	if fail {
		return errors.New("decode failed")
	}
	return nil
}

func TestQueuePlaysSequentiallyInOrder(t *testing.T) {
	player := &recordingPlayer{delay: 10 * time.Millisecond}
	q := NewQueue(player, t.TempDir(), nil)

	ctx := context.Background()
	segments := []string{"ID3-one", "ID3-two", "ID3-three", "ID3-four"}
	for _, s := range segments {
		q.Enqueue(ctx, []byte(s))
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Wait(waitCtx); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if player.maxActive != 1 {
		t.Fatalf("max concurrent plays=%d, want 1", player.maxActive)
	}
	if len(player.played) != len(segments) {
		t.Fatalf("played %d segments, want %d", len(player.played), len(segments))
	}
	for i, want := range segments {
		if player.played[i] != want {
			t.Fatalf("segment %d=%q, want %q", i, player.played[i], want)
		}
	}
}

func TestQueueSkipsFailingSegment(t *testing.T) {
	player := &recordingPlayer{failOn: map[int]bool{2: true}}
	q := NewQueue(player, t.TempDir(), nil)

	ctx := context.Background()
	q.Enqueue(ctx, []byte("a"))
	q.Enqueue(ctx, []byte("b"))
	q.Enqueue(ctx, []byte("c"))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Wait(waitCtx); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 3 {
		t.Fatalf("played %d segments, want all 3 despite failure", len(player.played))
	}
}

func TestQueueRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	player := &recordingPlayer{failOn: map[int]bool{1: true}}
	q := NewQueue(player, dir, nil)

	ctx := context.Background()
	q.Enqueue(ctx, []byte("bad"))
	q.Enqueue(ctx, []byte("good"))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Wait(waitCtx); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, entry := range entries {
		t.Fatalf("leftover temp file %s", filepath.Join(dir, entry.Name()))
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	for i, existed := range player.seenExists {
		if !existed {
			t.Fatalf("segment %d file missing during playback", i)
		}
	}
}

func TestQueueIgnoresEmptySegments(t *testing.T) {
	player := &recordingPlayer{}
	q := NewQueue(player, t.TempDir(), nil)

	q.Enqueue(context.Background(), nil)

	if q.IsPlaying() {
		t.Fatal("IsPlaying=true after empty enqueue")
	}
	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 0 {
		t.Fatalf("played %d segments, want 0", len(player.played))
	}
}
