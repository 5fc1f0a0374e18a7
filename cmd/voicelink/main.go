package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/capture"
	"github.com/huisuda/voicelink/pkg/runtime"
	"github.com/huisuda/voicelink/pkg/voiceclient"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to conf.yaml")
	audioSource := flag.String("audio", "", "audio file sent as the capture payload")
	flag.Parse()

	recorder := &fileRecorder{source: *audioSource}
	player := &consolePlayer{out: os.Stdout}

	events := voiceclient.Events{
		OnAssistantText: func(text string) {
			fmt.Println("assistant:", text)
		},
		OnRecognizedText: func(text string) {
			fmt.Println("you said:", text)
		},
		OnFollowUps: func(questions []string) {
			for _, q := range questions {
				fmt.Println("follow-up:", q)
			}
		},
		OnTimeout: func() {
			fmt.Println("request timed out")
		},
		OnDisconnected: func(err error) {
			fmt.Println("connection lost:", err)
		},
	}

	app, err := runtime.New(*configPath, recorder, player, nil, events)
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to start voicelink", zap.Error(err))
	}
	logger := app.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go readPrompts(ctx, app.Session(), recorder, logger)

	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// readPrompts runs the interactive loop: plain lines become text prompts,
// slash commands adjust the session.
func readPrompts(ctx context.Context, session *voiceclient.Session, recorder *fileRecorder, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := session.SendText(ctx, line); err != nil {
				fmt.Println("send failed:", err)
			}
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		arg := ""
		if len(parts) == 2 {
			arg = strings.TrimSpace(parts[1])
		}

		switch parts[0] {
		case "/voice":
			id, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("usage: /voice <id>")
				continue
			}
			if err := session.SelectVoice(id); err != nil {
				fmt.Println("voice change failed:", err)
			}
		case "/region":
			session.SetRegion(arg)
		case "/language":
			session.SetLanguage(arg)
		case "/send":
			if arg == "" {
				fmt.Println("usage: /send <audio file>")
				continue
			}
			recorder.setSource(arg)
			if err := session.StartCapture(ctx); err != nil {
				fmt.Println("capture failed:", err)
				continue
			}
			if err := session.FinishCapture(ctx); err != nil {
				fmt.Println("capture failed:", err)
			}
		case "/reconnect":
			if err := session.Reconnect(ctx); err != nil {
				fmt.Println("reconnect failed:", err)
			}
		case "/status":
			fmt.Printf("connected=%v state=%s\n", session.Established(), session.ConversationState())
		default:
			fmt.Println("unknown command:", parts[0])
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin closed", zap.Error(err))
	}
}

// fileRecorder is the headless microphone port: the capture payload comes
// from a prepared audio file instead of a device.
type fileRecorder struct {
	mu     sync.Mutex
	source string
}

func (r *fileRecorder) setSource(path string) {
	r.mu.Lock()
	r.source = path
	r.mu.Unlock()
}

func (r *fileRecorder) Start(ctx context.Context, opts capture.Options) error {
	r.mu.Lock()
	source := r.source
	r.mu.Unlock()
	if source == "" {
		return fmt.Errorf("no audio source configured, use -audio or /send")
	}
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	return nil
}

func (r *fileRecorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	source := r.source
	r.mu.Unlock()

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read audio source: %w", err)
	}
	artifact := filepath.Join(os.TempDir(), fmt.Sprintf("voicelink_capture_%d%s", time.Now().UnixNano(), filepath.Ext(source)))
	if err := os.WriteFile(artifact, data, 0o600); err != nil {
		return "", err
	}
	return artifact, nil
}

func (r *fileRecorder) Cancel(ctx context.Context) error { return nil }

// consolePlayer is the headless speaker port: it reports each received
// segment instead of playing it.
type consolePlayer struct {
	out io.Writer
}

func (p *consolePlayer) Play(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "[speech segment: %d bytes]\n", info.Size())
	return nil
}
