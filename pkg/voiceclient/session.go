// Package voiceclient assembles the transport, conversation, capture,
// upload, and playback pieces into one voice session.
package voiceclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/capture"
	"github.com/huisuda/voicelink/internal/config"
	"github.com/huisuda/voicelink/internal/connection"
	"github.com/huisuda/voicelink/internal/conversation"
	"github.com/huisuda/voicelink/internal/playback"
	"github.com/huisuda/voicelink/internal/protocol"
	"github.com/huisuda/voicelink/internal/settings"
	"github.com/huisuda/voicelink/internal/storage"
	"github.com/huisuda/voicelink/internal/timeout"
	"github.com/huisuda/voicelink/internal/upload"
)

// Session errors.
var (
	// ErrNotConnected is returned for requests made without an established
	// session.
	ErrNotConnected = errors.New("voiceclient: not connected")
	// ErrConnectionLost reports a transport loss detected by the periodic
	// reconciliation probe rather than by a read or write failure.
	ErrConnectionLost = errors.New("voiceclient: transport connectivity lost")
)

// Events are the consumer-facing session callbacks. All are optional and may
// be invoked from internal goroutines.
type Events struct {
	OnAssistantText  func(text string)
	OnRecognizedText func(text string)
	OnFollowUps      func(questions []string)
	OnSpeechState    func(state string, text string)
	OnTimeout        func()
	OnDisconnected   func(err error)
}

// Session is one device's conversation with the voice backend.
type Session struct {
	cfg    config.Config
	logger *zap.Logger
	events Events

	conn       *connection.Manager
	machine    *conversation.Machine
	supervisor *timeout.Supervisor
	dispatcher *conversation.Dispatcher
	pipeline   *upload.Pipeline
	queue      *playback.Queue
	capture    *capture.Controller
	prefs      *settings.Provider

	mu            sync.Mutex
	transcriptUID string
}

// NewSession wires a session from its platform ports. recorder and player
// are required; haptics may be nil.
func NewSession(cfg config.Config, recorder capture.Recorder, player playback.Player, haptics capture.Haptics, events Events, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prefs, err := settings.NewProvider()
	if err != nil {
		return nil, err
	}
	if cfg.Voice != 0 {
		if err := prefs.SelectVoice(cfg.Voice); err != nil {
			return nil, err
		}
	}
	prefs.SetRegion(cfg.Region)
	prefs.SetLanguage(cfg.Language)

	s := &Session{
		cfg:     cfg,
		logger:  logger,
		events:  events,
		machine: conversation.NewMachine(),
		prefs:   prefs,
		queue:   playback.NewQueue(player, cfg.TempDir, logger),
	}

	s.supervisor = timeout.New(logger, s.onResponseTimeout)

	s.dispatcher = conversation.NewDispatcher(s.machine, s.supervisor, conversation.Events{
		OnAssistantText: func(text string) {
			s.recordEntry("assistant", text)
			if events.OnAssistantText != nil {
				events.OnAssistantText(text)
			}
		},
		OnRecognizedText: func(text string) {
			s.recordEntry("user", text)
			if events.OnRecognizedText != nil {
				events.OnRecognizedText(text)
			}
		},
		OnSpeechState: events.OnSpeechState,
		OnSpeechAudio: func(audio []byte) {
			s.queue.Enqueue(context.Background(), audio)
		},
		OnFollowUps: events.OnFollowUps,
	}, logger)

	s.conn = connection.NewManager(connection.Config{
		ServerURL:         cfg.ServerURL,
		DeviceID:          cfg.DeviceID,
		DeviceName:        cfg.DeviceName,
		DeviceMAC:         cfg.DeviceMAC,
		Token:             cfg.AccessToken,
		ReconnectDelay:    cfg.Connection.ReconnectDelay(),
		ReconcileInterval: cfg.Connection.ReconcileInterval(),
	}, connection.Callbacks{
		OnMessage: s.dispatcher.HandleFrame,
		OnAudio: func(frame []byte) {
			s.queue.Enqueue(context.Background(), frame)
		},
		OnDisconnected: func(err error) {
			s.supervisor.Disarm()
			s.machine.Reset()
			if events.OnDisconnected != nil {
				events.OnDisconnected(err)
			}
		},
		OnStateDrift: func(observed bool, actual bool) {
			s.supervisor.Disarm()
			s.machine.Reset()
			if events.OnDisconnected != nil {
				events.OnDisconnected(ErrConnectionLost)
			}
		},
	}, logger)

	s.pipeline = upload.NewPipeline(upload.Config{
		Format:       cfg.Capture.Format,
		SettleDelay:  cfg.Upload.SettleDelay(),
		ArtifactWait: cfg.Upload.ArtifactWait(),
	}, s.conn, logger)

	s.capture = capture.NewController(capture.Config{
		MinDuration:    cfg.Capture.MinDuration(),
		MaxDuration:    cfg.Capture.MaxDuration(),
		CancelDistance: float64(cfg.Capture.CancelDistance),
		DensityScale:   cfg.Capture.DensityScale,
		SampleRate:     cfg.Capture.SampleRate,
		Channels:       cfg.Capture.Channels,
		BitRate:        cfg.Capture.BitRate,
		Format:         cfg.Capture.Format,
	}, recorder, haptics, s.conn.Established, s.onCaptureFinished, logger)

	return s, nil
}

// Connect establishes the backend session and opens a fresh transcript when
// history saving is enabled.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		return err
	}
	s.machine.Reset()

	if s.cfg.SaveHistory {
		uid, err := storage.CreateTranscript(s.cfg.TranscriptDir, s.cfg.DeviceID)
		if err != nil {
			s.logger.Warn("transcript creation failed", zap.Error(err))
		} else {
			s.mu.Lock()
			s.transcriptUID = uid
			s.mu.Unlock()
		}
	}
	return nil
}

// Disconnect tears the backend session down.
func (s *Session) Disconnect() {
	s.conn.Disconnect()
	s.supervisor.Disarm()
	s.machine.Reset()
}

// Reconnect cycles the backend session.
func (s *Session) Reconnect(ctx context.Context) error {
	s.supervisor.Disarm()
	s.machine.Reset()
	return s.conn.Reconnect(ctx)
}

// Close shuts the session down for good.
func (s *Session) Close() {
	s.supervisor.Disarm()
	s.conn.Close()
}

// Established reports whether the backend session is live.
func (s *Session) Established() bool {
	return s.conn.Established()
}

// ConversationState returns the current conversation state.
func (s *Session) ConversationState() string {
	return string(s.machine.State())
}

// SendText submits a text prompt. The context hint for region and language
// is appended to the prompt text, and the response deadline is armed.
func (s *Session) SendText(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("voiceclient: empty prompt")
	}
	if !s.conn.Established() {
		return ErrNotConnected
	}

	msg := protocol.ListenDetect(s.prefs.DecoratePrompt(text), s.prefs.VoiceCode())
	if err := s.conn.SendMessage(ctx, msg); err != nil {
		return err
	}

	s.recordEntry("user", text)
	s.machine.OnRequestSent()
	s.supervisor.Arm(s.cfg.Connection.ResponseTimeout())
	return nil
}

// StartCapture begins a microphone recording session.
func (s *Session) StartCapture(ctx context.Context) error {
	return s.capture.StartCapture(ctx)
}

// TouchStart begins a touch-held recording at the given origin.
func (s *Session) TouchStart(ctx context.Context, originY float64) error {
	return s.capture.TouchStart(ctx, originY)
}

// TouchMove updates the drag-to-cancel evaluation.
func (s *Session) TouchMove(currentY float64) {
	s.capture.TouchMove(currentY)
}

// TouchEnd completes the touch gesture.
func (s *Session) TouchEnd(ctx context.Context) error {
	return s.capture.TouchEnd(ctx)
}

// CancelCapture discards any in-progress recording.
func (s *Session) CancelCapture(ctx context.Context) error {
	return s.capture.CancelCapture(ctx)
}

// FinishCapture stops the recording and uploads it.
func (s *Session) FinishCapture(ctx context.Context) error {
	return s.capture.FinishCapture(ctx)
}

// IsCancelling reports whether the active drag is past the cancel threshold.
func (s *Session) IsCancelling() bool {
	return s.capture.IsCancelling()
}

// Voices lists the available speech voices.
func (s *Session) Voices() []settings.Voice {
	return s.prefs.Voices()
}

// SelectVoice switches the active speech voice.
func (s *Session) SelectVoice(id int) error {
	return s.prefs.SelectVoice(id)
}

// SetRegion updates the region woven into outgoing prompts.
func (s *Session) SetRegion(region string) {
	s.prefs.SetRegion(region)
}

// SetLanguage updates the requested reply language.
func (s *Session) SetLanguage(code string) {
	s.prefs.SetLanguage(code)
}

// Transcripts lists the device's stored transcripts.
func (s *Session) Transcripts() []storage.TranscriptInfo {
	return storage.ListTranscripts(s.cfg.TranscriptDir, s.cfg.DeviceID)
}

// Transcript returns the lines of one stored transcript.
func (s *Session) Transcript(uid string) ([]storage.Entry, error) {
	return storage.GetTranscript(s.cfg.TranscriptDir, s.cfg.DeviceID, uid)
}

// DeleteTranscript removes one stored transcript.
func (s *Session) DeleteTranscript(uid string) bool {
	return storage.DeleteTranscript(s.cfg.TranscriptDir, s.cfg.DeviceID, uid)
}

// WaitPlayback blocks until queued speech finishes playing.
func (s *Session) WaitPlayback(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// onCaptureFinished runs for every normally finished recording. The upload
// happens off the gesture path; the response deadline covers both the upload
// and the backend's reply.
func (s *Session) onCaptureFinished(artifact string, duration time.Duration) {
	s.machine.OnRequestSent()
	s.supervisor.Arm(s.cfg.Connection.ResponseTimeout())

	go func() {
		err := s.pipeline.UploadFile(context.Background(), artifact, s.prefs.VoiceCode(), s.prefs.ContextHint(), nil)
		if err != nil {
			s.logger.Warn("recording upload failed", zap.String("artifact", artifact), zap.Error(err))
			s.supervisor.Disarm()
			s.machine.Reset()
		}
	}()
}

func (s *Session) onResponseTimeout() {
	s.machine.Reset()
	if s.events.OnTimeout != nil {
		s.events.OnTimeout()
	}
}

func (s *Session) recordEntry(role string, content string) {
	if !s.cfg.SaveHistory {
		return
	}
	s.mu.Lock()
	uid := s.transcriptUID
	s.mu.Unlock()
	if uid == "" {
		return
	}

	entry := storage.Entry{Role: role, Content: content}
	if role == "assistant" {
		entry.Voice = s.prefs.VoiceCode()
	}
	if err := storage.AppendEntry(s.cfg.TranscriptDir, s.cfg.DeviceID, uid, entry); err != nil {
		s.logger.Warn("transcript append failed", zap.Error(err))
	}
}
