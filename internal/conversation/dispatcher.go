package conversation

import (
	"encoding/base64"

	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/protocol"
	"github.com/huisuda/voicelink/internal/timeout"
)

// The backend emits a lone smiley as a content-free acknowledgement; it is
// suppressed rather than surfaced as an assistant reply.
const decorativeGlyph = "😊"

// Events holds the optional callbacks invoked while dispatching inbound
// control messages.
type Events struct {
	OnHello          func(notice string)
	OnAssistantText  func(text string)
	OnRecognizedText func(text string)
	OnSpeechState    func(state string, text string)
	OnSpeechAudio    func(audio []byte)
	OnFollowUps      func(questions []string)
}

// Dispatcher decodes inbound text frames, advances the state machine, and
// routes payloads to the registered callbacks. Every inbound message counts
// as a server acknowledgement and disarms the response supervisor, unknown
// types included.
type Dispatcher struct {
	machine    *Machine
	supervisor *timeout.Supervisor
	logger     *zap.Logger
	events     Events
}

// NewDispatcher creates a dispatcher bound to a machine and supervisor.
func NewDispatcher(machine *Machine, supervisor *timeout.Supervisor, events Events, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		machine:    machine,
		supervisor: supervisor,
		logger:     logger,
		events:     events,
	}
}

// HandleFrame processes one inbound text frame.
func (d *Dispatcher) HandleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		d.logger.Warn("undecodable control message", zap.Error(err))
		return
	}
	d.supervisor.Disarm()

	switch msg.Type {
	case protocol.TypeHello:
		d.logger.Info("server hello acknowledged", zap.String("notice", msg.Notice))
		if d.events.OnHello != nil {
			d.events.OnHello(msg.Notice)
		}
	case protocol.TypeTTS:
		d.handleTTS(msg)
	case protocol.TypeSTT:
		if msg.Text != "" && d.events.OnRecognizedText != nil {
			d.events.OnRecognizedText(msg.Text)
		}
	case protocol.TypeLLM:
		d.handleLLM(msg)
	case protocol.TypeFollowUpQuestions:
		d.handleFollowUps(msg)
	default:
		d.logger.Warn("unrecognized message type", zap.String("type", msg.Type))
	}
}

func (d *Dispatcher) handleTTS(msg protocol.Message) {
	switch msg.State {
	case protocol.TTSStateStart:
		d.machine.OnSpeechStart()
	case protocol.TTSStateSentenceStart:
		if msg.Text != "" && d.events.OnAssistantText != nil {
			d.events.OnAssistantText(msg.Text)
		}
		if msg.TTSFile != nil && msg.TTSFile.Data != "" {
			d.emitEmbeddedAudio(msg.TTSFile.Data)
		}
	case protocol.TTSStateSentenceEnd:
		d.logger.Debug("speech segment finished", zap.String("text", msg.Text))
	case protocol.TTSStateStop:
		d.machine.OnSpeechStop()
	default:
		d.logger.Warn("unrecognized tts state", zap.String("state", msg.State))
	}
	if d.events.OnSpeechState != nil {
		d.events.OnSpeechState(msg.State, msg.Text)
	}
}

func (d *Dispatcher) handleLLM(msg protocol.Message) {
	if msg.Text == "" || msg.Text == decorativeGlyph {
		return
	}
	if d.events.OnAssistantText != nil {
		d.events.OnAssistantText(msg.Text)
	}
}

func (d *Dispatcher) handleFollowUps(msg protocol.Message) {
	questions := msg.Questions.Parse()
	d.machine.OnFollowUps()
	d.logger.Info("follow-up questions received", zap.Int("count", len(questions)))
	if d.events.OnFollowUps != nil {
		d.events.OnFollowUps(questions)
	}
}

func (d *Dispatcher) emitEmbeddedAudio(encoded string) {
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		d.logger.Warn("undecodable embedded speech segment", zap.Error(err))
		return
	}
	if len(audio) > 0 && d.events.OnSpeechAudio != nil {
		d.events.OnSpeechAudio(audio)
	}
}
