// Package protocol defines the control-message envelope exchanged with the
// voice backend and the helpers for decoding its quirkier payloads.
package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Recognized message types.
const (
	TypeHello             = "hello"
	TypeListen            = "listen"
	TypeTTS               = "tts"
	TypeSTT               = "stt"
	TypeLLM               = "llm"
	TypeFollowUpQuestions = "follow_up_questions"
)

// Listen message states and mode.
const (
	ListenModeManual  = "manual"
	ListenStateDetect = "detect"
	ListenStateStart  = "start"
	ListenStateStop   = "stop"
)

// TTS stream states.
const (
	TTSStateStart         = "start"
	TTSStateSentenceStart = "sentence_start"
	TTSStateSentenceEnd   = "sentence_end"
	TTSStateStop          = "stop"
)

// TTSFile carries base64-encoded audio embedded in a tts message.
type TTSFile struct {
	Data string `json:"data"`
}

// Message is the discriminated control envelope. Exactly one Type is set per
// message; the remaining fields are populated per type.
type Message struct {
	Type string `json:"type"`

	// hello
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	DeviceMAC  string `json:"device_mac,omitempty"`
	Token      string `json:"token,omitempty"`

	// listen / tts
	Mode    string `json:"mode,omitempty"`
	State   string `json:"state,omitempty"`
	Format  string `json:"format,omitempty"`
	Voice   string `json:"voice,omitempty"`
	Text    string `json:"text,omitempty"`
	Address string `json:"address,omitempty"`

	// tts
	TTSFile *TTSFile `json:"tts_file,omitempty"`

	// follow_up_questions; either a JSON array or a raw delimited string
	Questions *RawQuestions `json:"questions,omitempty"`

	// free-form server notice attached to some hello replies
	Notice string `json:"message,omitempty"`
}

// Encode serializes a message for a text frame.
func Encode(msg Message) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	return data, nil
}

// Decode parses an inbound text frame into a message envelope.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode control message: %w", err)
	}
	return msg, nil
}

// Hello builds the handshake message carrying device identity.
func Hello(deviceID, deviceName, deviceMAC, token string) Message {
	return Message{
		Type:       TypeHello,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		DeviceMAC:  deviceMAC,
		Token:      token,
	}
}

// ListenDetect builds the text-prompt message.
func ListenDetect(text string, voice string) Message {
	return Message{
		Type:  TypeListen,
		Mode:  ListenModeManual,
		State: ListenStateDetect,
		Text:  text,
		Voice: voice,
	}
}

// ListenStart builds the begin-signal of a three-phase upload.
func ListenStart(format string, voice string, address string) Message {
	return Message{
		Type:    TypeListen,
		Mode:    ListenModeManual,
		State:   ListenStateStart,
		Format:  format,
		Voice:   voice,
		Address: address,
	}
}

// ListenStop builds the end-signal of a three-phase upload.
func ListenStop(format string, voice string) Message {
	return Message{
		Type:   TypeListen,
		Mode:   ListenModeManual,
		State:  ListenStateStop,
		Format: format,
		Voice:  voice,
	}
}
