package protocol

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeListenRoundTrip(t *testing.T) {
	msg := ListenStart("mp3", "zh-CN-XiaoxiaoNeural", "请结合北京的历史和文化。")
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.Type != TypeListen || got.State != ListenStateStart {
		t.Fatalf("decoded type=%q state=%q, want listen/start", got.Type, got.State)
	}
	if got.Mode != ListenModeManual || got.Format != "mp3" {
		t.Fatalf("decoded mode=%q format=%q, want manual/mp3", got.Mode, got.Format)
	}
	if got.Voice != msg.Voice || got.Address != msg.Address {
		t.Fatalf("decoded voice=%q address=%q, want %q/%q", got.Voice, got.Address, msg.Voice, msg.Address)
	}
}

func TestDecodeTTSWithEmbeddedAudio(t *testing.T) {
	data := []byte(`{"type":"tts","state":"sentence_start","text":"你好","tts_file":{"data":"SUQz"}}`)

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if msg.Type != TypeTTS || msg.State != TTSStateSentenceStart {
		t.Fatalf("type=%q state=%q, want tts/sentence_start", msg.Type, msg.State)
	}
	if msg.TTSFile == nil || msg.TTSFile.Data != "SUQz" {
		t.Fatalf("tts_file=%+v, want embedded data", msg.TTSFile)
	}
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "delimited string",
			data: `{"type":"follow_up_questions","questions":"A?$B?$C?"}`,
			want: []string{"A?", "B?", "C?"},
		},
		{
			name: "question mark fallback",
			data: `{"type":"follow_up_questions","questions":"A?B?C?"}`,
			want: []string{"A?", "B?", "C?"},
		},
		{
			name: "array passthrough",
			data: `{"type":"follow_up_questions","questions":["去哪里?","吃什么?"]}`,
			want: []string{"去哪里?", "吃什么?"},
		},
		{
			name: "empty string",
			data: `{"type":"follow_up_questions","questions":""}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			got := msg.Questions.Parse()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse()=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeOmitsEmptyQuestions(t *testing.T) {
	data, err := Encode(Hello("dev", "name", "00:11:22:33:44:55", "tok"))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if string(data) == "" {
		t.Fatal("Encode returned empty payload")
	}
	for _, forbidden := range []string{"questions", "tts_file"} {
		if strings.Contains(string(data), forbidden) {
			t.Fatalf("hello payload contains %q: %s", forbidden, data)
		}
	}
}

func TestIsAudioPayload(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  bool
	}{
		{name: "id3 tag", frame: []byte{'I', 'D', '3', 0x04, 0x00}, want: true},
		{name: "mpeg frame sync", frame: []byte{0xFF, 0xFB, 0x90, 0x00}, want: true},
		{name: "json text", frame: []byte(`{"type":"tts"}`), want: false},
		{name: "too short", frame: []byte{0xFF, 0xFB}, want: false},
		{name: "random bytes", frame: []byte{0x00, 0x01, 0x02, 0x03}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAudioPayload(tt.frame); got != tt.want {
				t.Fatalf("IsAudioPayload=%v, want %v", got, tt.want)
			}
		})
	}
}
