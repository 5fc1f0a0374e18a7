package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/huisuda/voicelink/internal/settings"
	"github.com/huisuda/voicelink/internal/storage"
)

type fakeService struct {
	connected bool
	state     string
	sent      []string
	voiceID   int
	region    string
	language  string
}

func (s *fakeService) Connect(ctx context.Context) error { s.connected = true; return nil }
func (s *fakeService) Disconnect()                       { s.connected = false }
func (s *fakeService) Reconnect(ctx context.Context) error {
	s.connected = true
	return nil
}
func (s *fakeService) Established() bool         { return s.connected }
func (s *fakeService) ConversationState() string { return s.state }
func (s *fakeService) SetRegion(region string)   { s.region = region }
func (s *fakeService) SetLanguage(code string)   { s.language = code }

func (s *fakeService) Voices() []settings.Voice {
	return []settings.Voice{{ID: 1, Code: "zh-CN-XiaoxiaoNeural"}}
}

func (s *fakeService) DeleteTranscript(string) bool { return false }

func (s *fakeService) SendText(ctx context.Context, text string) error {
	if !s.connected {
		return errors.New("not connected")
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeService) SelectVoice(id int) error {
	if id != 1 {
		return errors.New("unknown voice")
	}
	s.voiceID = id
	return nil
}

func (s *fakeService) Transcripts() []storage.TranscriptInfo { return nil }
func (s *fakeService) Transcript(uid string) ([]storage.Entry, error) {
	return nil, errors.New("transcript not found")
}

func newTestRouter(service Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(service, nil)
}

func TestStatusEndpoint(t *testing.T) {
	service := &fakeService{connected: true, state: "idle"}
	router := newTestRouter(service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"connected":true`) || !strings.Contains(body, `"state":"idle"`) {
		t.Fatalf("body=%s, want connected state", body)
	}
}

func TestMessageEndpoint(t *testing.T) {
	service := &fakeService{connected: true}
	router := newTestRouter(service)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"你好"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if len(service.sent) != 1 || service.sent[0] != "你好" {
		t.Fatalf("sent=%v, want forwarded prompt", service.sent)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d for empty text, want 400", rec.Code)
	}
}

func TestMessageEndpointWhenDisconnected(t *testing.T) {
	service := &fakeService{connected: false}
	router := newTestRouter(service)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409 when disconnected", rec.Code)
	}
}

func TestVoiceEndpoint(t *testing.T) {
	service := &fakeService{}
	router := newTestRouter(service)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/voice", strings.NewReader(`{"id":1}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || service.voiceID != 1 {
		t.Fatalf("status=%d voice=%d, want selection applied", rec.Code, service.voiceID)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/voice", strings.NewReader(`{"id":42}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d for unknown voice, want 400", rec.Code)
	}
}

func TestTranscriptNotFound(t *testing.T) {
	router := newTestRouter(&fakeService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcripts/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/transcripts/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete status=%d, want 404", rec.Code)
	}
}
