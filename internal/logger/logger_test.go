package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONLinesToFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:  "info",
		Stdout: false,
		File: FileConfig{
			Enabled: true,
			Path:    dir,
			Name:    "test.log",
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	logger.Info("session established", zap.String("device_id", "uniapp_device"))
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"session established"`) {
		t.Fatalf("log line=%q, want JSON encoded message", line)
	}
	if !strings.Contains(line, `"device_id":"uniapp_device"`) {
		t.Fatalf("log line=%q, want structured field", line)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level: "warn",
		File: FileConfig{
			Enabled: true,
			Path:    dir,
			Name:    "test.log",
		},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if strings.Contains(line, "suppressed") {
		t.Fatalf("log=%q, info line should be filtered at warn level", line)
	}
	if !strings.Contains(line, "kept") {
		t.Fatalf("log=%q, warn line missing", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw); got != tt.want {
			t.Fatalf("parseLevel(%q)=%v, want %v", tt.raw, got, tt.want)
		}
	}
}
