package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_Attributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithComponent("locate").WithDevice("iPhone").Info("device located", "source", "device")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["component"] != "locate" {
		t.Errorf("component = %v, want locate", entry["component"])
	}
	if entry["device"] != "iPhone" {
		t.Errorf("device = %v, want iPhone", entry["device"])
	}
	if entry["source"] != "device" {
		t.Errorf("source = %v, want device", entry["source"])
	}
}

func TestLogger_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithRequestID("").Info("refresh started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	id, _ := entry["request_id"].(string)
	if id == "" {
		t.Error("empty request id should be replaced with a generated one")
	}
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	ctx := logger.WithContext(context.Background())
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext should return the stored logger")
	}

	// Without a stored logger, FromContext falls back to a default.
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext should never return nil")
	}
}
