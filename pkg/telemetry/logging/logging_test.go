package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info message written at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "u-42")
	ctx = WithJob(ctx, "compliance_sweep")
	logger.InfoContext(ctx, "evaluated", "score", 80)

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "req-1" || entry["user_id"] != "u-42" || entry["job"] != "compliance_sweep" {
		t.Errorf("context fields missing: %v", entry)
	}
	if entry["score"] != float64(80) {
		t.Errorf("score = %v", entry["score"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, RedactPII: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.With("student_id", "S1234567").Info("feedback submitted",
		"note", "contact jane.doe@uni.example from 10.1.2.3",
		"ip_address", "192.168.1.20",
		"user_id", "u-42",
		slog.Group("request", slog.String("email", "bob@uni.example")),
	)

	entry := decodeLine(t, &buf)
	if entry["student_id"] != "S1***" {
		t.Errorf("student_id = %v, want S1***", entry["student_id"])
	}
	if note := entry["note"].(string); note != "contact j***@uni.example from 10.*.*.*" {
		t.Errorf("note = %q", note)
	}
	if entry["ip_address"] != "19***" {
		t.Errorf("ip_address = %v", entry["ip_address"])
	}
	if entry["user_id"] != "u-42" {
		t.Errorf("user_id should not be redacted, got %v", entry["user_id"])
	}
	group := entry["request"].(map[string]any)
	if group["email"] != "bo***" {
		t.Errorf("grouped email = %v", group["email"])
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf})

	logger.Info("x", "email", "bob@uni.example")
	if entry := decodeLine(t, &buf); entry["email"] != "bob@uni.example" {
		t.Errorf("email = %v, want unredacted", entry["email"])
	}
}

func TestRedactHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"email", RedactEmail, "alice@example.com", "a***@example.com"},
		{"email no user", RedactEmail, "@example.com", "***@example.com"},
		{"not email", RedactEmail, "alice", "alice"},
		{"ipv4", RedactIPv4, "172.16.0.1", "172.*.*.*"},
		{"bearer", NewRedactor().RedactString, "Authorization: Bearer abc.def", "Authorization: Bearer ***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
