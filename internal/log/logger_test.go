package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSetupWritesToWriter(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	var buf bytes.Buffer
	Setup("DEBUG", "json", &buf)
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}

	Debug("ping", "k", "v")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["msg"] != "ping" {
		t.Errorf("Expected msg 'ping', got %v", out["msg"])
	}
	if out["level"] != "DEBUG" {
		t.Errorf("Expected level DEBUG, got %v", out["level"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "text", &buf)
	l.Info("hello", "run_id", "r1")

	line := buf.String()
	if !strings.Contains(line, "msg=hello") || !strings.Contains(line, "run_id=r1") {
		t.Errorf("unexpected text output: %q", line)
	}
}

func TestContextHelpers(t *testing.T) {
	cases := []struct {
		name  string
		make  func() *slog.Logger
		field string
		want  string
	}{
		{"component", func() *slog.Logger { return WithComponent("poller") }, "component", "poller"},
		{"run", func() *slog.Logger { return WithRun("r1") }, "run_id", "r1"},
		{"workspace", func() *slog.Logger { return WithWorkspace("ws1") }, "workspace_id", "ws1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger = slog.New(slog.NewJSONHandler(&buf, nil))

			tc.make().Info("hello")

			var out map[string]any
			if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
				t.Fatalf("Failed to decode JSON: %v", err)
			}
			if out[tc.field] != tc.want {
				t.Errorf("Expected %s %q, got %v", tc.field, tc.want, out[tc.field])
			}
		})
	}
}
