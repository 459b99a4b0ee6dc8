package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"fintrack/internal/config"
)

func TestSetupLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "owner_id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["msg"] != "kept" || entry["owner_id"] != float64(7) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetupLoggerDefaultsToText(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&config.Config{LogLevel: "bogus"}, &buf)
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output at info, got %q", buf.String())
	}
}
