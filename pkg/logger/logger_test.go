package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if result := test.level.String(); result != test.expected {
			t.Errorf("Level.String() = %v, expected %v", result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"trace":   TraceLevel,
		"DEBUG":   DebugLevel,
		" info ":  InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitializeRejectsInvalidLevel(t *testing.T) {
	if err := Initialize(Config{Level: Level(42)}); err == nil {
		t.Fatal("Initialize() accepted an invalid level")
	}
}

func TestLoggerPrettyFormatting(t *testing.T) {
	l := New(Config{Level: InfoLevel, Component: "ledger"})

	entry := LogEntry{
		Time:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "ledger written",
		Component: "ledger",
		Fields:    map[string]interface{}{"records": 3, "path": ".guidekit/installed.json"},
	}

	result := l.formatPretty(entry)

	expectedParts := []string{
		"2025-01-01 12:00:00",
		"[INFO]",
		"ledger:",
		"ledger written",
		"{path=.guidekit/installed.json, records=3}",
	}
	for _, part := range expectedParts {
		if !strings.Contains(result, part) {
			t.Errorf("formatPretty() result missing expected part: %s\nResult: %s", part, result)
		}
	}
}

func TestLoggerJSONFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, JSON: true, Component: "test", Output: &buf})

	l.Log(InfoLevel, "test message", String("key", "value"))

	output := strings.TrimSpace(buf.String())
	var parsed LogEntry
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("Log() produced invalid JSON: %v\nOutput: %s", err, output)
	}
	if parsed.Message != "test message" {
		t.Errorf("Parsed JSON message = %v, expected 'test message'", parsed.Message)
	}
	if parsed.Level != "INFO" {
		t.Errorf("Parsed JSON level = %v, expected 'INFO'", parsed.Level)
	}
	if parsed.Fields["key"] != "value" {
		t.Errorf("Parsed JSON fields = %v", parsed.Fields)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Output: &buf})

	l.Log(InfoLevel, "info message")
	l.Log(DebugLevel, "debug message")
	l.Log(WarnLevel, "warn message")
	l.Log(ErrorLevel, "error message")

	output := buf.String()
	if strings.Contains(output, "info message") || strings.Contains(output, "debug message") {
		t.Errorf("messages below WARN should be filtered out: %s", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("WARN and ERROR messages should appear: %s", output)
	}
}

func TestFieldConstructors(t *testing.T) {
	if f := String("key", "value"); f.Key != "key" || f.Value != "value" {
		t.Errorf("String() = %+v", f)
	}
	if f := Int("count", 42); f.Value != 42 {
		t.Errorf("Int() = %+v", f)
	}
	if f := Int64("bytes", 1<<40); f.Value != int64(1<<40) {
		t.Errorf("Int64() = %+v", f)
	}
	if f := Bool("enabled", true); f.Value != true {
		t.Errorf("Bool() = %+v", f)
	}
	if f := Duration("took", 1500*time.Millisecond); f.Value != "1.5s" {
		t.Errorf("Duration() = %+v", f)
	}
	if f := Err(errors.New("test error")); f.Key != "error" || f.Value != "test error" {
		t.Errorf("Err() = %+v", f)
	}
	if f := Err(nil); f.Value != "" {
		t.Errorf("Err(nil) = %+v", f)
	}
}

func TestConvenienceFunctionsAndSetOutput(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, Component: "test"}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("output test message")
	Debug("hidden debug message")
	Warn("visible warning")

	output := buf.String()
	if !strings.Contains(output, "output test message") {
		t.Errorf("Info() did not produce expected output: %s", output)
	}
	if strings.Contains(output, "hidden debug message") {
		t.Errorf("Debug() should be filtered at INFO: %s", output)
	}
	if !strings.Contains(output, "visible warning") {
		t.Errorf("Warn() did not produce expected output: %s", output)
	}
}

func TestFallbackLogging(t *testing.T) {
	defaultMu.Lock()
	original := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()
	defer func() {
		defaultMu.Lock()
		defaultLogger = original
		defaultMu.Unlock()
	}()

	// Must not panic without an initialized logger
	Info("fallback info")
	Warn("fallback warn")
	Error("fallback error")
}
