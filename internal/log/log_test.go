package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be filtered at warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message should be logged")
	}
	if !strings.Contains(out, "error message") {
		t.Error("error message should be logged")
	}
}

func TestLoggerFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, Prefix: "test"})

	logger.Error("failed after %d attempts", 3)

	out := buf.String()
	if !strings.Contains(out, "[ERROR]") {
		t.Errorf("output missing level tag: %q", out)
	}
	if !strings.Contains(out, "test:") {
		t.Errorf("output missing prefix: %q", out)
	}
	if !strings.Contains(out, "failed after 3 attempts") {
		t.Errorf("output missing formatted message: %q", out)
	}
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.WithField("provider", "engine").Info("started")

	out := buf.String()
	if !strings.Contains(out, "provider=engine") {
		t.Errorf("output missing field: %q", out)
	}

	// The base logger must not carry the field.
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "provider=") {
		t.Error("WithField mutated the base logger")
	}
}

func TestNullLoggerDiscards(t *testing.T) {
	// Must not panic despite having no output writer.
	Null.Error("dropped")
	Null.WithComponent("x").Info("dropped")
}

func TestSetLevelTakesEffect(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("before")
	logger.SetLevel(LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("debug message should be filtered before SetLevel")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug message should be logged after SetLevel")
	}
}
