package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telehaunt/internal/infra/config"
)

func TestNewJSONLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	cfg := config.LoggerConfig{Level: "info", Format: "json", Output: path}

	log, closer, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("test message", "key", "value")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"msg":"test message"`, `"app":"telehaunt"`, `"key":"value"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOpenOutputStandardStreams(t *testing.T) {
	tests := []struct {
		output string
		want   io.Writer
	}{
		{"stdout", os.Stdout},
		{"stderr", os.Stderr},
		{"", os.Stderr},
		{"discard", io.Discard},
		{"none", io.Discard},
	}
	for _, tt := range tests {
		w, closer, err := openOutput(tt.output)
		if err != nil {
			t.Fatalf("openOutput(%q): %v", tt.output, err)
		}
		if w != tt.want {
			t.Errorf("openOutput(%q) returned %v", tt.output, w)
		}
		if err := closer(); err != nil {
			t.Errorf("closer(%q): %v", tt.output, err)
		}
	}
}

func TestOpenOutputFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "test.log")

	w, closer, err := openOutput(path)
	if err != nil {
		t.Fatalf("openOutput(file): %v", err)
	}
	if _, err := w.Write([]byte("test log line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "test log line\n" {
		t.Errorf("file content = %q", string(data))
	}
}

func TestOpenOutputInvalidPath(t *testing.T) {
	// A regular file cannot act as a parent directory.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := openOutput(filepath.Join(blocker, "log.txt")); err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestNewLoggerInvalidOutput(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	cfg := config.LoggerConfig{Level: "info", Format: "text", Output: filepath.Join(blocker, "app.log")}
	if _, _, err := New(cfg); err == nil {
		t.Error("expected error for invalid output path")
	}
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := config.LoggerConfig{Level: "warn", Format: "text", Output: path}

	log, closer, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("should be filtered")
	log.Warn("should appear")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	output := string(data)
	if strings.Contains(output, "should be filtered") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("warn message should appear at warn level")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Component(base, "reveal").Info("tick")
	if !strings.Contains(buf.String(), "component=reveal") {
		t.Errorf("output %q missing component attr", buf.String())
	}
	if Component(nil, "x") == nil {
		t.Error("Component(nil) should fall back to the default logger")
	}
}
