package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIncludesSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "reveal.yaml", `
reveal:
  speed: 55
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "reveal.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reveal.Speed != 55 {
		t.Errorf("Reveal.Speed = %d, want 55", cfg.Reveal.Speed)
	}
	if cfg.Includes != nil {
		t.Errorf("Includes = %v, want nil after load", cfg.Includes)
	}
}

func TestIncludesThemePack(t *testing.T) {
	dir := t.TempDir()
	themes := filepath.Join(dir, "themes")
	if err := os.Mkdir(themes, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, themes, "static.yaml", `
transition:
  themes:
    - key: "static"
      name: "Static"
      duration: 250ms
`)
	writeConfigFile(t, themes, "crt.yaml", `
transition:
  themes:
    - key: "crt"
      name: "CRT"
      haunting: true
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "themes/*.yaml"
transition:
  default_theme: "static"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, key := range []string{"classic", "haunting", "static", "crt"} {
		if _, ok := cfg.Transition.Theme(key); !ok {
			t.Errorf("theme %q missing after includes", key)
		}
	}
	static, _ := cfg.Transition.Theme("static")
	if static.Duration != 250*time.Millisecond {
		t.Errorf("static duration = %v, want 250ms", static.Duration)
	}
	if cfg.Transition.DefaultTheme != "static" {
		t.Errorf("DefaultTheme = %q, want static", cfg.Transition.DefaultTheme)
	}
}

func TestIncludesGlobNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "themes/*.yaml"
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestIncludesNested(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "leaf.yaml", `
logger:
  level: "warn"
`)
	writeConfigFile(t, dir, "mid.yaml", `
includes:
  - "leaf.yaml"
reveal:
  speed: 80
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "mid.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want warn", cfg.Logger.Level)
	}
	if cfg.Reveal.Speed != 80 {
		t.Errorf("Reveal.Speed = %d, want 80", cfg.Reveal.Speed)
	}
}

func TestIncludesMainPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "override.yaml", `
reveal:
  speed: 50
  cursor_char: "▌"
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "override.yaml"
reveal:
  speed: 95
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reveal.Speed != 95 {
		t.Errorf("Reveal.Speed = %d, want 95 (main should win)", cfg.Reveal.Speed)
	}
	if cfg.Reveal.CursorChar != "▌" {
		t.Errorf("CursorChar = %q, want %q", cfg.Reveal.CursorChar, "▌")
	}
}

func TestIncludesCircularDetection(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.yaml", `
includes:
  - "b.yaml"
`)
	writeConfigFile(t, dir, "b.yaml", `
includes:
  - "a.yaml"
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "a.yaml"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected circular include error")
	}
	if !strings.Contains(err.Error(), "circular include") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIncludesSelfReference(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "config.yaml"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "circular include") {
		t.Fatalf("expected circular include error, got %v", err)
	}
}

func TestIncludesPathTraversal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "../outside.yaml"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "escapes config directory") {
		t.Fatalf("expected path escape error, got %v", err)
	}
}

func TestIncludesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "missing.yaml"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "read") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestIncludesMaxDepth(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i <= maxIncludeDepth+1; i++ {
		writeConfigFile(t, dir, fmt.Sprintf("d%d.yaml", i), fmt.Sprintf("includes:\n  - \"d%d.yaml\"\n", i+1))
	}
	writeConfigFile(t, dir, fmt.Sprintf("d%d.yaml", maxIncludeDepth+2), "")
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"d0.yaml\"\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "max depth") {
		t.Fatalf("expected max depth error, got %v", err)
	}
}

func TestMergeThemes(t *testing.T) {
	base := []ThemeConfig{{Key: "a", Name: "A"}, {Key: "b", Name: "B"}}
	got := mergeThemes(base, []ThemeConfig{{Key: "b", Name: "B2"}, {Key: "c", Name: "C"}})

	want := []string{"A", "B2", "C"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("got[%d].Name = %q, want %q", i, got[i].Name, name)
		}
	}
	if base[1].Name != "B" {
		t.Error("mergeThemes modified its input")
	}
}
