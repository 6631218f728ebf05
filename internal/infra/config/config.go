package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Reveal     RevealConfig     `yaml:"reveal"`
	Transition TransitionConfig `yaml:"transition"`
	Pages      PagesConfig      `yaml:"pages"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Includes   []string         `yaml:"includes,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Output   string `yaml:"output,omitempty"` // stdout exporter target; a file path keeps spans off the terminal UI
}

// RevealConfig holds the character reveal animation settings.
type RevealConfig struct {
	Speed      int    `yaml:"speed"` // characters per second, 50-100
	ShowCursor bool   `yaml:"show_cursor"`
	CursorChar string `yaml:"cursor_char"`
}

// ThemeConfig describes one theme the transition sequencer can switch to.
type ThemeConfig struct {
	Key      string        `yaml:"key"`
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration,omitempty"` // 0 = transition.default_duration
	Haunting bool          `yaml:"haunting,omitempty"`
}

// TransitionConfig holds theme transition timing.
type TransitionConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
	BannerVisible   time.Duration `yaml:"banner_visible"`
	BannerFade      time.Duration `yaml:"banner_fade"`
	ShowBanner      bool          `yaml:"show_banner"`
	DefaultTheme    string        `yaml:"default_theme"`
	Themes          []ThemeConfig `yaml:"themes"`
}

// BreakerConfig configures the circuit breaker guarding page loads.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PagesConfig holds the page source settings.
type PagesConfig struct {
	File          string        `yaml:"file"` // empty = built-in pages
	Latency       time.Duration `yaml:"latency"`
	StartPage     int           `yaml:"start_page"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// ThemeSwitchConfig schedules a switch to Theme. Schedule is a cron
// expression or a duration.
type ThemeSwitchConfig struct {
	Schedule string `yaml:"schedule"`
	Theme    string `yaml:"theme"`
}

// SchedulerConfig holds scheduled theme switches.
type SchedulerConfig struct {
	Enabled  bool                `yaml:"enabled"`
	Switches []ThemeSwitchConfig `yaml:"switches,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Reveal: RevealConfig{
			Speed:      75,
			ShowCursor: true,
			CursorChar: "█",
		},
		Transition: TransitionConfig{
			DefaultDuration: 500 * time.Millisecond,
			BannerVisible:   2 * time.Second,
			BannerFade:      500 * time.Millisecond,
			ShowBanner:      true,
			DefaultTheme:    "classic",
			Themes: []ThemeConfig{
				{Key: "classic", Name: "Classic"},
				{Key: "haunting", Name: "Haunting", Duration: time.Second, Haunting: true},
			},
		},
		Pages: PagesConfig{
			Latency:       150 * time.Millisecond,
			StartPage:     100,
			FetchTimeout:  5 * time.Second,
			RatePerSecond: 5,
			Burst:         3,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := overlay(cfg, data); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: the main file takes precedence over includes.
		if err := overlay(cfg, data); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps TELEHAUNT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEHAUNT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TELEHAUNT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("TELEHAUNT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("TELEHAUNT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("TELEHAUNT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("TELEHAUNT_TRACER_OUTPUT"); v != "" {
		cfg.Tracer.Output = v
	}
	if v := os.Getenv("TELEHAUNT_REVEAL_SPEED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reveal.Speed = n
		}
	}
	if v := os.Getenv("TELEHAUNT_REVEAL_SHOW_CURSOR"); v != "" {
		cfg.Reveal.ShowCursor = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TELEHAUNT_THEME"); v != "" {
		cfg.Transition.DefaultTheme = v
	}
	if v := os.Getenv("TELEHAUNT_PAGES_FILE"); v != "" {
		cfg.Pages.File = v
	}
	if v := os.Getenv("TELEHAUNT_PAGES_LATENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pages.Latency = d
		}
	}
	if v := os.Getenv("TELEHAUNT_START_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pages.StartPage = n
		}
	}
	if v := os.Getenv("TELEHAUNT_SCHEDULER_ENABLED"); v == "true" {
		cfg.Scheduler.Enabled = true
	}
}

// Theme returns the theme with key, if configured.
func (t TransitionConfig) Theme(key string) (ThemeConfig, bool) {
	for _, th := range t.Themes {
		if th.Key == key {
			return th, true
		}
	}
	return ThemeConfig{}, false
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
