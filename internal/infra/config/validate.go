package config

import (
	"fmt"
	"strings"

	"telehaunt/internal/domain"
)

// Reveal speed bounds, in characters per second.
const (
	MinRevealSpeed = 50
	MaxRevealSpeed = 100
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets callers match validation failures with domain.ErrConfigLoad.
func (v *ValidationError) Unwrap() error { return domain.ErrConfigLoad }

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateReveal(cfg, ve)
	validateTransition(cfg, ve)
	validatePages(cfg, ve)
	validateScheduler(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "noop", "stdout", "":
	default:
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}

func validateReveal(cfg *Config, ve *ValidationError) {
	if cfg.Reveal.Speed < MinRevealSpeed || cfg.Reveal.Speed > MaxRevealSpeed {
		ve.Add("reveal.speed must be between %d and %d, got %d", MinRevealSpeed, MaxRevealSpeed, cfg.Reveal.Speed)
	}
	if cfg.Reveal.ShowCursor && cfg.Reveal.CursorChar == "" {
		ve.Add("reveal.cursor_char must not be empty when show_cursor is true")
	}
}

func validateTransition(cfg *Config, ve *ValidationError) {
	t := cfg.Transition
	if t.DefaultDuration <= 0 {
		ve.Add("transition.default_duration must be > 0")
	}
	if t.BannerVisible < 0 {
		ve.Add("transition.banner_visible must be >= 0")
	}
	if t.BannerFade < 0 {
		ve.Add("transition.banner_fade must be >= 0")
	}
	if len(t.Themes) == 0 {
		ve.Add("transition.themes must list at least one theme")
	}
	seen := make(map[string]bool, len(t.Themes))
	for i, th := range t.Themes {
		if strings.TrimSpace(th.Key) == "" {
			ve.Add("transition.themes[%d].key must not be empty", i)
			continue
		}
		if seen[th.Key] {
			ve.Add("transition.themes[%d].key %q is duplicated", i, th.Key)
		}
		seen[th.Key] = true
		if th.Duration < 0 {
			ve.Add("transition.themes[%d].duration must be >= 0", i)
		}
	}
	if t.DefaultTheme == "" {
		ve.Add("transition.default_theme must not be empty")
	} else if len(t.Themes) > 0 && !seen[t.DefaultTheme] {
		ve.Add("transition.default_theme %q is not a configured theme", t.DefaultTheme)
	}
}

func validatePages(cfg *Config, ve *ValidationError) {
	p := cfg.Pages
	if p.Latency < 0 {
		ve.Add("pages.latency must be >= 0")
	}
	if p.StartPage < 100 || p.StartPage > 899 {
		ve.Add("pages.start_page must be between 100 and 899, got %d", p.StartPage)
	}
	if p.FetchTimeout <= 0 {
		ve.Add("pages.fetch_timeout must be > 0")
	}
	if p.RatePerSecond <= 0 {
		ve.Add("pages.rate_per_second must be > 0")
	}
	if p.Burst <= 0 {
		ve.Add("pages.burst must be > 0")
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	for i, sw := range cfg.Scheduler.Switches {
		if strings.TrimSpace(sw.Schedule) == "" {
			ve.Add("scheduler.switches[%d].schedule must not be empty", i)
		}
		if _, ok := cfg.Transition.Theme(sw.Theme); !ok {
			ve.Add("scheduler.switches[%d].theme %q is not a configured theme", i, sw.Theme)
		}
	}
}
