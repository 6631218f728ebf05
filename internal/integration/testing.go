package integration

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"telehaunt/internal/adapter/pages"
	"telehaunt/internal/domain"
	"telehaunt/internal/infra/clock"
	"telehaunt/internal/usecase/cancel"
	"telehaunt/internal/usecase/eventbus"
	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/transition"
	"telehaunt/internal/usecase/viewer"
)

// Config holds integration test configuration from environment
type Config struct {
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	cfg := &Config{
		TestTimeout: 30 * time.Second,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
	if v := os.Getenv("TELEHAUNT_TEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TestTimeout = d
		}
	}
	return cfg
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Stack is a fully wired viewer on the wall clock with the built-in pages.
type Stack struct {
	Bus       *eventbus.Bus
	Registry  *cancel.Registry
	Source    *pages.Source
	Animation *reveal.Animation
	Sequencer *transition.Sequencer
	Viewer    *viewer.Viewer
}

// NewStack wires a stack with short timings and registers cleanup on t.
func NewStack(t *testing.T) *Stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	clk := clock.NewSystem()

	s := &Stack{Bus: eventbus.New(logger)}
	s.Registry = cancel.NewRegistry(clk, s.Bus, logger)
	s.Source = pages.NewSource(clk, 20*time.Millisecond, logger)
	if err := s.Source.LoadEmbedded(); err != nil {
		t.Fatalf("load pages: %v", err)
	}

	rc := reveal.DefaultConfig()
	rc.Speed = 100
	anim, err := reveal.New(clk, rc, s.Bus, logger)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	s.Animation = anim

	s.Sequencer = transition.NewSequencer(clk, transition.Config{
		Themes: transition.NewThemeTable(40*time.Millisecond,
			transition.Theme{Key: "classic", Name: "Classic"},
			transition.Theme{Key: "haunting", Name: "Haunting", Duration: 80 * time.Millisecond, Haunting: true},
		),
		BannerVisible: 50 * time.Millisecond,
		BannerFade:    20 * time.Millisecond,
		Initial:       "classic",
	}, s.Bus, logger)

	s.Viewer, err = viewer.New(viewer.Deps{
		Registry:  s.Registry,
		Source:    s.Source,
		Animation: s.Animation,
		Sequencer: s.Sequencer,
		Clock:     clk,
		Bus:       s.Bus,
		Logger:    logger,
	}, viewer.Config{StartPage: pages.FirstPage, FetchTimeout: time.Second, ShowBanner: true})
	if err != nil {
		t.Fatalf("viewer: %v", err)
	}

	t.Cleanup(func() {
		s.Viewer.Close()
		s.Sequencer.Close()
		s.Animation.Close()
		s.Registry.Reset()
		s.Bus.Close()
	})
	return s
}

// Await returns a channel that receives every event of the given type.
func (s *Stack) Await(t *testing.T, eventType domain.EventType) <-chan domain.Event {
	t.Helper()
	ch := make(chan domain.Event, 16)
	unsub := s.Bus.Subscribe(eventType, func(_ context.Context, e domain.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	t.Cleanup(unsub)
	return ch
}
