package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telehaunt/internal/adapter/pages"
	"telehaunt/internal/domain"
	"telehaunt/internal/infra/clock"
	"telehaunt/internal/infra/config"
	"telehaunt/internal/infra/logger"
	"telehaunt/internal/infra/tracer"
	"telehaunt/internal/usecase/cancel"
	"telehaunt/internal/usecase/eventbus"
	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/scheduling"
	"telehaunt/internal/usecase/transition"
	"telehaunt/internal/usecase/viewer"
)

// app holds every long-lived component of a session.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *eventbus.Bus
	registry  *cancel.Registry
	source    *pages.Source
	animation *reveal.Animation
	sequencer *transition.Sequencer
	viewer    *viewer.Viewer
	scheduler *scheduling.Scheduler

	closers []func()
}

// newApp wires the components in dependency order. On error everything
// created so far is released.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	return newAppWithClock(ctx, cfg, clock.NewSystem())
}

func newAppWithClock(ctx context.Context, cfg *config.Config, clk domain.Clock) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return a, fmt.Errorf("init logger: %w", err)
	}
	a.logger = log
	a.closers = append(a.closers, func() { _ = closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return a, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	})

	a.bus = eventbus.New(logger.Component(log, "eventbus"))
	a.bus.SubscribeAll(eventbus.LogHandler(log))
	a.closers = append(a.closers, a.bus.Close)

	a.registry = cancel.NewRegistry(clk, a.bus, logger.Component(log, "registry"))
	a.closers = append(a.closers, a.registry.Reset)

	a.source = pages.NewSource(clk, cfg.Pages.Latency, logger.Component(log, "pages"))
	if cfg.Pages.File != "" {
		err = a.source.LoadFile(cfg.Pages.File)
	} else {
		err = a.source.LoadEmbedded()
	}
	if err != nil {
		return a, fmt.Errorf("load pages: %w", err)
	}

	a.animation, err = reveal.New(clk, revealConfig(cfg.Reveal), a.bus, logger.Component(log, "reveal"))
	if err != nil {
		return a, fmt.Errorf("init reveal: %w", err)
	}
	a.closers = append(a.closers, a.animation.Close)

	a.sequencer = transition.NewSequencer(clk, transition.Config{
		Themes:        themeTable(cfg.Transition),
		BannerVisible: cfg.Transition.BannerVisible,
		BannerFade:    cfg.Transition.BannerFade,
		Initial:       cfg.Transition.DefaultTheme,
	}, a.bus, logger.Component(log, "transition"))
	a.closers = append(a.closers, a.sequencer.Close)

	a.viewer, err = viewer.New(viewer.Deps{
		Registry:  a.registry,
		Source:    a.source,
		Animation: a.animation,
		Sequencer: a.sequencer,
		Clock:     clk,
		Bus:       a.bus,
		Logger:    log,
	}, viewerConfig(cfg))
	if err != nil {
		return a, fmt.Errorf("init viewer: %w", err)
	}
	a.closers = append(a.closers, a.viewer.Close)

	if cfg.Scheduler.Enabled {
		a.scheduler = scheduling.NewScheduler(a.viewer.SetTheme, logger.Component(log, "scheduler"))
		for _, sw := range cfg.Scheduler.Switches {
			if err := a.scheduler.AddSwitch(scheduling.ThemeSwitch{Schedule: sw.Schedule, Theme: sw.Theme}); err != nil {
				return a, fmt.Errorf("schedule theme %q: %w", sw.Theme, err)
			}
		}
		a.closers = append(a.closers, func() { _ = a.scheduler.Stop() })
	}

	log.Info("telehaunt ready",
		"pages", a.source.Len(),
		"origin", a.source.Origin(),
		"theme", cfg.Transition.DefaultTheme,
		"start_page", cfg.Pages.StartPage,
	)
	return a, nil
}

// startScheduler starts the scheduled theme switches, if any.
func (a *app) startScheduler(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	return a.scheduler.Start(ctx)
}

// Close releases components in reverse creation order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func revealConfig(rc config.RevealConfig) reveal.Config {
	cfg := reveal.DefaultConfig()
	if rc.Speed > 0 {
		cfg.Speed = rc.Speed
	}
	cfg.ShowCursor = rc.ShowCursor
	if rc.CursorChar != "" {
		cfg.CursorChar = rc.CursorChar
	}
	return cfg
}

func themeTable(tc config.TransitionConfig) *transition.ThemeTable {
	themes := make([]transition.Theme, 0, len(tc.Themes))
	for _, th := range tc.Themes {
		themes = append(themes, transition.Theme{
			Key:      th.Key,
			Name:     th.Name,
			Duration: th.Duration,
			Haunting: th.Haunting,
		})
	}
	return transition.NewThemeTable(tc.DefaultDuration, themes...)
}

func viewerConfig(cfg *config.Config) viewer.Config {
	pc := cfg.Pages
	return viewer.Config{
		StartPage:     pc.StartPage,
		FetchTimeout:  pc.FetchTimeout,
		RatePerSecond: pc.RatePerSecond,
		Burst:         pc.Burst,
		Breaker: cancel.BreakerConfig{
			Name:        "pages",
			MaxFailures: pc.Breaker.MaxFailures,
			Timeout:     pc.Breaker.Timeout,
			Interval:    pc.Breaker.Interval,
		},
		ShowBanner: cfg.Transition.ShowBanner,
	}
}
