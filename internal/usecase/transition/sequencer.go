// Package transition sequences staged theme switches:
// Idle → FadeOut → Switching → FadeIn → [Banner] → Idle.
//
// The theme change itself happens in the Switching phase, after the fade-out
// has finished and before the fade-in starts. Starting a new transition or
// cancelling the current one invalidates every timer of the run in flight,
// so a superseded run never reaches its completion callback.
package transition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"telehaunt/internal/domain"
	"telehaunt/internal/infra/tracer"
	"telehaunt/internal/usecase/notify"
)

// Banner timing defaults.
const (
	DefaultBannerVisible = 2 * time.Second
	DefaultBannerFade    = 500 * time.Millisecond
)

// ApplyFunc performs the actual theme change. ctx is cancelled when the
// transition is superseded or cancelled while the change is running.
type ApplyFunc func(ctx context.Context) error

// Options are the per-call settings of Execute. Callbacks run outside the
// sequencer's lock and may call back into it.
type Options struct {
	// Duration is split evenly between FadeOut and FadeIn. Zero uses the
	// theme table.
	Duration   time.Duration
	ShowBanner bool
	OnStart    func()
	OnComplete func()
	// OnError receives the apply error of a failed run.
	OnError func(error)
}

// Config holds the sequencer's fixed settings.
type Config struct {
	Themes        *ThemeTable
	BannerVisible time.Duration
	BannerFade    time.Duration
	// Initial is the theme considered applied before any transition.
	Initial string
}

type run struct {
	gen    uint64
	from   string
	to     string
	opts   Options
	apply  ApplyFunc
	half   time.Duration
	ctx    context.Context
	cancel context.CancelCauseFunc
	span   trace.Span
}

// Sequencer runs at most one transition at a time.
type Sequencer struct {
	clock  domain.Clock
	bus    domain.EventBus
	logger *slog.Logger
	hub    *notify.Hub[State]
	cfg    Config

	mu     sync.Mutex
	gen    uint64
	seq    uint64
	closed bool
	state  State
	run    *run
	timer  domain.Timer
}

// NewSequencer creates an idle sequencer. bus may be nil.
func NewSequencer(clock domain.Clock, cfg Config, bus domain.EventBus, logger *slog.Logger) *Sequencer {
	if cfg.Themes == nil {
		cfg.Themes = DefaultThemes()
	}
	if cfg.BannerVisible <= 0 {
		cfg.BannerVisible = DefaultBannerVisible
	}
	if cfg.BannerFade < 0 {
		cfg.BannerFade = DefaultBannerFade
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		clock:  clock,
		bus:    bus,
		logger: logger,
		hub:    notify.New[State](logger),
		cfg:    cfg,
		state:  State{Current: cfg.Initial},
	}
}

// Themes returns the sequencer's theme table.
func (s *Sequencer) Themes() *ThemeTable { return s.cfg.Themes }

// OnStateUpdate registers fn to receive every snapshot and returns a
// function that unregisters it.
func (s *Sequencer) OnStateUpdate(fn func(State)) func() {
	return s.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Class returns the display class of the current phase.
func (s *Sequencer) Class() string {
	return s.State().Class()
}

// Execute starts a transition from one theme to another. Any transition in
// flight is cancelled first and its OnComplete never fires. apply may be
// nil. It fails with domain.ErrInvalidInput for an empty target and
// domain.ErrClosed after Close.
func (s *Sequencer) Execute(ctx context.Context, from, to, displayName string, apply ApplyFunc, opts Options) error {
	if to == "" {
		return domain.NewSubSystemError("transition", "Sequencer.Execute", domain.ErrInvalidInput, "empty target theme")
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = s.cfg.Themes.Duration(to)
	}
	if displayName == "" {
		displayName = s.cfg.Themes.DisplayName(to)
	}

	spanCtx, span := tracer.StartSpan(ctx, "transition.execute", trace.WithAttributes(
		tracer.StringAttr("transition.from", from),
		tracer.StringAttr("transition.to", to),
		tracer.DurationAttr("transition.duration_ms", duration),
		tracer.BoolAttr("transition.banner", opts.ShowBanner),
	))
	runCtx, cancelRun := context.WithCancelCause(spanCtx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancelRun(domain.ErrClosed)
		span.End()
		return domain.NewSubSystemError("transition", "Sequencer.Execute", domain.ErrClosed, to)
	}
	prev := s.teardownLocked(supersededError(to))
	r := &run{
		gen:    s.gen,
		from:   from,
		to:     to,
		opts:   opts,
		apply:  apply,
		half:   duration / 2,
		ctx:    runCtx,
		cancel: cancelRun,
		span:   span,
	}
	s.run = r
	s.state.Phase = FadeOut
	s.state.BannerVisible = false
	s.state.BannerText = displayName
	s.state.FromKey = from
	s.state.TargetKey = to
	s.state.Haunting = s.cfg.Themes.IsHaunting(to)
	s.timer = s.clock.AfterFunc(r.half, func() { s.fadeOutDone(r) })
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelled(prev, "superseded")
	s.logger.Debug("transition started", "from", from, "to", to, "duration", duration)
	s.hub.Publish(snap)
	domain.PublishEvent(ctx, s.bus, domain.EventTransitionStarted, to, map[string]any{
		"from":        from,
		"duration_ms": duration.Milliseconds(),
	})
	if opts.OnStart != nil {
		opts.OnStart()
	}
	return nil
}

// CancelTransition stops every timer and returns to Idle with the banner
// hidden. OnComplete does not fire. The previously applied theme stays
// current.
func (s *Sequencer) CancelTransition() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.teardownLocked(domain.NewSubSystemError("transition", "Sequencer.CancelTransition", domain.ErrCancelled, "cancelled"))
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancelled(prev, "cancelled")
	s.hub.Publish(snap)
}

// Close cancels any transition and drops all subscribers. Later calls to
// Execute fail with domain.ErrClosed.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	prev := s.teardownLocked(domain.ErrClosed)
	s.resetLocked()
	s.mu.Unlock()

	s.cancelled(prev, "closed")
	s.hub.Clear()
}

func (s *Sequencer) fadeOutDone(r *run) {
	defer s.recoverTick(r)

	s.mu.Lock()
	if !s.ownsLocked(r, FadeOut) {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state.Phase = Switching
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)

	err := callApply(r.ctx, r.apply)

	s.mu.Lock()
	if !s.ownsLocked(r, Switching) {
		// Superseded or cancelled while applying; the new owner already
		// reported the cancellation.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.run = nil
		s.resetLocked()
		snap = s.snapshotLocked()
		s.mu.Unlock()

		s.failed(r, err)
		s.hub.Publish(snap)
		if r.opts.OnError != nil {
			r.opts.OnError(err)
		}
		return
	}
	s.state.Current = r.to
	s.state.Phase = FadeIn
	s.timer = s.clock.AfterFunc(r.half, func() { s.fadeInDone(r) })
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

func (s *Sequencer) fadeInDone(r *run) {
	defer s.recoverTick(r)

	s.mu.Lock()
	if !s.ownsLocked(r, FadeIn) {
		s.mu.Unlock()
		return
	}
	if r.opts.ShowBanner {
		s.state.Phase = Banner
		s.state.BannerVisible = true
		s.timer = s.clock.AfterFunc(s.cfg.BannerVisible, func() { s.bannerHidden(r) })
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.hub.Publish(snap)
		return
	}
	s.finishLocked(r)
}

func (s *Sequencer) bannerHidden(r *run) {
	defer s.recoverTick(r)

	s.mu.Lock()
	if !s.ownsLocked(r, Banner) || !s.state.BannerVisible {
		s.mu.Unlock()
		return
	}
	s.state.BannerVisible = false
	s.timer = s.clock.AfterFunc(s.cfg.BannerFade, func() { s.bannerDone(r) })
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

func (s *Sequencer) bannerDone(r *run) {
	defer s.recoverTick(r)

	s.mu.Lock()
	if !s.ownsLocked(r, Banner) || s.state.BannerVisible {
		s.mu.Unlock()
		return
	}
	s.finishLocked(r)
}

// finishLocked completes r and releases the lock.
func (s *Sequencer) finishLocked(r *run) {
	s.timer = nil
	s.run = nil
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	r.cancel(nil)
	tracer.SetOK(r.span)
	r.span.End()
	s.logger.Debug("transition completed", "to", r.to)
	s.hub.Publish(snap)
	domain.PublishEvent(context.Background(), s.bus, domain.EventTransitionCompleted, r.to, nil)
	if r.opts.OnComplete != nil {
		r.opts.OnComplete()
	}
}

// recoverTick turns a panic in a phase callback into a cancellation of the
// run that caused it.
func (s *Sequencer) recoverTick(r *run) {
	p := recover()
	if p == nil {
		return
	}
	err := domain.NewSubSystemError("transition", "Sequencer.tick", domain.ErrTickPanic, fmt.Sprint(p))
	s.logger.Error("transition tick panicked, stopping timers", "to", r.to, "error", err)

	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}
	s.teardownLocked(err)
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.failed(r, err)
	s.hub.Publish(snap)
}

func (s *Sequencer) ownsLocked(r *run, phase Phase) bool {
	return !s.closed && s.run == r && r.gen == s.gen && s.state.Phase == phase
}

// teardownLocked stops the pending timer, cancels the apply context of the
// run in flight and invalidates its callbacks. It returns that run, if any.
func (s *Sequencer) teardownLocked(cause error) *run {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	prev := s.run
	s.run = nil
	if prev != nil {
		prev.cancel(cause)
	}
	return prev
}

func (s *Sequencer) resetLocked() {
	s.state.Phase = Idle
	s.state.BannerVisible = false
	s.state.BannerText = ""
	s.state.FromKey = ""
	s.state.TargetKey = ""
	s.state.Haunting = false
}

func (s *Sequencer) snapshotLocked() State {
	s.seq++
	s.state.Seq = s.seq
	return s.state
}

func (s *Sequencer) cancelled(r *run, reason string) {
	if r == nil {
		return
	}
	r.span.SetAttributes(tracer.StringAttr("transition.outcome", reason))
	tracer.RecordError(r.span, domain.ErrCancelled)
	r.span.End()
	s.logger.Debug("transition cancelled", "to", r.to, "reason", reason)
	domain.PublishEvent(context.Background(), s.bus, domain.EventTransitionCancelled, r.to,
		map[string]string{"reason": reason})
}

func (s *Sequencer) failed(r *run, err error) {
	r.cancel(err)
	tracer.RecordError(r.span, err)
	r.span.End()
	s.logger.Warn("transition failed", "to", r.to, "error", err)
	domain.PublishEvent(context.Background(), s.bus, domain.EventTransitionFailed, r.to,
		map[string]string{"error": err.Error()})
}

func callApply(ctx context.Context, apply ApplyFunc) (err error) {
	if apply == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transition: apply panicked: %v", p)
		}
	}()
	return apply(ctx)
}

func supersededError(to string) error {
	return domain.NewSubSystemError("transition", "Sequencer.Execute", domain.ErrCancelled, "superseded by "+to)
}
