// Package viewer drives page navigation and theme switching. Page loads go
// through the cancellation registry so only the most recently requested page
// ever reaches the screen; the reveal animation shows "Thinking" while a
// page loads and types it out once it arrives.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"telehaunt/internal/adapter/pages"
	"telehaunt/internal/domain"
	"telehaunt/internal/usecase/cancel"
	"telehaunt/internal/usecase/notify"
	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/transition"
)

// NextTheme asks SetTheme for the theme after the current one.
const NextTheme = "next"

// Source provides page content and page order.
type Source interface {
	Fetch(ctx context.Context, n int) (pages.Page, error)
	Next(n int) int
	Prev(n int) int
}

// Config holds the viewer's settings.
type Config struct {
	StartPage    int
	FetchTimeout time.Duration // 0 disables the timeout
	// RatePerSecond limits page loads. Non-positive means unlimited.
	RatePerSecond float64
	Burst         int
	Breaker       cancel.BreakerConfig
	ShowBanner    bool
	InitialTheme  string
}

// Deps are the collaborators a Viewer drives.
type Deps struct {
	Registry  *cancel.Registry
	Source    Source
	Animation *reveal.Animation
	Sequencer *transition.Sequencer
	Clock     domain.Clock
	Bus       domain.EventBus
	Logger    *slog.Logger
}

// State is a snapshot of the viewer.
type State struct {
	Seq     uint64
	Page    int
	Title   string
	Loading bool
	Theme   string
	// Err is the error of the last failed load, if the current page failed.
	Err error
}

// Viewer is the page navigation front end.
type Viewer struct {
	deps    Deps
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[pages.Page]
	hub     *notify.Hub[State]

	mu      sync.Mutex
	seq     uint64
	state   State
	current *cancel.Handle[pages.Page]
	closed  bool
}

// New creates a viewer. It fails with domain.ErrInvalidInput when a
// required collaborator is missing.
func New(deps Deps, cfg Config) (*Viewer, error) {
	if deps.Registry == nil || deps.Source == nil || deps.Animation == nil || deps.Sequencer == nil || deps.Clock == nil {
		return nil, domain.NewSubSystemError("viewer", "viewer.New", domain.ErrInvalidInput, "missing collaborator")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.StartPage == 0 {
		cfg.StartPage = pages.FirstPage
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	bcfg := cfg.Breaker
	if bcfg.Name == "" {
		bcfg.Name = "pages"
	}
	if bcfg.Ignore == nil {
		bcfg.Ignore = func(err error) bool { return errors.Is(err, domain.ErrNotFound) }
	}
	theme := cfg.InitialTheme
	if theme == "" {
		theme = deps.Sequencer.State().Current
	}

	logger := deps.Logger.With("component", "viewer")
	return &Viewer{
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
		breaker: cancel.NewBreaker[pages.Page](bcfg, logger),
		hub:     notify.New[State](logger),
		state:   State{Page: cfg.StartPage, Theme: theme},
	}, nil
}

// OnStateUpdate registers fn to receive every snapshot and returns a
// function that unregisters it.
func (v *Viewer) OnStateUpdate(fn func(State)) func() {
	return v.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// PageKey is the registry key for page n.
func PageKey(n int) string {
	return "page:" + strconv.Itoa(n)
}

// Goto requests page n. The previously requested page is cancelled, the
// animation shows "Thinking" until the page arrives and then reveals it.
// A failed load reveals an error line instead. The returned handle settles
// with the loaded page.
func (v *Viewer) Goto(ctx context.Context, n int) (*cancel.Handle[pages.Page], error) {
	if n < pages.FirstPage || n > pages.LastPage {
		return nil, domain.NewSubSystemError("viewer", "Viewer.Goto", domain.ErrInvalidInput,
			fmt.Sprintf("page %d outside %d-%d", n, pages.FirstPage, pages.LastPage))
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, domain.NewSubSystemError("viewer", "Viewer.Goto", domain.ErrClosed, PageKey(n))
	}
	prev := v.current
	h, err := cancel.Submit(ctx, v.deps.Registry, PageKey(n), v.loadOp(n))
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.current = h
	v.state.Page = n
	v.state.Title = ""
	v.state.Loading = true
	v.state.Err = nil
	// Animation calls happen under v.mu so a stale load can never start
	// its reveal after a newer request began thinking.
	v.deps.Animation.StartThinking()
	snap := v.snapshotLocked()
	v.mu.Unlock()

	// Same page twice is already superseded by the registry.
	if prev != nil && prev != h {
		prev.Cancel()
	}
	v.logger.Debug("page requested", "page", n, "task_id", h.ID())
	v.hub.Publish(snap)

	go v.await(ctx, n, h)
	return h, nil
}

// Next goes to the page after the current one.
func (v *Viewer) Next(ctx context.Context) (*cancel.Handle[pages.Page], error) {
	return v.Goto(ctx, v.deps.Source.Next(v.State().Page))
}

// Prev goes to the page before the current one.
func (v *Viewer) Prev(ctx context.Context) (*cancel.Handle[pages.Page], error) {
	return v.Goto(ctx, v.deps.Source.Prev(v.State().Page))
}

// Reload requests the current page again.
func (v *Viewer) Reload(ctx context.Context) (*cancel.Handle[pages.Page], error) {
	return v.Goto(ctx, v.State().Page)
}

// Skip reveals the rest of the current page at once.
func (v *Viewer) Skip() {
	v.deps.Animation.Skip()
}

func (v *Viewer) loadOp(n int) cancel.Op[pages.Page] {
	fetch := func(ctx context.Context) (pages.Page, error) {
		if v.cfg.FetchTimeout <= 0 {
			return v.deps.Source.Fetch(ctx, n)
		}
		inner := cancel.Wrap(ctx, func(ctx context.Context) (pages.Page, error) {
			return v.deps.Source.Fetch(ctx, n)
		})
		h := cancel.Timeout(v.deps.Clock, inner, v.cfg.FetchTimeout)
		defer h.Cancel()
		return h.Result(ctx)
	}
	return cancel.WithLimiter(v.limiter, cancel.WithBreaker(v.breaker, fetch))
}

func (v *Viewer) await(ctx context.Context, n int, h *cancel.Handle[pages.Page]) {
	page, err := h.Wait()

	v.mu.Lock()
	if v.closed || v.current != h {
		v.mu.Unlock()
		return
	}
	v.current = nil
	v.state.Loading = false
	switch {
	case h.IsCancelled():
		// Cancelled without a replacement, e.g. by Registry.CancelAll.
		v.deps.Animation.StopThinking()
	case err != nil:
		v.state.Err = err
		v.deps.Animation.Start(ErrorLine(n, err))
	default:
		v.state.Title = page.Title
		v.deps.Animation.Start(page.Text())
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()

	switch {
	case h.IsCancelled():
	case err != nil:
		v.logger.Warn("page load failed", "page", n, "code", string(domain.ErrorCodeOf(err)), "error", err)
		domain.PublishEvent(ctx, v.deps.Bus, domain.EventPageFailed, PageKey(n), map[string]string{
			"code":  string(domain.ErrorCodeOf(err)),
			"error": err.Error(),
		})
	default:
		v.logger.Debug("page loaded", "page", n, "task_id", h.ID())
		domain.PublishEvent(ctx, v.deps.Bus, domain.EventPageLoaded, PageKey(n), map[string]string{
			"title": page.Title,
		})
	}
	v.hub.Publish(snap)
}

// ErrorLine is the text revealed in place of a page that failed to load.
func ErrorLine(n int, err error) string {
	switch domain.ErrorCodeOf(err) {
	case domain.CodePageNotFound, domain.CodeNotFound:
		return fmt.Sprintf("P%d NOT FOUND", n)
	case domain.CodeTimeout:
		return fmt.Sprintf("P%d TIMED OUT", n)
	case domain.CodeCircuitOpen:
		return fmt.Sprintf("P%d SERVICE UNAVAILABLE", n)
	case domain.CodeRateLimit:
		return fmt.Sprintf("P%d TOO MANY REQUESTS", n)
	default:
		return fmt.Sprintf("P%d ERROR: %v", n, err)
	}
}

// SetTheme transitions to theme key. NextTheme cycles to the theme after
// the current one. The theme becomes current in the transition's switching
// phase. Unknown keys fail with domain.ErrNotFound.
func (v *Viewer) SetTheme(ctx context.Context, key string) error {
	themes := v.deps.Sequencer.Themes()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.NewSubSystemError("viewer", "Viewer.SetTheme", domain.ErrClosed, key)
	}
	from := v.state.Theme
	v.mu.Unlock()

	if key == NextTheme {
		key = themes.Next(from)
	}
	if _, ok := themes.Lookup(key); !ok {
		return domain.NewSubSystemError("viewer", "Viewer.SetTheme", domain.ErrNotFound, "theme "+key)
	}

	apply := func(context.Context) error {
		v.mu.Lock()
		v.state.Theme = key
		snap := v.snapshotLocked()
		v.mu.Unlock()

		v.logger.Info("theme applied", "theme", key)
		v.hub.Publish(snap)
		return nil
	}
	return v.deps.Sequencer.Execute(ctx, from, key, "", apply, transition.Options{ShowBanner: v.cfg.ShowBanner})
}

// Close cancels the page in flight and drops all subscribers.
func (v *Viewer) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	cur := v.current
	v.current = nil
	v.mu.Unlock()

	if cur != nil {
		cur.Cancel()
	}
	v.hub.Clear()
}

func (v *Viewer) snapshotLocked() State {
	v.seq++
	v.state.Seq = v.seq
	return v.state
}
