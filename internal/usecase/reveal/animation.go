// Package reveal implements the character-by-character "typing" animation
// and the "Thinking..." placeholder shown while content loads.
//
// All timers belong to one Animation. Every operation that changes mode
// tears down the previous timers before installing new ones, and a
// generation counter makes callbacks from torn-down timers no-ops, so two
// tickers never drive the same state.
package reveal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"telehaunt/internal/domain"
	"telehaunt/internal/usecase/notify"
)

// Default animation settings.
const (
	DefaultSpeed      = 75
	DefaultCursorChar = "█"
	CursorPeriod      = 500 * time.Millisecond
	ThinkingPeriod    = 500 * time.Millisecond
)

// Config controls an Animation. Callbacks run outside the animation's lock
// and may call back into it.
type Config struct {
	Speed      int // graphemes per second
	ShowCursor bool
	CursorChar string
	OnComplete func()
	OnSkip     func()
}

// DefaultConfig returns the standard reveal settings.
func DefaultConfig() Config {
	return Config{
		Speed:      DefaultSpeed,
		ShowCursor: true,
		CursorChar: DefaultCursorChar,
	}
}

func (c Config) validate() error {
	if c.Speed <= 0 {
		return domain.NewDomainError("reveal.Config", domain.ErrInvalidInput,
			fmt.Sprintf("speed must be positive, got %d", c.Speed))
	}
	if c.period() <= 0 {
		return domain.NewDomainError("reveal.Config", domain.ErrInvalidInput,
			fmt.Sprintf("speed %d is faster than the clock resolution", c.Speed))
	}
	return nil
}

func (c Config) period() time.Duration {
	return time.Second / time.Duration(c.Speed)
}

func (c Config) cursor() string {
	if !c.ShowCursor {
		return ""
	}
	if c.CursorChar == "" {
		return DefaultCursorChar
	}
	return c.CursorChar
}

// Animation is the reveal/thinking state machine.
type Animation struct {
	clock  domain.Clock
	bus    domain.EventBus
	logger *slog.Logger
	hub    *notify.Hub[State]

	mu     sync.Mutex
	cfg    Config
	gen    uint64
	seq    uint64
	closed bool

	mode          Mode
	full          string
	ends          []int
	revealed      int
	frame         int
	cursorVisible bool

	timers []domain.Timer
}

// New creates an idle animation. It fails with domain.ErrInvalidInput when
// cfg.Speed is not positive. bus may be nil.
func New(clock domain.Clock, cfg Config, bus domain.EventBus, logger *slog.Logger) (*Animation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Animation{
		clock:  clock,
		bus:    bus,
		logger: logger,
		hub:    notify.New[State](logger),
		cfg:    cfg,
	}, nil
}

// Configure replaces the settings used from the next Start or
// StartThinking on.
func (a *Animation) Configure(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return nil
}

// OnStateUpdate registers fn to receive every snapshot and returns a
// function that unregisters it.
func (a *Animation) OnStateUpdate(fn func(State)) func() {
	return a.hub.Subscribe(fn)
}

// State returns the current snapshot.
func (a *Animation) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(false)
}

// DisplayText returns the current revealed text with the cursor glyph.
func (a *Animation) DisplayText() string {
	return a.State().DisplayText()
}

// Start begins revealing text from the first grapheme. Empty text completes
// synchronously, fires OnComplete and schedules nothing.
func (a *Animation) Start(text string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	gen := a.teardownLocked()
	a.full = text
	a.ends = segment(text)
	a.revealed = 0
	a.frame = 0

	if len(a.ends) == 0 {
		a.mode = Complete
		a.cursorVisible = false
		snap := a.snapshotLocked(true)
		onComplete := a.cfg.OnComplete
		a.mu.Unlock()

		a.hub.Publish(snap)
		a.completed(onComplete, nil, 0)
		return
	}

	a.mode = Typing
	a.cursorVisible = true
	a.timers = append(a.timers,
		a.clock.Every(a.cfg.period(), func() { a.revealTick(gen) }),
		a.clock.Every(CursorPeriod, func() { a.cursorTick(gen) }),
	)
	snap := a.snapshotLocked(true)
	speed := a.cfg.Speed
	a.mu.Unlock()

	a.logger.Debug("reveal started", "graphemes", snap.TotalLength, "speed", speed)
	a.hub.Publish(snap)
}

// StartThinking shows the cycling "Thinking" placeholder, from any mode.
func (a *Animation) StartThinking() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	gen := a.teardownLocked()
	a.mode = Thinking
	a.full = ""
	a.ends = nil
	a.revealed = 0
	a.frame = 0
	a.cursorVisible = true
	a.timers = append(a.timers,
		a.clock.Every(ThinkingPeriod, func() { a.thinkingTick(gen) }),
		a.clock.Every(CursorPeriod, func() { a.cursorTick(gen) }),
	)
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

// StopThinking leaves Thinking for Idle with empty text. It is a no-op in
// any other mode.
func (a *Animation) StopThinking() {
	a.mu.Lock()
	if a.closed || a.mode != Thinking {
		a.mu.Unlock()
		return
	}
	a.teardownLocked()
	a.mode = Idle
	a.frame = 0
	a.cursorVisible = false
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

// Skip reveals the rest of the text at once, firing OnSkip then
// OnComplete. It is a no-op outside Typing.
func (a *Animation) Skip() {
	a.mu.Lock()
	if a.closed || a.mode != Typing {
		a.mu.Unlock()
		return
	}
	a.teardownLocked()
	skipped := len(a.ends) - a.revealed
	a.revealed = len(a.ends)
	a.mode = Complete
	snap := a.snapshotLocked(true)
	onSkip, onComplete := a.cfg.OnSkip, a.cfg.OnComplete
	a.mu.Unlock()

	a.hub.Publish(snap)
	domain.PublishEvent(context.Background(), a.bus, domain.EventRevealSkipped, "reveal",
		map[string]int{"skipped": skipped})
	a.completed(onComplete, onSkip, snap.TotalLength)
}

// SkipOn calls Skip for every signal received on signals until ctx is done
// or signals is closed.
func (a *Animation) SkipOn(ctx context.Context, signals <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				a.skipRecovered()
			}
		}
	}()
}

// skipRecovered runs Skip, logging a panicking callback instead of letting
// it take down the listener.
func (a *Animation) skipRecovered() {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("reveal skip callback panicked", "panic", r,
				"error", domain.NewDomainError("reveal.SkipOn", domain.ErrTickPanic, fmt.Sprint(r)))
		}
	}()
	a.Skip()
}

// Stop cancels every timer without firing callbacks. Revealed text is
// kept; an animated mode drops to Idle.
func (a *Animation) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.teardownLocked()
	if !a.mode.Animated() {
		a.mu.Unlock()
		return
	}
	a.mode = Idle
	a.cursorVisible = false
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

// Reset cancels every timer and returns to the empty Idle state.
func (a *Animation) Reset() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.teardownLocked()
	a.clearLocked()
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

// Close cancels every timer and drops all subscribers. Later calls on the
// animation are no-ops.
func (a *Animation) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.teardownLocked()
	a.clearLocked()
	a.mu.Unlock()

	a.hub.Clear()
}

func (a *Animation) revealTick(gen uint64) {
	defer a.recoverTick("reveal")

	a.mu.Lock()
	if gen != a.gen || a.mode != Typing {
		a.mu.Unlock()
		return
	}
	a.revealed++
	done := a.revealed >= len(a.ends)
	if done {
		a.revealed = len(a.ends)
		a.mode = Complete
		a.teardownLocked()
	}
	snap := a.snapshotLocked(true)
	onComplete := a.cfg.OnComplete
	a.mu.Unlock()

	a.hub.Publish(snap)
	if done {
		a.completed(onComplete, nil, snap.TotalLength)
	}
}

func (a *Animation) cursorTick(gen uint64) {
	defer a.recoverTick("cursor")

	a.mu.Lock()
	if gen != a.gen || !a.mode.Animated() {
		a.mu.Unlock()
		return
	}
	a.cursorVisible = !a.cursorVisible
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

func (a *Animation) thinkingTick(gen uint64) {
	defer a.recoverTick("thinking")

	a.mu.Lock()
	if gen != a.gen || a.mode != Thinking {
		a.mu.Unlock()
		return
	}
	a.frame = (a.frame + 1) % len(thinkingFrames)
	snap := a.snapshotLocked(true)
	a.mu.Unlock()

	a.hub.Publish(snap)
}

// recoverTick converts a panic inside a timer callback into a halt: every
// timer stops and the last published state stays on screen.
func (a *Animation) recoverTick(timer string) {
	r := recover()
	if r == nil {
		return
	}
	a.logger.Error("reveal tick panicked, stopping timers", "timer", timer, "panic", r,
		"error", domain.NewDomainError("reveal.tick", domain.ErrTickPanic, fmt.Sprint(r)))
	a.mu.Lock()
	a.teardownLocked()
	a.mu.Unlock()
}

func (a *Animation) completed(onComplete, onSkip func(), graphemes int) {
	if onSkip != nil {
		onSkip()
	}
	domain.PublishEvent(context.Background(), a.bus, domain.EventRevealCompleted, "reveal",
		map[string]int{"graphemes": graphemes})
	if onComplete != nil {
		onComplete()
	}
}

// teardownLocked stops every timer and invalidates callbacks already in
// flight. It returns the new generation.
func (a *Animation) teardownLocked() uint64 {
	for _, t := range a.timers {
		t.Stop()
	}
	a.timers = a.timers[:0]
	a.gen++
	return a.gen
}

func (a *Animation) clearLocked() {
	a.mode = Idle
	a.full = ""
	a.ends = nil
	a.revealed = 0
	a.frame = 0
	a.cursorVisible = false
}

func (a *Animation) snapshotLocked(advance bool) State {
	if advance {
		a.seq++
	}
	s := State{
		Seq:            a.seq,
		Mode:           a.mode,
		FullText:       a.full,
		RevealedLength: a.revealed,
		TotalLength:    len(a.ends),
		CursorVisible:  a.cursorVisible,
		Cursor:         a.cfg.cursor(),
	}
	switch a.mode {
	case Thinking:
		s.RevealedText = thinkingFrames[a.frame]
	case Typing, Complete:
		s.Progress = Progress(a.revealed, len(a.ends))
		if a.revealed > 0 {
			s.RevealedText = a.full[:a.ends[a.revealed-1]]
		}
	case Idle:
		if a.revealed > 0 {
			s.RevealedText = a.full[:a.ends[a.revealed-1]]
			s.Progress = Progress(a.revealed, len(a.ends))
		}
	}
	if a.full == "" {
		s.Progress = 100
	}
	return s
}
