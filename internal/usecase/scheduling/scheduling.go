// Package scheduling switches themes on a recurring schedule.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"telehaunt/internal/domain"
)

// DefaultSwitchTimeout bounds a single scheduled switch.
const DefaultSwitchTimeout = 30 * time.Second

// ThemeSwitch is a recurring theme change.
type ThemeSwitch struct {
	Name     string // defaults to "<theme>@<schedule>"
	Schedule string // cron expression "0 22 * * *" OR duration "15m"
	Theme    string
	OneShot  bool
}

// SwitchFunc performs a theme switch. Scheduled switches call it with the
// configured theme key.
type SwitchFunc func(ctx context.Context, theme string) error

// Scheduler runs theme switches using cron expressions or durations.
type Scheduler struct {
	cron    *cron.Cron
	apply   SwitchFunc
	entries map[string]cron.EntryID
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSwitchTimeout bounds each switch. Non-positive values are ignored.
func WithSwitchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler creates a scheduler that calls fn for every due switch.
func NewScheduler(fn SwitchFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:    cron.New(),
		apply:   fn,
		entries: make(map[string]cron.EntryID),
		timeout: DefaultSwitchTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSwitch schedules sw. Names must be unique.
func (s *Scheduler) AddSwitch(sw ThemeSwitch) error {
	if sw.Theme == "" {
		return domain.NewSubSystemError("scheduling", "Scheduler.AddSwitch", domain.ErrInvalidInput, "empty theme")
	}
	schedule, err := parseSchedule(sw.Schedule)
	if err != nil {
		return domain.NewSubSystemError("scheduling", "Scheduler.AddSwitch", domain.ErrInvalidInput,
			fmt.Sprintf("schedule %q for theme %q: %v", sw.Schedule, sw.Theme, err))
	}
	name := sw.Name
	if name == "" {
		name = sw.Theme + "@" + sw.Schedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return domain.NewSubSystemError("scheduling", "Scheduler.AddSwitch", domain.ErrInvalidInput,
			fmt.Sprintf("switch %q already exists", name))
	}

	var entryID cron.EntryID
	entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run(name, sw.Theme)
		if sw.OneShot {
			s.cron.Remove(entryID)
			s.mu.Lock()
			delete(s.entries, name)
			s.mu.Unlock()
		}
	}))
	s.entries[name] = entryID

	s.logger.Info("theme switch scheduled", "name", name, "schedule", sw.Schedule, "theme", sw.Theme)
	return nil
}

func (s *Scheduler) run(name, theme string) {
	// Read context under lock
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		s.logger.Debug("scheduler stopped, skipping switch", "name", name)
		return
	}

	switchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.apply(switchCtx, theme); err != nil {
		s.logger.Warn("scheduled theme switch failed",
			"name", name,
			"theme", theme,
			"error", err,
			"duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled theme switch done",
		"name", name,
		"theme", theme,
		"duration", time.Since(start))
}

// Names returns the scheduled switch names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// NextRun returns the next run time of a switch. Before Start it reports
// when the switch would next run if started now. ok is false for unknown
// names.
func (s *Scheduler) NextRun(name string) (next time.Time, ok bool) {
	s.mu.Lock()
	entryID, found := s.entries[name]
	s.mu.Unlock()

	if !found {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if entry.ID == 0 {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now().In(s.cron.Location())), true
	}
	return entry.Next, true
}

// Start begins running the scheduler. Switches stop firing when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
	return nil
}

// Stop signals the scheduler to stop and waits for running switches to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.mu.Unlock()

	// Running jobs take s.mu, so wait without holding it.
	<-s.cron.Stop().Done()
	return nil
}

// ParseSchedule parses a cron expression, falling back to a positive
// duration.
func ParseSchedule(schedule string) (cron.Schedule, error) {
	return parseSchedule(schedule)
}

func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	// Try cron expression first.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	// Fall back to duration.
	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return constantDelay(dur), nil
}

// constantDelay fires at a fixed interval. Unlike cron.Every it keeps
// sub-second precision.
type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}
