//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"telehaunt/internal/domain"
	"telehaunt/internal/usecase/reveal"
)

func waitEvent(t *testing.T, ctx context.Context, ch <-chan domain.Event, what string) domain.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-ctx.Done():
		t.Fatalf("timed out waiting for %s", what)
		return domain.Event{}
	}
}

func TestE2E_PageRevealsOnWallClock(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	ctx := NewTestContext(t, cfg.TestTimeout)

	s := NewStack(t)
	loaded := s.Await(t, domain.EventPageLoaded)
	revealed := s.Await(t, domain.EventRevealCompleted)

	h, err := s.Viewer.Goto(ctx, 100)
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	page, err := h.Result(ctx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}

	if e := waitEvent(t, ctx, loaded, "page.loaded"); e.Key != "page:100" {
		t.Errorf("loaded key = %q", e.Key)
	}

	// The index page is long; skipping finishes it right away.
	s.Viewer.Skip()
	waitEvent(t, ctx, revealed, "reveal.completed")

	st := s.Animation.State()
	if st.Mode != reveal.Complete {
		t.Errorf("mode = %v, want complete", st.Mode)
	}
	if st.DisplayText() != page.Text() {
		t.Errorf("display text = %q, want %q", st.DisplayText(), page.Text())
	}
}

func TestE2E_RapidNavigationKeepsLastPage(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	ctx := NewTestContext(t, cfg.TestTimeout)

	s := NewStack(t)
	loaded := s.Await(t, domain.EventPageLoaded)

	first, err := s.Viewer.Goto(ctx, 100)
	if err != nil {
		t.Fatalf("Goto 100: %v", err)
	}
	second, err := s.Viewer.Goto(ctx, 101)
	if err != nil {
		t.Fatalf("Goto 101: %v", err)
	}
	last, err := s.Viewer.Goto(ctx, 200)
	if err != nil {
		t.Fatalf("Goto 200: %v", err)
	}

	if _, err := first.Result(ctx); !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("first page err = %v, want cancelled", err)
	}
	if _, err := second.Result(ctx); !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("second page err = %v, want cancelled", err)
	}
	page, err := last.Result(ctx)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}

	if e := waitEvent(t, ctx, loaded, "page.loaded"); e.Key != "page:200" {
		t.Errorf("loaded key = %q, want page:200", e.Key)
	}
	select {
	case e := <-loaded:
		t.Errorf("unexpected extra load of %s", e.Key)
	case <-time.After(100 * time.Millisecond):
	}

	if got := s.Viewer.State().Page; got != page.Number {
		t.Errorf("viewer page = %d, want %d", got, page.Number)
	}
	if got := s.Registry.ActiveCount(); got != 0 {
		t.Errorf("active entries = %d, want 0", got)
	}
}

func TestE2E_MissingPageRevealsErrorLine(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	ctx := NewTestContext(t, cfg.TestTimeout)

	s := NewStack(t)
	failed := s.Await(t, domain.EventPageFailed)
	revealed := s.Await(t, domain.EventRevealCompleted)

	h, err := s.Viewer.Goto(ctx, 123)
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if _, err := h.Result(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	waitEvent(t, ctx, failed, "page.failed")
	waitEvent(t, ctx, revealed, "reveal.completed")

	if got := s.Animation.State().RevealedText; got != "P123 NOT FOUND" {
		t.Errorf("revealed = %q", got)
	}
}

func TestE2E_ThemeTransitionCompletes(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	ctx := NewTestContext(t, cfg.TestTimeout)

	s := NewStack(t)
	started := s.Await(t, domain.EventTransitionStarted)
	completed := s.Await(t, domain.EventTransitionCompleted)

	if err := s.Viewer.SetTheme(ctx, "haunting"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	waitEvent(t, ctx, started, "transition.started")
	if e := waitEvent(t, ctx, completed, "transition.completed"); e.Key != "haunting" {
		t.Errorf("completed key = %q", e.Key)
	}

	if got := s.Viewer.State().Theme; got != "haunting" {
		t.Errorf("viewer theme = %q, want haunting", got)
	}
	st := s.Sequencer.State()
	if st.Active() || st.Current != "haunting" {
		t.Errorf("sequencer state = %+v", st)
	}
}
