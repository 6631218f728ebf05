package tui

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/transition"
	"telehaunt/internal/usecase/viewer"
)

// Sources are the state machines whose snapshots the TUI renders.
type Sources struct {
	Animation *reveal.Animation
	Sequencer *transition.Sequencer
	Viewer    *viewer.Viewer
}

// Bridge subscribes to every source and forwards snapshots to send.
// Snapshots are produced under the sources' locks and from timer
// callbacks, so each send runs on its own goroutine; the model restores
// order by Seq. The returned func unsubscribes all three.
func Bridge(send func(tea.Msg), src Sources) func() {
	forward := func(msg tea.Msg) { go send(msg) }

	unsubs := []func(){
		src.Animation.OnStateUpdate(func(s reveal.State) { forward(RevealMsg{State: s}) }),
		src.Sequencer.OnStateUpdate(func(s transition.State) { forward(TransitionMsg{State: s}) }),
		src.Viewer.OnStateUpdate(func(s viewer.State) { forward(ViewerMsg{State: s}) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Run starts the full-screen program and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, src Sources, logger *slog.Logger, opts ...tea.ProgramOption) error {
	if logger == nil {
		logger = slog.Default()
	}

	skip := make(chan struct{}, 1)
	src.Animation.SkipOn(ctx, skip)

	model := NewModel(ctx, ModelDeps{
		Controller: src.Viewer,
		Skip:       skip,
		Logger:     logger,
	})

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(model, opts...)

	unsubscribe := Bridge(p.Send, src)
	defer unsubscribe()

	logger.Info("tui started", "page", model.view.Page, "theme", model.view.Theme)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
