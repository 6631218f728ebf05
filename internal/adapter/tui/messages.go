// Package tui implements the Bubble Tea front end for telehaunt. It renders
// the snapshots pushed by the reveal animation, the theme transition
// sequencer and the viewer; the keyboard drives navigation and skipping.
package tui

import (
	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/transition"
	"telehaunt/internal/usecase/viewer"
)

// RevealMsg carries a reveal animation snapshot. Snapshots arrive from
// timer goroutines, so the model drops any with an older Seq.
type RevealMsg struct {
	State reveal.State
}

// TransitionMsg carries a theme transition snapshot.
type TransitionMsg struct {
	State transition.State
}

// ViewerMsg carries a viewer snapshot.
type ViewerMsg struct {
	State viewer.State
}

// ErrMsg reports a failed command.
type ErrMsg struct {
	Err error
}
