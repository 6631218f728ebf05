package reveal

import (
	"github.com/clipperhouse/uax29/v2/graphemes"
)

// Mode is the animation's current activity.
type Mode int

const (
	Idle Mode = iota
	Thinking
	Typing
	Complete
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Thinking:
		return "thinking"
	case Typing:
		return "typing"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Animated reports whether the cursor blinks in this mode.
func (m Mode) Animated() bool {
	return m == Thinking || m == Typing
}

// thinkingFrames is the cycle shown while waiting for content.
var thinkingFrames = [...]string{"Thinking", "Thinking.", "Thinking..", "Thinking..."}

// State is an immutable snapshot of an Animation. Lengths count grapheme
// clusters, not bytes or runes.
type State struct {
	// Seq increases with every snapshot an Animation produces.
	Seq uint64

	Mode           Mode
	FullText       string
	RevealedText   string
	RevealedLength int
	TotalLength    int
	CursorVisible  bool
	Progress       int

	// Cursor is the glyph appended by DisplayText, or "" when the cursor
	// is disabled.
	Cursor string
}

// DisplayText is the revealed text plus the cursor glyph when the cursor is
// enabled, currently visible and the mode is animated.
func (s State) DisplayText() string {
	if s.Cursor != "" && s.CursorVisible && s.Mode.Animated() {
		return s.RevealedText + s.Cursor
	}
	return s.RevealedText
}

// Progress returns round(100*revealed/total), or 100 for empty text.
func Progress(revealed, total int) int {
	if total <= 0 {
		return 100
	}
	revealed = max(0, min(revealed, total))
	return (200*revealed + total) / (2 * total)
}

// segment returns the byte offset at which each grapheme cluster of s
// ends. The revealed prefix of n clusters is s[:ends[n-1]].
func segment(s string) []int {
	var ends []int
	offset := 0
	iter := graphemes.FromString(s)
	for iter.Next() {
		offset += len(iter.Value())
		ends = append(ends, offset)
	}
	return ends
}
