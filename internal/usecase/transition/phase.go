package transition

// Phase is a stage of a theme transition. Phases always run in declaration
// order; Banner is optional.
type Phase int

const (
	Idle Phase = iota
	FadeOut
	Switching
	FadeIn
	Banner
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FadeOut:
		return "fade-out"
	case Switching:
		return "switching"
	case FadeIn:
		return "fade-in"
	case Banner:
		return "banner"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of a Sequencer.
type State struct {
	// Seq increases with every snapshot a Sequencer produces.
	Seq uint64

	Phase         Phase
	BannerVisible bool
	BannerText    string
	FromKey       string
	TargetKey     string
	Haunting      bool

	// Current is the theme most recently applied successfully.
	Current string
}

// Active reports whether a transition is in flight.
func (s State) Active() bool { return s.Phase != Idle }

// Class is TransitionClass for the snapshot.
func (s State) Class() string { return TransitionClass(s.Phase, s.Haunting) }

// TransitionClass names the display class for a phase. Haunting targets get
// their own family of classes. Idle has no class.
func TransitionClass(p Phase, haunting bool) string {
	if p == Idle || p.String() == "unknown" {
		return ""
	}
	if haunting {
		return "haunting-" + p.String()
	}
	return p.String()
}
