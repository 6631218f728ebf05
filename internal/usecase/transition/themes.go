package transition

import (
	"slices"
	"time"
)

// DefaultDuration is the transition length for themes without their own.
const DefaultDuration = 500 * time.Millisecond

// Theme is the timing profile of one theme.
type Theme struct {
	Key      string
	Name     string
	Duration time.Duration // 0 = table default
	Haunting bool
}

// ThemeTable maps theme keys to their transition timing, so the sequencer
// never special-cases a theme by name.
type ThemeTable struct {
	fallback time.Duration
	themes   map[string]Theme
	order    []string
}

// NewThemeTable builds a table. A non-positive fallback uses
// DefaultDuration. Later themes replace earlier ones with the same key.
func NewThemeTable(fallback time.Duration, themes ...Theme) *ThemeTable {
	if fallback <= 0 {
		fallback = DefaultDuration
	}
	t := &ThemeTable{fallback: fallback, themes: make(map[string]Theme, len(themes))}
	for _, th := range themes {
		if _, dup := t.themes[th.Key]; !dup {
			t.order = append(t.order, th.Key)
		}
		t.themes[th.Key] = th
	}
	return t
}

// DefaultThemes returns the built-in classic and haunting themes.
func DefaultThemes() *ThemeTable {
	return NewThemeTable(DefaultDuration,
		Theme{Key: "classic", Name: "Classic"},
		Theme{Key: "haunting", Name: "Haunting", Duration: time.Second, Haunting: true},
	)
}

// Lookup returns the theme for key.
func (t *ThemeTable) Lookup(key string) (Theme, bool) {
	th, ok := t.themes[key]
	return th, ok
}

// Duration returns the transition length for switching to key.
func (t *ThemeTable) Duration(key string) time.Duration {
	if th, ok := t.themes[key]; ok && th.Duration > 0 {
		return th.Duration
	}
	return t.fallback
}

// IsHaunting reports whether key uses the haunting transition family.
func (t *ThemeTable) IsHaunting(key string) bool {
	return t.themes[key].Haunting
}

// DisplayName returns the theme's name, or key when it has none.
func (t *ThemeTable) DisplayName(key string) string {
	if th, ok := t.themes[key]; ok && th.Name != "" {
		return th.Name
	}
	return key
}

// Keys returns the theme keys in the order they were first declared.
func (t *ThemeTable) Keys() []string {
	return slices.Clone(t.order)
}

// Next returns the key declared after key, wrapping around. Unknown keys
// yield the first theme.
func (t *ThemeTable) Next(key string) string {
	if len(t.order) == 0 {
		return ""
	}
	i := slices.Index(t.order, key)
	return t.order[(i+1)%len(t.order)]
}
