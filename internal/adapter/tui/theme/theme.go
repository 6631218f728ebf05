// Package theme provides the teletext palettes for the TUI, one per theme
// key, plus the styles shared by every palette.
//
// NO_COLOR (https://no-color.org/) is respected automatically by lipgloss via
// its color profile detection — when set, all color output is suppressed.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Teletext grid size.
const (
	GridWidth = 40
	GridRows  = 24
)

// Palette is the set of colors for one theme.
type Palette struct {
	Key    string
	Fg     lipgloss.AdaptiveColor
	Bg     lipgloss.AdaptiveColor
	Title  lipgloss.AdaptiveColor
	Accent lipgloss.AdaptiveColor
	Dim    lipgloss.AdaptiveColor
}

var palettes = map[string]Palette{
	"classic": {
		Key:    "classic",
		Fg:     lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"},
		Bg:     lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"},
		Title:  lipgloss.AdaptiveColor{Light: "#0000aa", Dark: "#ffff00"},
		Accent: lipgloss.AdaptiveColor{Light: "#00aaaa", Dark: "#00ffff"},
		Dim:    lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"},
	},
	"haunting": {
		Key:    "haunting",
		Fg:     lipgloss.AdaptiveColor{Light: "#1b5e20", Dark: "#69f0ae"},
		Bg:     lipgloss.AdaptiveColor{Light: "#e8f5e9", Dark: "#050805"},
		Title:  lipgloss.AdaptiveColor{Light: "#b71c1c", Dark: "#ff1744"},
		Accent: lipgloss.AdaptiveColor{Light: "#4a148c", Dark: "#d500f9"},
		Dim:    lipgloss.AdaptiveColor{Light: "#616161", Dark: "#2e7d32"},
	},
}

// For returns the palette for a theme key. Themes without their own palette
// use the classic one under their own key.
func For(key string) Palette {
	if p, ok := palettes[key]; ok {
		return p
	}
	p := palettes["classic"]
	p.Key = key
	return p
}

// BodyStyle is the page text style. A transition class fades the text while the
// theme changes; haunting classes flicker into the accent color instead.
func (p Palette) BodyStyle(class string) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(p.Fg).Background(p.Bg)
	switch {
	case class == "":
		return s
	case strings.HasPrefix(class, "haunting-"):
		return s.Foreground(p.Accent).Faint(strings.HasSuffix(class, "fade-out"))
	default:
		return s.Faint(true)
	}
}

// TitleStyle is the page header style.
func (p Palette) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Title).Background(p.Bg).Bold(true)
}

// BannerStyle is the theme-name banner shown after a transition.
func (p Palette) BannerStyle(visible bool) lipgloss.Style {
	s := lipgloss.NewStyle().
		Foreground(p.Bg).
		Background(p.Title).
		Bold(true).
		Padding(0, 1)
	if !visible {
		s = s.Faint(true)
	}
	return s
}

// StatusStyle is the footer status style.
func (p Palette) StatusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Dim)
}

// --- Shared styles ---

var (
	ColorError = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorInfo  = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}

	Bold      = lipgloss.NewStyle().Bold(true)
	Dim       = lipgloss.NewStyle().Faint(true)
	TextError = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StatusKey = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
)

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
