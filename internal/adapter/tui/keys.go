package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Skip   key.Binding
	Theme  key.Binding
	Reload key.Binding
	Enter  key.Binding
	Clear  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Skip, k.Theme, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Reload},
		{k.Enter, k.Clear},
		{k.Skip, k.Theme},
		{k.Help, k.Quit},
	}
}

var defaultKeyMap = keyMap{
	Next: key.NewBinding(
		key.WithKeys("right", "l", "+"),
		key.WithHelp("→/+", "next page"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h", "-"),
		key.WithHelp("←/-", "prev page"),
	),
	Skip: key.NewBinding(
		key.WithKeys(" ", "s"),
		key.WithHelp("space", "skip"),
	),
	Theme: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "theme"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Enter: key.NewBinding(
		key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("0-9", "page number"),
	),
	Clear: key.NewBinding(
		key.WithKeys("backspace", "esc"),
		key.WithHelp("esc", "clear number"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
