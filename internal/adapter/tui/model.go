package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"telehaunt/internal/adapter/pages"
	"telehaunt/internal/adapter/tui/theme"
	"telehaunt/internal/adapter/tui/uxerror"
	"telehaunt/internal/domain"
	"telehaunt/internal/usecase/cancel"
	"telehaunt/internal/usecase/reveal"
	"telehaunt/internal/usecase/transition"
	"telehaunt/internal/usecase/viewer"
)

// Controller is the navigation surface the TUI drives. *viewer.Viewer
// implements it.
type Controller interface {
	Goto(ctx context.Context, n int) (*cancel.Handle[pages.Page], error)
	Next(ctx context.Context) (*cancel.Handle[pages.Page], error)
	Prev(ctx context.Context) (*cancel.Handle[pages.Page], error)
	Reload(ctx context.Context) (*cancel.Handle[pages.Page], error)
	SetTheme(ctx context.Context, key string) error
	State() viewer.State
}

// ModelDeps are dependencies injected into the model.
type ModelDeps struct {
	Controller Controller
	// Skip receives a signal for every skip key press. Sends never block.
	Skip   chan<- struct{}
	Logger *slog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx  context.Context
	deps ModelDeps
	keys keyMap
	help help.Model

	reveal reveal.State
	trans  transition.State
	view   viewer.State

	entry    string // page number being typed
	status   string // last command error, humanized
	width    int
	quitting bool
}

// NewModel creates the root model. ctx bounds every command the model
// issues.
func NewModel(ctx context.Context, deps ModelDeps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return Model{
		ctx:  ctx,
		deps: deps,
		keys: defaultKeyMap,
		help: help.New(),
		view: deps.Controller.State(),
	}
}

// Init loads the start page.
func (m Model) Init() tea.Cmd {
	return m.gotoCmd(m.view.Page)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case RevealMsg:
		if msg.State.Seq > m.reveal.Seq {
			m.reveal = msg.State
		}
		return m, nil

	case TransitionMsg:
		if msg.State.Seq > m.trans.Seq {
			m.trans = msg.State
		}
		return m, nil

	case ViewerMsg:
		if msg.State.Seq > m.view.Seq {
			m.view = msg.State
		}
		return m, nil

	case ErrMsg:
		if domain.IsCancelled(msg.Err) {
			return m, nil
		}
		m.status = uxerror.Humanize(msg.Err).Short()
		m.deps.Logger.Warn("tui command failed", "error", msg.Err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Enter):
		m.entry += msg.String()
		if len(m.entry) == 3 {
			n, _ := strconv.Atoi(m.entry)
			m.entry = ""
			return m, m.gotoCmd(n)
		}
	case key.Matches(msg, m.keys.Clear):
		m.entry = ""
	case key.Matches(msg, m.keys.Next):
		return m, m.navCmd(m.deps.Controller.Next)
	case key.Matches(msg, m.keys.Prev):
		return m, m.navCmd(m.deps.Controller.Prev)
	case key.Matches(msg, m.keys.Reload):
		return m, m.navCmd(m.deps.Controller.Reload)
	case key.Matches(msg, m.keys.Skip):
		m.skip()
	case key.Matches(msg, m.keys.Theme):
		return m, m.themeCmd(viewer.NextTheme)
	}
	return m, nil
}

func (m Model) skip() {
	if m.deps.Skip == nil {
		return
	}
	select {
	case m.deps.Skip <- struct{}{}:
	default:
	}
}

// Commands run off the event loop: controller calls publish snapshots,
// which reach the program through Send.

func (m Model) gotoCmd(n int) tea.Cmd {
	ctx, ctrl := m.ctx, m.deps.Controller
	return func() tea.Msg {
		if _, err := ctrl.Goto(ctx, n); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) navCmd(fn func(context.Context) (*cancel.Handle[pages.Page], error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if _, err := fn(ctx); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) themeCmd(key string) tea.Cmd {
	ctx, ctrl := m.ctx, m.deps.Controller
	return func() tea.Msg {
		if err := ctrl.SetTheme(ctx, key); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

// View renders the page grid, the theme banner and the footer.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	palette := theme.For(m.view.Theme)

	var b strings.Builder
	b.WriteString(m.header(palette))
	b.WriteString("\n")
	b.WriteString(palette.BodyStyle(m.trans.Class()).Width(theme.GridWidth).Render(m.body()))
	b.WriteString("\n")
	if m.trans.Phase == transition.Banner {
		b.WriteString(palette.BannerStyle(m.trans.BannerVisible).Render(m.trans.BannerText))
		b.WriteString("\n")
	}
	b.WriteString(m.footer(palette))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header(p theme.Palette) string {
	page := fmt.Sprintf("P%d", m.view.Page)
	if m.entry != "" {
		page = "P" + m.entry + strings.Repeat("_", 3-len(m.entry))
	}
	name := strings.ToUpper(m.view.Theme)
	gap := theme.GridWidth - lipgloss.Width(page) - lipgloss.Width(name) - len(" TELEHAUNT ")
	if gap < 1 {
		gap = 1
	}
	return p.TitleStyle().Render(page + " TELEHAUNT " + strings.Repeat(" ", gap) + name)
}

// body returns the revealed text clipped to the grid.
func (m Model) body() string {
	lines := strings.Split(m.reveal.DisplayText(), "\n")
	rows := theme.GridRows - 3
	if len(lines) > rows {
		lines = lines[:rows]
	}
	for i, line := range lines {
		lines[i] = truncate(line, theme.GridWidth)
	}
	return strings.Join(lines, "\n")
}

func (m Model) footer(p theme.Palette) string {
	switch {
	case m.status != "":
		return theme.TextError.Render(theme.Symbols.Error + " " + truncate(m.status, theme.GridWidth-2))
	case m.view.Loading:
		return p.StatusStyle().Render(theme.Symbols.Loading + " loading " + viewer.PageKey(m.view.Page))
	case m.view.Err != nil:
		return theme.TextError.Render(theme.Symbols.Error + " " + string(domain.ErrorCodeOf(m.view.Err)))
	case m.reveal.Mode == reveal.Typing:
		return p.StatusStyle().Render(fmt.Sprintf("%d%%", m.reveal.Progress))
	default:
		return p.StatusStyle().Render(m.view.Title)
	}
}

// truncate clips s to width terminal cells.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, theme.Symbols.Ellipsis)
}
