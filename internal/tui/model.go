package tui

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"researchctl/internal/status"
	"researchctl/internal/tui/design"
)

// SnapshotFunc produces a fresh status snapshot.
type SnapshotFunc func(ctx context.Context) *status.Snapshot

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// snapshotMsg carries a fetched snapshot. Only fetches started by Init or a
// tick are scheduled; they alone arm the next tick, so exactly one refresh
// loop runs however often the operator refreshes by hand.
type snapshotMsg struct {
	snapshot  *status.Snapshot
	at        time.Time
	scheduled bool
}

type tickMsg time.Time

type clearStatusMsg struct{}

// Model is the bubbletea model behind `status --watch`.
type Model struct {
	fetch    SnapshotFunc
	interval time.Duration
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model

	snapshot   *status.Snapshot
	updatedAt  time.Time
	loading    bool
	statusLine string
	width      int
}

// NewModel creates a watch model that refreshes every interval.
func NewModel(fetch SnapshotFunc, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = design.TextSecondaryStyle
	return Model{
		fetch:    fetch,
		interval: interval,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(true))
}

func (m Model) refresh(scheduled bool) tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		return snapshotMsg{snapshot: fetch(context.Background()), at: time.Now(), scheduled: scheduled}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.refresh(false)
		case key.Matches(msg, m.keys.CopyAPI):
			url := m.apiURL()
			if url == "" {
				m.statusLine = "No API endpoint to copy"
				return m, clearAfter(3 * time.Second)
			}
			if err := writeClipboard(url); err != nil {
				m.statusLine = "Copy failed: " + err.Error()
			} else {
				m.statusLine = "Copied " + url
			}
			return m, clearAfter(3 * time.Second)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.updatedAt = msg.at
		m.loading = false
		if !msg.scheduled {
			return m, nil
		}
		return m, m.scheduleTick()

	case tickMsg:
		m.loading = true
		return m, m.refresh(true)

	case clearStatusMsg:
		m.statusLine = ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	if m.snapshot == nil {
		b.WriteString(m.spinner.View())
		b.WriteString(" Querying containers...\n")
	} else {
		b.WriteString(status.Render(m.snapshot))
		b.WriteString("\n")
		footer := "Updated " + m.updatedAt.Format("15:04:05")
		if m.loading {
			footer = m.spinner.View() + " " + footer
		}
		b.WriteString(design.TextSecondaryStyle.Render(footer))
		b.WriteString("\n")
	}
	if m.statusLine != "" {
		b.WriteString(design.TextSuccessStyle.Render(m.statusLine))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// apiURL returns the first endpoint named like the API.
func (m Model) apiURL() string {
	if m.snapshot == nil {
		return ""
	}
	for _, e := range m.snapshot.Endpoints {
		if strings.EqualFold(e.Name, "api") {
			return e.URL
		}
	}
	for _, e := range m.snapshot.Endpoints {
		if strings.HasPrefix(strings.ToLower(e.Name), "api") {
			return e.URL
		}
	}
	return ""
}

func clearAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}
