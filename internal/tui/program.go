package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram creates the full-screen status watch program.
func NewProgram(fetch SnapshotFunc, interval time.Duration) *tea.Program {
	return tea.NewProgram(NewModel(fetch, interval), tea.WithAltScreen())
}

// Run runs the watch program until the user quits.
func Run(fetch SnapshotFunc, interval time.Duration) error {
	_, err := NewProgram(fetch, interval).Run()
	return err
}
