package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the status watch view.
type KeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	CopyAPI key.Binding
	Help    key.Binding
}

// DefaultKeyMap returns a KeyMap with default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
		CopyAPI: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy API URL"),
		),
		Help: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle help"),
		),
	}
}

// ShortHelp is the one-line help shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.CopyAPI, k.Quit}
}

// FullHelp is shown when help is toggled on.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.CopyAPI}, {k.Help, k.Quit}}
}
