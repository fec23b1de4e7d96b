package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings of every mode. Searching only consults Up,
// Down, Commit, Escape and Quit; everything else goes to the text input.
type keyMap struct {
	Search   key.Binding
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Refresh  key.Binding
	Switch   key.Binding
	Commit   key.Binding
	Escape   key.Binding
	Quit     key.Binding
	ForceQ   key.Binding

	// search-mode arrows; j/k are text there
	SearchUp   key.Binding
	SearchDown key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("tab", " "),
			key.WithHelp("tab", "panes"),
		),
		Expand: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h", "collapse"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Switch: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "switch"),
		),
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "done"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQ: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		SearchUp: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
		),
		SearchDown: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
		),
	}
}

// helpFor returns the footer bindings of a mode.
func (k keyMap) helpFor(m Mode) []key.Binding {
	switch m {
	case ModeSearching:
		return []key.Binding{k.Commit, k.Escape, k.ForceQ}
	case ModePaneStateSelect:
		return []key.Binding{k.Down, k.Up, k.Commit, k.Escape}
	default:
		return []key.Binding{k.Search, k.Down, k.Up, k.Toggle, k.Refresh, k.Switch, k.Escape, k.Quit}
	}
}
