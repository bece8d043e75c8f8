package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the global bindings. Panes add their own.
type keyMap struct {
	Tabs    key.Binding
	Refresh key.Binding
	Sidebar key.Binding
	Escape  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Tabs: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4"),
			key.WithHelp("alt+1-4", "switch tab"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Sidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "menu"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// helpKeys joins the global bindings with the active pane's.
type helpKeys struct {
	global keyMap
	pane   []key.Binding
}

func (h helpKeys) ShortHelp() []key.Binding {
	return append([]key.Binding{h.global.Tabs, h.global.Refresh, h.global.Help, h.global.Quit}, h.pane...)
}

func (h helpKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.global.Tabs, h.global.Refresh, h.global.Sidebar},
		{h.global.Escape, h.global.Confirm, h.global.Cancel},
		{h.global.Help, h.global.Quit},
		h.pane,
	}
}
