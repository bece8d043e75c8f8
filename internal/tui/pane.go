package tui

import (
	"sync/atomic"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// pane renders one tab. Navigation toggles SetActive; everything else runs
// on the event loop.
type pane interface {
	SetActive(active bool)
	SetSize(width, height int)
	SetStyles(s Styles)
	// Sync pulls fresh state from the backing module.
	Sync()
	Update(msg tea.Msg) tea.Cmd
	View() string
	Keys() []key.Binding
	// Capturing reports whether a text field owns the keyboard.
	Capturing() bool
}

type paneBase struct {
	active atomic.Bool
	width  int
	height int
	styles Styles
}

func (p *paneBase) SetActive(active bool) { p.active.Store(active) }

func (p *paneBase) Active() bool { return p.active.Load() }

func (p *paneBase) SetSize(width, height int) {
	p.width, p.height = width, height
}

func (p *paneBase) SetStyles(s Styles) { p.styles = s }

func (p *paneBase) Capturing() bool { return false }

func binding(keys, desc string, more ...string) key.Binding {
	return key.NewBinding(
		key.WithKeys(append([]string{keys}, more...)...),
		key.WithHelp(keys, desc),
	)
}
