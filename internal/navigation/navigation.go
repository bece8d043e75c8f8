// Package navigation is the tab state machine and responsive sidebar.
package navigation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/shell"
)

// Pane is the content view of one tab.
type Pane interface {
	SetActive(active bool)
}

// NopPane is a pane with no view, for headless sessions.
type NopPane struct{}

func (NopPane) SetActive(bool) {}

var titles = map[shell.TabID]string{
	shell.TabDashboard: "Dashboard",
	shell.TabUpload:    "Upload Files",
	shell.TabPrompts:   "Prompt Management",
	shell.TabSettings:  "Settings",
}

// AppTitle prefixes every page title.
const AppTitle = "Contract Analyzer"

// Title returns the page title shown for tab.
func Title(tab shell.TabID) string {
	if t, ok := titles[tab]; ok {
		return t + " - " + AppTitle
	}
	return AppTitle
}

// State is a copy of the navigation state.
type State struct {
	CurrentTab     shell.TabID
	PreviousTab    shell.TabID
	Tabs           []shell.TabID
	ActiveMenu     int
	SidebarVisible bool
	IsMobile       bool
	Title          string
	Width          int
}

// Module is the navigation module.
type Module struct {
	logger *zap.Logger

	mu             sync.Mutex
	host           shell.Host
	panes          map[shell.TabID]Pane
	tabs           []shell.TabID
	current        shell.TabID
	previous       shell.TabID
	activeMenu     int
	title          string
	sidebarVisible bool
	isMobile       bool
	sized          bool
	width          int
	breakpoint     int
}

// New creates the navigation module.
func New(cfg *config.Config, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		logger:         logger,
		panes:          make(map[shell.TabID]Pane),
		tabs:           shell.Tabs(),
		activeMenu:     -1,
		title:          AppTitle,
		sidebarVisible: true,
		breakpoint:     cfg.Navigation.MobileBreakpoint,
	}
}

func (m *Module) Name() string { return shell.ModuleNavigation }

func (m *Module) Init(_ context.Context, host shell.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host = host
	if len(m.panes) == 0 {
		return fmt.Errorf("no tab panes registered")
	}
	return nil
}

// RegisterPane attaches the view for tab.
func (m *Module) RegisterPane(tab shell.TabID, p Pane) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panes[tab] = p
}

func (m *Module) known(tab shell.TabID) bool {
	for _, t := range m.tabs {
		if t == tab {
			return true
		}
	}
	return false
}

// ShowTab makes tab the single active tab. It returns false, shows an error
// and leaves the current tab unchanged when tab is unknown or has no pane.
func (m *Module) ShowTab(tab shell.TabID) bool {
	m.mu.Lock()
	host := m.host
	if !m.known(tab) {
		m.mu.Unlock()
		m.logger.Warn("unknown tab", zap.String("tab", string(tab)))
		m.report(host, fmt.Sprintf("Unknown tab: %s", tab))
		return false
	}
	target, ok := m.panes[tab]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("tab has no pane", zap.String("tab", string(tab)))
		m.report(host, fmt.Sprintf("Tab content not found: %s", tab))
		return false
	}

	for t, p := range m.panes {
		if t != tab {
			p.SetActive(false)
		}
	}
	target.SetActive(true)

	previous := m.current
	m.previous = previous
	m.current = tab
	m.title = Title(tab)
	for i, t := range m.tabs {
		if t == tab {
			m.activeMenu = i
		}
	}
	if m.isMobile {
		m.sidebarVisible = false
	}
	m.mu.Unlock()

	m.logger.Debug("tab shown", zap.String("tab", string(tab)), zap.String("previous", string(previous)))

	if host == nil {
		return true
	}
	host.SetCurrentTab(tab)
	if owner, ok := host.Module(string(tab)); ok {
		if a, ok := owner.(shell.TabActivator); ok {
			a.OnTabActivated()
		}
	}
	host.NotifyModules(shell.TabChanged{Current: tab, Previous: previous})
	host.Changed()
	return true
}

func (m *Module) report(host shell.Host, msg string) {
	if host != nil {
		host.ReportError(msg)
	}
}

// HandleShortcut switches tabs for alt+1..alt+N. It reports whether key
// was a tab shortcut.
func (m *Module) HandleShortcut(key string) bool {
	rest, ok := strings.CutPrefix(key, "alt+")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > len(m.tabs) {
		return false
	}
	m.ShowTab(m.tabs[n-1])
	return true
}

// ToggleSidebar flips sidebar visibility.
func (m *Module) ToggleSidebar() {
	m.mu.Lock()
	m.sidebarVisible = !m.sidebarVisible
	m.mu.Unlock()
	m.changed()
}

// HandleOutsideClick hides the sidebar on mobile when a click lands outside
// it and not on the toggle control.
func (m *Module) HandleOutsideClick(inSidebar, onToggle bool) {
	m.mu.Lock()
	hide := m.isMobile && m.sidebarVisible && !inSidebar && !onToggle
	if hide {
		m.sidebarVisible = false
	}
	m.mu.Unlock()
	if hide {
		m.changed()
	}
}

func (m *Module) HandleEvent(ev shell.Event) {
	switch e := ev.(type) {
	case shell.WindowResized:
		m.resize(e.Width)
	case shell.EscapePressed:
		m.mu.Lock()
		closed := m.isMobile && m.sidebarVisible
		if closed {
			m.sidebarVisible = false
		}
		m.mu.Unlock()
		if closed {
			m.changed()
		}
	case shell.SettingsChanged:
		m.mu.Lock()
		m.breakpoint = e.Config.Navigation.MobileBreakpoint
		width, sized := m.width, m.sized
		m.mu.Unlock()
		if sized {
			m.resize(width)
		}
	}
}

// resize recomputes IsMobile; crossing the breakpoint resets the sidebar
// to its default for the new layout.
func (m *Module) resize(width int) {
	m.mu.Lock()
	m.width = width
	mobile := width < m.breakpoint
	crossed := !m.sized || mobile != m.isMobile
	m.sized = true
	m.isMobile = mobile
	if crossed {
		m.sidebarVisible = !mobile
	}
	m.mu.Unlock()

	if crossed {
		m.logger.Debug("layout changed", zap.Int("width", width), zap.Bool("mobile", mobile))
	}
}

// State returns a copy of the navigation state.
func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		CurrentTab:     m.current,
		PreviousTab:    m.previous,
		Tabs:           append([]shell.TabID(nil), m.tabs...),
		ActiveMenu:     m.activeMenu,
		SidebarVisible: m.sidebarVisible,
		IsMobile:       m.isMobile,
		Title:          m.title,
		Width:          m.width,
	}
}

// CurrentTab returns the active tab, empty before the first ShowTab.
func (m *Module) CurrentTab() shell.TabID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsMobile reports whether the compact layout is in use.
func (m *Module) IsMobile() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isMobile
}

// SidebarVisible reports whether the sidebar is shown.
func (m *Module) SidebarVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sidebarVisible
}

func (m *Module) changed() {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}
