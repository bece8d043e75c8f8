package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"contractanalyzer/internal/app"
	"contractanalyzer/internal/logging"
	"contractanalyzer/internal/navigation"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/upload"
	"contractanalyzer/internal/utils"
)

const animationFrame = 50 * time.Millisecond

type (
	changedMsg struct{}
	animateMsg time.Time
)

// Model is the root bubbletea model.
type Model struct {
	app     *app.App
	logger  *zap.Logger
	styles  Styles
	theme   string
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	panes   map[shell.TabID]pane

	changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	resize    *utils.ResizeDebouncer

	width     int
	height    int
	sidebar   bool // sidebar visibility the panes were last sized for
	animating bool
	spinning  bool
	now       func() time.Time
}

// New builds the front end for a and registers its panes with navigation.
// It must run before a.Start.
func New(a *app.App) *Model {
	cfg := a.Core.Config()
	styles := NewStyles(ThemeFor(cfg.UI.Theme))

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Info

	m := &Model{
		app:     a,
		logger:  logging.For(a.Logger, logging.CategoryTUI),
		styles:  styles,
		theme:   cfg.UI.Theme,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		resize:  utils.NewResizeDebouncer(utils.DefaultResizeDuration),
		now:     time.Now,
	}
	m.panes = map[shell.TabID]pane{
		shell.TabDashboard: newDashboardPane(a.Dashboard, styles),
		shell.TabUpload:    newUploadPane(a.Upload, a.Dashboard, a.Notify, cfg, styles),
		shell.TabPrompts:   newPromptsPane(a.Prompts, styles),
		shell.TabSettings:  newSettingsPane(a.Settings, styles),
	}
	for _, tab := range shell.Tabs() {
		a.Navigation.RegisterPane(tab, m.panes[tab])
	}
	a.Core.OnChange(m.signal)
	return m
}

// signal wakes the event loop. It never blocks; one pending wake-up is
// enough because the loop re-reads all state.
func (m *Model) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.done:
			return nil
		}
	}
}

// Close detaches from Core and releases the change listener.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		m.app.Core.OnChange(nil)
		m.resize.Cancel()
		close(m.done)
	})
}

func (m *Model) Init() tea.Cmd {
	m.sync()
	return tea.Batch(m.listen(), m.startAnimation(), m.startSpinner())
}

func (m *Model) current() pane {
	if p, ok := m.panes[m.app.Navigation.CurrentTab()]; ok {
		return p
	}
	return m.panes[shell.TabDashboard]
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		m.resize.Resize(msg.Width, msg.Height, m.app.Core.HandleResize)
		return m, m.broadcast(msg)

	case tea.FocusMsg:
		m.app.Core.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.app.Core.SetVisible(false)
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case changedMsg:
		m.sync()
		return m, tea.Batch(m.listen(), m.startAnimation(), m.startSpinner())

	case animateMsg:
		if m.app.Dashboard.Metrics().Animating(m.now()) {
			return m, m.frame()
		}
		m.animating = false
		return m, nil

	case spinner.TickMsg:
		if !m.needsSpinner() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, m.broadcast(msg)
}

// broadcast hands msg to every pane. Widget-internal messages such as
// directory listings must reach their pane even when it is hidden.
func (m *Model) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for _, tab := range shell.Tabs() {
		cmds = append(cmds, m.panes[tab].Update(msg))
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	nav := m.app.Navigation
	cur := m.current()

	if msg.Paste {
		if nav.CurrentTab() == shell.TabUpload && !cur.Capturing() {
			m.drop(string(msg.Runes))
			return nil
		}
		return cur.Update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Tabs):
		nav.HandleShortcut(msg.String())
		return nil
	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
		return nil
	case key.Matches(msg, m.keys.Sidebar):
		nav.ToggleSidebar()
		return nil
	}

	if cur.Capturing() {
		return cur.Update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.app.Core.HandleEscape()
		return nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return nil
	case key.Matches(msg, m.keys.Confirm, m.keys.Cancel):
		if n, ok := m.app.Notify.PendingConfirm(); ok {
			action := 0
			if key.Matches(msg, m.keys.Cancel) {
				action = 1
			}
			m.app.Notify.Trigger(n.ID, action)
			return nil
		}
	}
	return cur.Update(msg)
}

func (m *Model) refresh() {
	core := m.app.Core
	core.Go("manual-refresh", func(ctx context.Context) error {
		if err := core.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.app.Notify.Warning("Some data could not be refreshed")
		}
		return nil
	})
}

// drop treats pasted text as files dragged onto the terminal.
func (m *Model) drop(text string) {
	sel, err := upload.FromDrop(text)
	if err != nil {
		m.logger.Debug("dropped text rejected", zap.Error(err))
		m.app.Notify.Error(err.Error())
	}
	if !sel.Empty() {
		m.app.Upload.Submit(sel)
	}
}

// handleMouse maps clicks onto the menu toggle, menu entries and the
// outside-click rule for the mobile sidebar.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return
	}
	nav := m.app.Navigation
	onToggle := msg.Y == 0 && msg.X < 3
	inSidebar := nav.SidebarVisible() && msg.Y > 0 && msg.X < SidebarWidth

	if onToggle {
		nav.ToggleSidebar()
		return
	}
	if inSidebar {
		// header, then one line of padding
		row := msg.Y - 2
		if tabs := shell.Tabs(); row >= 0 && row < len(tabs) {
			nav.ShowTab(tabs[row])
		}
		return
	}
	nav.HandleOutsideClick(false, false)
}

func (m *Model) sync() {
	if theme := m.app.Core.Config().UI.Theme; theme != m.theme {
		m.theme = theme
		m.styles = NewStyles(ThemeFor(theme))
		m.spinner.Style = m.styles.Info
		for _, p := range m.panes {
			p.SetStyles(m.styles)
		}
		m.layout()
	} else if m.app.Navigation.SidebarVisible() != m.sidebar {
		m.layout()
	}
	for _, p := range m.panes {
		p.Sync()
	}
}

func (m *Model) startAnimation() tea.Cmd {
	if m.animating || !m.app.Dashboard.Metrics().Animating(m.now()) {
		return nil
	}
	m.animating = true
	return m.frame()
}

func (m *Model) frame() tea.Cmd {
	return tea.Tick(animationFrame, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func (m *Model) needsSpinner() bool {
	if len(m.app.Upload.Tasks()) > 0 {
		return true
	}
	for _, n := range m.app.Notify.Active() {
		if n.Loading {
			return true
		}
	}
	return false
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.needsSpinner() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// layout sizes every pane to the space left by the chrome.
func (m *Model) layout() {
	m.sidebar = m.app.Navigation.SidebarVisible()
	w, h := m.contentSize()
	for _, p := range m.panes {
		p.SetSize(w, h)
	}
}

func (m *Model) contentSize() (int, int) {
	w := m.width
	if m.app.Navigation.SidebarVisible() {
		w -= SidebarWidth
	}
	h := m.height - 2 - lipgloss.Height(m.footerView())
	return max(w-4, 10), max(h-2, 3)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	body := m.styles.Content.Render(m.current().View())
	if m.app.Navigation.SidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), body)
	}

	parts := []string{m.headerView(), body}
	if n := m.notificationsView(); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) headerView() string {
	st := m.app.Navigation.State()
	health := m.styles.Error.Render("● backend unreachable")
	if status := m.app.Core.State().Data.SystemStatus; status.Healthy() {
		label := "● backend healthy"
		if status.Version != "" {
			label += " " + status.Version
		}
		health = m.styles.Success.Render(label)
	} else if status != nil {
		health = m.styles.Warning.Render("● backend " + status.Status)
	}

	left := m.styles.Header.Render("☰  " + st.Title)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(health) - 1
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + health
}

func (m *Model) sidebarView() string {
	current := m.app.Navigation.CurrentTab()
	var lines []string
	for i, tab := range shell.Tabs() {
		label := fmt.Sprintf("%d  %s", i+1, strings.TrimSuffix(navigation.Title(tab), " - "+navigation.AppTitle))
		if tab == current {
			lines = append(lines, m.styles.MenuActive.Render("▸ "+label))
			continue
		}
		lines = append(lines, m.styles.MenuItem.Render("  "+label))
	}
	_, h := m.contentSize()
	return m.styles.Sidebar.Height(h).Render(strings.Join(lines, "\n"))
}

func (m *Model) notificationsView() string {
	items := m.app.Notify.Active()
	if len(items) == 0 {
		return ""
	}
	pending, hasPending := m.app.Notify.PendingConfirm()

	var lines []string
	for _, n := range items {
		style := m.styles.Kind(n.Kind)
		icon := kindIcon(n.Kind)
		if n.Loading {
			icon = m.spinner.View()
		}
		line := style.Render(icon) + " " + n.Message
		if hasPending && n.ID == pending.ID {
			line += "  " + m.styles.ConfirmAction.Render("[y] "+n.Actions[0].Label)
			if len(n.Actions) > 1 {
				line += " " + m.styles.ConfirmAction.Render("[n] "+n.Actions[1].Label)
			}
		}
		lines = append(lines, line)
	}
	return m.styles.Notification.
		BorderForeground(m.styles.Theme.Border).
		Width(max(m.width-2, 10)).
		Render(strings.Join(lines, "\n"))
}

func kindIcon(k notify.Kind) string {
	switch k {
	case notify.Success:
		return "✓"
	case notify.Error:
		return "✗"
	case notify.Warning:
		return "!"
	default:
		return "i"
	}
}

func (m *Model) footerView() string {
	return m.styles.Footer.Render(m.help.View(helpKeys{global: m.keys, pane: m.current().Keys()}))
}

// Run starts the session and blocks until the user quits or ctx ends.
func Run(ctx context.Context, a *app.App) error {
	m := New(a)
	defer m.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	m.logger.Info("console started")
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	m.logger.Info("console exited", zap.Error(err))
	return err
}
