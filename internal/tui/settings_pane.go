package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"contractanalyzer/internal/settings"
)

type settingsKeys struct {
	Test  key.Binding
	Theme key.Binding
}

type settingsPane struct {
	paneBase
	settings *settings.Module
	keys     settingsKeys
	now      func() time.Time
}

func newSettingsPane(sm *settings.Module, styles Styles) *settingsPane {
	p := &settingsPane{
		settings: sm,
		now:      time.Now,
		keys: settingsKeys{
			Test:  binding("c", "test connection"),
			Theme: binding("T", "toggle theme"),
		},
	}
	p.SetStyles(styles)
	return p
}

func (p *settingsPane) Sync() {}

func (p *settingsPane) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch {
	case key.Matches(km, p.keys.Test):
		p.settings.StartTestConnection()
	case key.Matches(km, p.keys.Theme):
		// failures are already reported by the settings module
		_, _ = p.settings.ToggleTheme()
	}
	return nil
}

func (p *settingsPane) View() string {
	cfg := p.settings.Config()
	now := p.now()

	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", p.styles.Muted.Render(fmt.Sprintf("%-22s", label)), value)
	}

	b.WriteString(p.styles.Title.Render("Backend"))
	b.WriteString("\n")
	row("URL", cfg.API.BaseURL)
	row("Request timeout", cfg.GetTimeout().String())
	row("Upload timeout", cfg.GetUploadTimeout().String())
	row("Retries", fmt.Sprint(cfg.API.RetryAttempts))
	row("Poll interval", cfg.GetPollInterval().String())
	row("Token", p.tokenLine(now))
	row("Connection", p.connectionLine())
	b.WriteString("\n")

	b.WriteString(p.styles.Title.Render("Console"))
	b.WriteString("\n")
	row("Theme", cfg.UI.Theme)
	row("Allowed types", strings.Join(cfg.Upload.AllowedTypes, ", "))
	row("Max upload size", fmt.Sprintf("%d MB", cfg.Upload.MaxSizeMB))
	row("Notifications shown", fmt.Sprint(cfg.Notifications.MaxVisible))
	row("Mobile below", fmt.Sprintf("%d columns", cfg.Navigation.MobileBreakpoint))
	row("Downloads", cfg.Downloads.Dir)
	row("Log file", cfg.Logging.File)
	if path := p.settings.Path(); path != "" {
		row("Config file", path+p.styles.Muted.Render(" (watched)"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *settingsPane) tokenLine(now time.Time) string {
	tok := p.settings.Token(now)
	switch {
	case !tok.Present:
		return p.styles.Muted.Render("none")
	case tok.Opaque:
		return "set (opaque)"
	case tok.Expired:
		return p.styles.Error.Render("expired " + tok.ExpiresAt.Format(time.RFC822))
	case !tok.ExpiresAt.IsZero():
		line := fmt.Sprintf("valid for %s", tok.ExpiresIn(now).Round(time.Minute))
		if tok.Subject != "" {
			line = tok.Subject + ", " + line
		}
		return p.styles.Success.Render(line)
	default:
		return "set"
	}
}

func (p *settingsPane) connectionLine() string {
	c := p.settings.LastConnection()
	if c == nil {
		if h := p.settings.Health(); h.Healthy() {
			return p.styles.Success.Render("healthy")
		}
		return p.styles.Muted.Render("not tested")
	}
	if c.Err != "" {
		return p.styles.Error.Render("failed: " + c.Err)
	}
	status := "unknown"
	if c.Health != nil {
		status = c.Health.Status
	}
	line := fmt.Sprintf("%s in %s", status, c.Latency.Round(time.Millisecond))
	if c.Health.Healthy() {
		return p.styles.Success.Render(line)
	}
	return p.styles.Warning.Render(line)
}

func (p *settingsPane) Keys() []key.Binding {
	return []key.Binding{p.keys.Test, p.keys.Theme}
}
