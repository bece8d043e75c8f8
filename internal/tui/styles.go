// Package tui is the terminal front end of the console.
package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
)

var (
	// Light mode
	LightForeground = lipgloss.Color("#1b2a41")
	LightPrimary    = lipgloss.Color("#1b2a41")
	LightAccent     = lipgloss.Color("#3f7fbf")
	LightSecondary  = lipgloss.Color("#e1e4e8")
	LightMuted      = lipgloss.Color("#7a8594")
	LightBorder     = lipgloss.Color("#c9ced6")

	// Dark mode
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#7fb4e6")
	DarkAccent     = lipgloss.Color("#3f7fbf")
	DarkSecondary  = lipgloss.Color("#1e2a3d")
	DarkMuted      = lipgloss.Color("#8a96a8")
	DarkBorder     = lipgloss.Color("#2a3850")

	// Semantic colors are shared by both modes.
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#ffb300")
	Info        = lipgloss.Color("#2196f3")
)

// Theme is a color scheme.
type Theme struct {
	Name       string
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{
		Name:       "light",
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
	}
}

func DarkTheme() Theme {
	return Theme{
		Name:       "dark",
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// ThemeFor resolves the configured preference. "auto" inspects COLORFGBG
// and falls back to light.
func ThemeFor(pref string) Theme {
	switch pref {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	}
	return DetectTheme()
}

// DetectTheme guesses the terminal background from COLORFGBG, formatted
// "foreground;background".
func DetectTheme() Theme {
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) >= 2 {
		if bg, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			if (bg >= 0 && bg <= 6) || bg == 8 {
				return DarkTheme()
			}
		}
	}
	return LightTheme()
}

// Styles holds every style the front end renders with.
type Styles struct {
	Theme Theme

	// Layout
	Header        lipgloss.Style
	Sidebar       lipgloss.Style
	MenuItem      lipgloss.Style
	MenuActive    lipgloss.Style
	Content       lipgloss.Style
	Footer        lipgloss.Style
	Card          lipgloss.Style
	CardValue     lipgloss.Style
	CardLabel     lipgloss.Style
	SelectedLine  lipgloss.Style
	Title         lipgloss.Style
	Muted         lipgloss.Style
	Bold          lipgloss.Style
	Notification  lipgloss.Style
	ConfirmAction lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

// SidebarWidth is the rendered width of the menu, borders included.
const SidebarWidth = 24

func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		Sidebar: lipgloss.NewStyle().
			Width(SidebarWidth-2).
			Padding(1, 1).
			BorderRight(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.Border),

		MenuItem: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		MenuActive: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 2).
			Width(18),

		CardValue: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		CardLabel: lipgloss.NewStyle().
			Foreground(theme.Muted),

		SelectedLine: lipgloss.NewStyle().
			Background(theme.Secondary).
			Foreground(theme.Foreground),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Notification: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),

		ConfirmAction: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(Info),
	}
}

// Status returns the style for a status display class.
func (s Styles) Status(class model.StatusClass) lipgloss.Style {
	switch class {
	case model.ClassSuccess:
		return s.Success
	case model.ClassInfo:
		return s.Info
	case model.ClassWarning:
		return s.Warning
	case model.ClassDanger:
		return s.Error
	default:
		return s.Muted
	}
}

// Tier returns the style for a similarity confidence band.
func (s Styles) Tier(t model.Tier) lipgloss.Style {
	switch t {
	case model.TierHigh:
		return s.Success
	case model.TierMedium:
		return s.Warning
	default:
		return s.Error
	}
}

// Kind returns the style for a notification kind.
func (s Styles) Kind(k notify.Kind) lipgloss.Style {
	switch k {
	case notify.Success:
		return s.Success
	case notify.Error:
		return s.Error
	case notify.Warning:
		return s.Warning
	default:
		return s.Info
	}
}

// Divider is a horizontal rule of the given width.
func (s Styles) Divider(width int) string {
	if width < 1 {
		return ""
	}
	return s.Muted.Render(strings.Repeat("─", width))
}
