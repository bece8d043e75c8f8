package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contractanalyzer/internal/dashboard"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/utils"
)

type dashboardKeys struct {
	AnalyzeAll    key.Binding
	Redlined      key.Binding
	ChangesTable  key.Binding
	TrackChanges  key.Binding
	BatchReports  key.Binding
	ClearContract key.Binding
	ClearFiles    key.Binding
}

type dashboardPane struct {
	paneBase
	dash    *dashboard.Module
	table   table.Model
	results []model.AnalysisResult
	keys    dashboardKeys
	now     func() time.Time
}

func newDashboardPane(dash *dashboard.Module, styles Styles) *dashboardPane {
	t := table.New(
		table.WithColumns(resultColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	p := &dashboardPane{
		dash:  dash,
		table: t,
		now:   time.Now,
		keys: dashboardKeys{
			AnalyzeAll:    binding("a", "analyze all"),
			Redlined:      binding("r", "redlined"),
			ChangesTable:  binding("t", "changes table"),
			TrackChanges:  binding("w", "word track changes"),
			BatchReports:  binding("g", "batch reports"),
			ClearContract: binding("C", "clear contracts"),
			ClearFiles:    binding("X", "clear all files"),
		},
	}
	p.SetStyles(styles)
	return p
}

func resultColumns(width int) []table.Column {
	// contract, template, similarity, status, changes, date
	fixed := 10 + 18 + 8 + 16
	flex := max((width-fixed)/2, 12)
	return []table.Column{
		{Title: "Contract", Width: flex},
		{Title: "Template", Width: flex},
		{Title: "Similarity", Width: 10},
		{Title: "Status", Width: 18},
		{Title: "Changes", Width: 8},
		{Title: "Date", Width: 16},
	}
}

func (p *dashboardPane) SetStyles(s Styles) {
	p.paneBase.SetStyles(s)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(s.Theme.Border).
		BorderBottom(true).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(s.Theme.Foreground).
		Background(s.Theme.Secondary).
		Bold(false)
	p.table.SetStyles(ts)
}

func (p *dashboardPane) SetSize(width, height int) {
	p.paneBase.SetSize(width, height)
	p.table.SetColumns(resultColumns(width))
	p.table.SetWidth(width)
	// metric cards take four lines, the detail line two
	p.table.SetHeight(max(height-8, 3))
}

func (p *dashboardPane) Sync() {
	p.results = p.dash.Results()
	rows := make([]table.Row, 0, len(p.results))
	for _, r := range p.results {
		rows = append(rows, table.Row{
			r.Contract,
			r.Template,
			utils.FormatPercent(r.Similarity),
			r.Status().String(),
			strconv.Itoa(r.ChangeCount()),
			utils.FormatDate(r.Date),
		})
	}
	p.table.SetRows(rows)
	if c := p.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		p.table.SetCursor(len(rows) - 1)
	}
}

func (p *dashboardPane) selected() (model.AnalysisResult, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.results) {
		return model.AnalysisResult{}, false
	}
	return p.results[i], true
}

func (p *dashboardPane) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch {
	case key.Matches(km, p.keys.AnalyzeAll):
		p.dash.RequestAnalyzeAll()
		return nil
	case key.Matches(km, p.keys.BatchReports):
		p.dash.RequestGenerateBatchReports()
		return nil
	case key.Matches(km, p.keys.ClearContract):
		p.dash.RequestClearAllContracts()
		return nil
	case key.Matches(km, p.keys.ClearFiles):
		p.dash.RequestClearAllFiles()
		return nil
	case key.Matches(km, p.keys.Redlined, p.keys.ChangesTable, p.keys.TrackChanges):
		r, ok := p.selected()
		if !ok {
			return nil
		}
		switch {
		case key.Matches(km, p.keys.Redlined):
			p.dash.StartDownloadReport(r.ID(), model.ReportRedlined)
		case key.Matches(km, p.keys.ChangesTable):
			p.dash.StartDownloadReport(r.ID(), model.ReportChangesTable)
		default:
			p.dash.StartDownloadWordTrackChanges(r.ID())
		}
		return nil
	}

	var cmd tea.Cmd
	p.table, cmd = p.table.Update(km)
	return cmd
}

func (p *dashboardPane) View() string {
	now := p.now()
	metrics := p.dash.Metrics()
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		p.card("Contracts", metrics.Contracts.Value(now)),
		p.card("Templates", metrics.Templates.Value(now)),
		p.card("Analyses", metrics.Analyses.Value(now)),
		p.card("Pending review", metrics.PendingReview.Value(now)),
	)

	if len(p.results) == 0 {
		empty := p.styles.Muted.Render("No analysis results yet. Upload contracts and run an analysis.")
		return lipgloss.JoinVertical(lipgloss.Left, cards, "", empty)
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards, p.table.View(), p.detail())
}

func (p *dashboardPane) card(label string, value int) string {
	return p.styles.Card.Render(
		p.styles.CardValue.Render(strconv.Itoa(value)) + "\n" + p.styles.CardLabel.Render(label))
}

func (p *dashboardPane) detail() string {
	r, ok := p.selected()
	if !ok {
		return ""
	}
	status := r.Status()
	tier := model.ConfidenceTier(r.Similarity)
	parts := []string{
		p.styles.Status(status.Class()).Render(status.String()),
		p.styles.Tier(tier).Render(fmt.Sprintf("%s confidence", tier)),
		"Next: " + status.NextStep(),
	}
	if r.Reviewer != "" {
		parts = append(parts, "Reviewer: "+r.Reviewer)
	}
	return strings.Join(parts, p.styles.Muted.Render("  ·  "))
}

func (p *dashboardPane) Keys() []key.Binding {
	k := p.keys
	return []key.Binding{k.AnalyzeAll, k.Redlined, k.ChangesTable, k.TrackChanges, k.BatchReports, k.ClearContract, k.ClearFiles}
}
