package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/dashboard"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/upload"
	"contractanalyzer/internal/utils"
)

type uploadKeys struct {
	Target  key.Binding
	Path    key.Binding
	Browse  key.Binding
	Up      key.Binding
	Down    key.Binding
	Analyze key.Binding
	Delete  key.Binding
	Cancel  key.Binding
	Submit  key.Binding
	Back    key.Binding
}

type uploadPane struct {
	paneBase
	up       *upload.Module
	dash     *dashboard.Module
	notifier *notify.Module

	input   textinput.Model
	picker  filepicker.Model
	picking bool
	bar     progress.Model
	keys    uploadKeys

	cursor int
	files  []fileEntry
	tasks  []upload.Task
	target model.UploadTarget
}

// fileEntry is a contract or template row.
type fileEntry struct {
	ID         string
	Filename   string
	FileSize   int64
	UploadDate string
}

func newUploadPane(up *upload.Module, dash *dashboard.Module, notifier *notify.Module, cfg *config.Config, styles Styles) *uploadPane {
	in := textinput.New()
	in.Placeholder = "Path to a .docx file, or paste/drop files here"
	in.CharLimit = 1024
	in.Width = 60

	fp := filepicker.New()
	fp.AllowedTypes = append([]string(nil), cfg.Upload.AllowedTypes...)
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	p := &uploadPane{
		up:       up,
		dash:     dash,
		notifier: notifier,
		input:    in,
		picker:   fp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		keys: uploadKeys{
			Target:  binding("t", "contract/template"),
			Path:    binding("i", "enter path"),
			Browse:  binding("o", "browse"),
			Up:      binding("k", "up", "up"),
			Down:    binding("j", "down", "down"),
			Analyze: binding("a", "analyze contract"),
			Delete:  binding("d", "delete"),
			Cancel:  binding("x", "cancel uploads"),
			Submit:  binding("enter", "upload"),
			Back:    binding("esc", "back"),
		},
	}
	p.SetStyles(styles)
	return p
}

func (p *uploadPane) SetSize(width, height int) {
	p.paneBase.SetSize(width, height)
	p.input.Width = max(width-4, 10)
	p.bar.Width = max(min(width-30, 60), 10)
}

func (p *uploadPane) Capturing() bool {
	return p.picking || p.input.Focused()
}

func (p *uploadPane) Sync() {
	p.target = p.up.Target()
	p.tasks = p.up.Tasks()
	p.files = p.files[:0]
	if p.target == model.TargetTemplate {
		for _, t := range p.up.Templates() {
			p.files = append(p.files, fileEntry(t))
		}
	} else {
		for _, c := range p.up.Contracts() {
			p.files = append(p.files, fileEntry(c))
		}
	}
	if p.cursor >= len(p.files) {
		p.cursor = max(len(p.files)-1, 0)
	}
}

func (p *uploadPane) Update(msg tea.Msg) tea.Cmd {
	km, isKey := msg.(tea.KeyMsg)
	if !isKey {
		// directory listings and window sizes for the picker
		var cmd tea.Cmd
		p.picker, cmd = p.picker.Update(msg)
		return cmd
	}

	if p.picking {
		return p.updatePicker(km)
	}
	if p.input.Focused() {
		return p.updateInput(km)
	}

	switch {
	case key.Matches(km, p.keys.Target):
		next := model.TargetTemplate
		if p.target == model.TargetTemplate {
			next = model.TargetContract
		}
		p.up.SetTarget(next)
		p.cursor = 0
	case key.Matches(km, p.keys.Path):
		return p.input.Focus()
	case key.Matches(km, p.keys.Browse):
		p.picking = true
		return p.picker.Init()
	case key.Matches(km, p.keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(km, p.keys.Down):
		if p.cursor < len(p.files)-1 {
			p.cursor++
		}
	case key.Matches(km, p.keys.Analyze):
		if f, ok := p.selected(); ok && p.target == model.TargetContract {
			p.dash.StartAnalyzeContract(f.ID)
		}
	case key.Matches(km, p.keys.Delete):
		if f, ok := p.selected(); ok {
			p.up.RequestDelete(p.target, f.ID, f.Filename)
		}
	case key.Matches(km, p.keys.Cancel):
		p.up.CancelAll()
	}
	return nil
}

func (p *uploadPane) updatePicker(km tea.KeyMsg) tea.Cmd {
	if key.Matches(km, p.keys.Back) {
		p.picking = false
		return nil
	}
	var cmd tea.Cmd
	p.picker, cmd = p.picker.Update(km)
	if ok, path := p.picker.DidSelectFile(km); ok {
		p.picking = false
		p.submit(path)
		return cmd
	}
	if ok, path := p.picker.DidSelectDisabledFile(km); ok {
		p.notifier.Error(fmt.Sprintf("%s is not an allowed file type", path))
	}
	return cmd
}

func (p *uploadPane) updateInput(km tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(km, p.keys.Back):
		p.input.Blur()
		return nil
	case key.Matches(km, p.keys.Submit):
		path := p.input.Value()
		p.input.SetValue("")
		p.input.Blur()
		p.submit(path)
		return nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(km)
	return cmd
}

func (p *uploadPane) submit(path string) {
	sel, err := upload.FromInput(path)
	if err != nil {
		p.notifier.Error(err.Error())
		return
	}
	p.up.Submit(sel)
}

func (p *uploadPane) selected() (fileEntry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.files) {
		return fileEntry{}, false
	}
	return p.files[p.cursor], true
}

func (p *uploadPane) View() string {
	var b strings.Builder

	contract, template := "  Contract", "  Template"
	if p.target == model.TargetTemplate {
		template = p.styles.MenuActive.Render("▸ Template")
	} else {
		contract = p.styles.MenuActive.Render("▸ Contract")
	}
	b.WriteString(p.styles.Bold.Render("Upload as: ") + contract + "  " + template + "\n\n")

	if p.picking {
		b.WriteString(p.styles.Title.Render("Choose a file"))
		b.WriteString("\n")
		b.WriteString(p.picker.View())
		return b.String()
	}

	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.tasks) > 0 {
		b.WriteString(p.styles.Title.Render("Uploading"))
		b.WriteString("\n")
		for _, t := range p.tasks {
			fmt.Fprintf(&b, "%-24s %s %s / %s\n",
				utils.Truncate(t.Filename, 24),
				p.bar.ViewAs(t.Progress()),
				utils.FormatFileSize(t.Sent),
				utils.FormatFileSize(t.Total))
		}
		b.WriteString("\n")
	}

	heading := "Contracts"
	if p.target == model.TargetTemplate {
		heading = "Templates"
	}
	b.WriteString(p.styles.Title.Render(fmt.Sprintf("%s (%d)", heading, len(p.files))))
	b.WriteString("\n")
	if len(p.files) == 0 {
		b.WriteString(p.styles.Muted.Render("Nothing uploaded yet."))
		return b.String()
	}

	// keep the cursor on screen
	rows := max(p.height-lipgloss.Height(b.String())-1, 1)
	start := 0
	if p.cursor >= rows {
		start = p.cursor - rows + 1
	}
	for i := start; i < len(p.files) && i < start+rows; i++ {
		f := p.files[i]
		line := fmt.Sprintf("%-40s %10s  %s",
			utils.Truncate(f.Filename, 40),
			utils.FormatFileSize(f.FileSize),
			utils.FormatDate(f.UploadDate))
		if i == p.cursor {
			line = p.styles.SelectedLine.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *uploadPane) Keys() []key.Binding {
	k := p.keys
	if p.picking || p.input.Focused() {
		return []key.Binding{k.Submit, k.Back}
	}
	return []key.Binding{k.Target, k.Path, k.Browse, k.Analyze, k.Delete, k.Cancel}
}
