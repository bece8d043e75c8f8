package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"contractanalyzer/internal/model"
	"contractanalyzer/internal/prompts"
	"contractanalyzer/internal/utils"
)

type promptKeys struct {
	Prev     key.Binding
	Next     key.Binding
	Edit     key.Binding
	Save     key.Binding
	Validate key.Binding
	Preview  key.Binding
	Reset    key.Binding
	Backup   key.Binding
	Backups  key.Binding
	Up       key.Binding
	Down     key.Binding
	Restore  key.Binding
	Done     key.Binding
}

type promptsPane struct {
	paneBase
	prompts  *prompts.Module
	editor   textarea.Model
	output   viewport.Model
	renderer *glamour.TermRenderer
	keys     promptKeys

	// rendered caches the markdown last passed to the renderer.
	rendered string
	backups  []model.PromptBackup
	cursor   int
}

func newPromptsPane(pm *prompts.Module, styles Styles) *promptsPane {
	ta := textarea.New()
	ta.Placeholder = "Prompt text. Use {variable} placeholders."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0

	p := &promptsPane{
		prompts: pm,
		editor:  ta,
		output:  viewport.New(80, 10),
		keys: promptKeys{
			Prev:     binding("[", "prev type"),
			Next:     binding("]", "next type"),
			Edit:     binding("e", "edit"),
			Save:     binding("ctrl+s", "save"),
			Validate: binding("v", "validate"),
			Preview:  binding("p", "preview"),
			Reset:    binding("R", "reset"),
			Backup:   binding("b", "backup"),
			Backups:  binding("l", "list backups"),
			Up:       binding("k", "up", "up"),
			Down:     binding("j", "down", "down"),
			Restore:  binding("enter", "restore backup"),
			Done:     binding("esc", "stop editing"),
		},
	}
	p.SetStyles(styles)
	return p
}

func (p *promptsPane) SetStyles(s Styles) {
	p.paneBase.SetStyles(s)
	p.renderer = p.newRenderer()
	p.rendered = ""
}

func (p *promptsPane) newRenderer() *glamour.TermRenderer {
	wrap := max(p.width-4, 20)
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(p.styles.Theme.Name),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func (p *promptsPane) SetSize(width, height int) {
	resized := width != p.width
	p.paneBase.SetSize(width, height)
	p.editor.SetWidth(width)
	// selector line, editor, output, backups
	edit := max(height/2-2, 3)
	p.editor.SetHeight(edit)
	p.output.Width = width
	p.output.Height = max(height-edit-8, 3)
	if resized {
		p.renderer = p.newRenderer()
		p.rendered = ""
	}
}

func (p *promptsPane) SetActive(active bool) {
	p.paneBase.SetActive(active)
	if !active {
		p.editor.Blur()
	}
}

func (p *promptsPane) Capturing() bool { return p.editor.Focused() }

func (p *promptsPane) Sync() {
	if !p.editor.Focused() {
		if content := p.prompts.GetCurrentPromptContent(); p.editor.Value() != content {
			p.editor.SetValue(content)
		}
	}
	if backups, ok := p.prompts.CachedBackups(); ok {
		p.backups = backups
	} else {
		p.backups = nil
	}
	if p.cursor >= len(p.backups) {
		p.cursor = max(len(p.backups)-1, 0)
	}
	p.renderOutput()
}

// renderOutput shows the validation verdict and the preview as markdown.
func (p *promptsPane) renderOutput() {
	var md strings.Builder
	if v := p.prompts.Validation(); v != nil {
		if v.Valid {
			md.WriteString("**Valid prompt**\n\n")
		} else {
			md.WriteString("**Invalid prompt**\n\n")
		}
		for _, e := range v.Errors {
			fmt.Fprintf(&md, "- error: %s\n", e)
		}
		for _, w := range v.Warnings {
			fmt.Fprintf(&md, "- warning: %s\n", w)
		}
		if len(v.Variables) > 0 {
			fmt.Fprintf(&md, "\nVariables: `%s`\n", strings.Join(v.Variables, "`, `"))
		}
		md.WriteString("\n")
	}
	if preview := p.prompts.PreviewText(); preview != "" {
		md.WriteString("### Preview\n\n")
		md.WriteString(preview)
		md.WriteString("\n")
	}

	text := md.String()
	if text == p.rendered {
		return
	}
	p.rendered = text
	out := text
	if p.renderer != nil && text != "" {
		if r, err := p.renderer.Render(text); err == nil {
			out = r
		}
	}
	p.output.SetContent(out)
}

func (p *promptsPane) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if key.Matches(km, p.keys.Save) {
		p.commit()
		p.prompts.StartSave()
		return nil
	}

	if p.editor.Focused() {
		if key.Matches(km, p.keys.Done) {
			p.commit()
			p.editor.Blur()
			return nil
		}
		var cmd tea.Cmd
		p.editor, cmd = p.editor.Update(km)
		p.commit()
		return cmd
	}

	switch {
	case key.Matches(km, p.keys.Prev):
		p.cycle(-1)
	case key.Matches(km, p.keys.Next):
		p.cycle(1)
	case key.Matches(km, p.keys.Edit):
		return p.editor.Focus()
	case key.Matches(km, p.keys.Validate):
		p.prompts.StartValidate()
	case key.Matches(km, p.keys.Preview):
		p.prompts.StartPreview()
	case key.Matches(km, p.keys.Reset):
		p.prompts.RequestReset()
	case key.Matches(km, p.keys.Backup):
		p.prompts.StartCreateBackup("")
	case key.Matches(km, p.keys.Backups):
		p.prompts.StartListBackups()
	case key.Matches(km, p.keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(km, p.keys.Down):
		if p.cursor < len(p.backups)-1 {
			p.cursor++
		}
	case key.Matches(km, p.keys.Restore):
		if p.cursor < len(p.backups) {
			p.prompts.RequestRestore(p.backups[p.cursor].ID)
		}
	default:
		var cmd tea.Cmd
		p.output, cmd = p.output.Update(km)
		return cmd
	}
	return nil
}

func (p *promptsPane) commit() {
	p.prompts.SetPromptContent(p.editor.Value())
}

func (p *promptsPane) cycle(step int) {
	types := model.PromptTypes()
	cur := p.prompts.Selected()
	i := 0
	for j, t := range types {
		if t == cur {
			i = j
		}
	}
	next := types[(i+step+len(types))%len(types)]
	p.cursor = 0
	p.prompts.RequestSelect(next)
}

func (p *promptsPane) View() string {
	selected := p.prompts.Selected()
	var tabs []string
	for _, t := range model.PromptTypes() {
		label := strings.ReplaceAll(string(t), "_", " ")
		if t == selected {
			tabs = append(tabs, p.styles.MenuActive.Render("["+label+"]"))
			continue
		}
		tabs = append(tabs, p.styles.Muted.Render(" "+label+" "))
	}
	header := strings.Join(tabs, " ")
	if p.prompts.HasUnsavedChanges() {
		header += "  " + p.styles.Warning.Render("● unsaved")
	}

	parts := []string{header, p.editor.View()}
	if strings.TrimSpace(p.rendered) != "" {
		parts = append(parts, p.output.View())
	}
	if len(p.backups) > 0 {
		parts = append(parts, p.backupsView())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (p *promptsPane) backupsView() string {
	var b strings.Builder
	b.WriteString(p.styles.Bold.Render("Backups"))
	for i, bk := range p.backups {
		name := bk.Name
		if name == "" {
			name = bk.ID
		}
		line := fmt.Sprintf("%-30s %s", utils.Truncate(name, 30), utils.FormatDate(bk.CreatedAt))
		if i == p.cursor {
			line = p.styles.SelectedLine.Render(line)
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (p *promptsPane) Keys() []key.Binding {
	k := p.keys
	if p.editor.Focused() {
		return []key.Binding{k.Save, k.Done}
	}
	return []key.Binding{k.Prev, k.Next, k.Edit, k.Save, k.Validate, k.Preview, k.Reset, k.Backup, k.Backups, k.Restore}
}
