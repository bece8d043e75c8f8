// Package prompts edits, validates and backs up the backend's LLM prompt
// templates.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
)

// ErrEmptyPrompt is returned for blank prompt text. It is checked locally.
var ErrEmptyPrompt = errors.New("prompt content cannot be empty")

// Client is the backend surface the prompts module needs.
type Client interface {
	Prompt(ctx context.Context, pt model.PromptType) (*model.PromptTemplate, error)
	SavePrompt(ctx context.Context, pt model.PromptType, content string) (*model.OperationResponse, error)
	ValidatePrompt(ctx context.Context, pt model.PromptType, content string) (*model.ValidationResult, error)
	PreviewPrompt(ctx context.Context, pt model.PromptType, content string) (*model.PromptPreview, error)
	CreatePromptBackup(ctx context.Context, pt model.PromptType, name string) (*model.PromptBackup, error)
	PromptBackups(ctx context.Context, pt model.PromptType) ([]model.PromptBackup, error)
	RestorePromptBackup(ctx context.Context, backupID string) (*model.OperationResponse, error)
	PromptStats(ctx context.Context) (model.PromptStats, error)
}

// Notifier shows user-facing messages.
type Notifier interface {
	Success(message string, opts ...notify.Option) string
	Error(message string, opts ...notify.Option) string
	Warning(message string, opts ...notify.Option) string
	Confirm(message string, onConfirm, onCancel func()) string
}

// Module is the prompts module.
type Module struct {
	client   Client
	notifier Notifier
	logger   *zap.Logger
	backups  *cache.Cache

	mu         sync.Mutex
	host       shell.Host
	selected   model.PromptType
	loaded     bool
	content    string
	original   string
	validation *model.ValidationResult
	preview    string
	stats      model.PromptStats
	backupTTL  time.Duration
}

// New creates the prompts module with the first prompt type selected.
func New(cfg *config.Config, client Client, notifier Notifier, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.GetBackupCacheTTL()
	return &Module{
		client:   client,
		notifier: notifier,
		logger:   logger,
		// no janitor: expired entries are ignored by Get and overwritten on the next Set
		backups:   cache.New(ttl, 0),
		selected:  model.PromptTypes()[0],
		backupTTL: ttl,
	}
}

func (m *Module) Name() string { return shell.ModulePrompts }

func (m *Module) Init(_ context.Context, host shell.Host) error {
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()
	return nil
}

func (m *Module) HandleEvent(ev shell.Event) {
	if e, ok := ev.(shell.SettingsChanged); ok {
		m.mu.Lock()
		m.backupTTL = e.Config.GetBackupCacheTTL()
		m.mu.Unlock()
	}
}

// OnTabActivated loads the selected prompt the first time the tab is shown.
func (m *Module) OnTabActivated() {
	m.mu.Lock()
	loaded := m.loaded
	pt := m.selected
	m.mu.Unlock()
	if !loaded {
		m.background("prompt-load", func(ctx context.Context) error {
			return m.Select(ctx, pt)
		})
	}
}

func (m *Module) background(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Go(name, fn)
	}
}

func (m *Module) changed() {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}

// fail shows err and marks it handled.
func (m *Module) fail(op string, err error) error {
	msg := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	m.logger.Warn("prompt operation failed", zap.String("op", op), zap.Error(err))
	m.notifier.Error(msg)
	return shell.Handled(fmt.Errorf("%s: %w", op, err))
}

// Selected returns the prompt type being edited.
func (m *Module) Selected() model.PromptType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Select switches to pt and loads its current text, discarding edits.
func (m *Module) Select(ctx context.Context, pt model.PromptType) error {
	if !pt.Valid() {
		return m.fail("select", fmt.Errorf("unknown prompt type %q", pt))
	}
	m.mu.Lock()
	m.selected = pt
	m.validation = nil
	m.preview = ""
	m.mu.Unlock()
	m.changed()

	return m.load(ctx, pt)
}

// RequestSelect asks before throwing away unsaved edits.
func (m *Module) RequestSelect(pt model.PromptType) {
	run := func() {
		m.background("prompt-select", func(ctx context.Context) error {
			return m.Select(ctx, pt)
		})
	}
	if m.HasUnsavedChanges() {
		m.notifier.Confirm("Discard unsaved changes to this prompt?", run, nil)
		return
	}
	run()
}

func (m *Module) load(ctx context.Context, pt model.PromptType) error {
	tmpl, err := m.client.Prompt(ctx, pt)
	if err != nil {
		return m.fail("load", err)
	}

	m.mu.Lock()
	if m.selected != pt {
		// the user moved on while this was loading
		m.mu.Unlock()
		return nil
	}
	m.content = tmpl.Content
	m.original = tmpl.Content
	m.loaded = true
	m.mu.Unlock()
	m.changed()

	m.logger.Debug("prompt loaded", zap.String("type", string(pt)), zap.Int("length", len(tmpl.Content)))
	return nil
}

// SetPromptContent replaces the editor text.
func (m *Module) SetPromptContent(content string) {
	m.mu.Lock()
	m.content = content
	m.mu.Unlock()
}

// GetCurrentPromptContent returns the editor text exactly as set.
func (m *Module) GetCurrentPromptContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

// HasUnsavedChanges reports whether the editor differs from the last
// loaded or saved text.
func (m *Module) HasUnsavedChanges() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content != m.original
}

// Validation returns the last validation verdict, if any.
func (m *Module) Validation() *model.ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validation
}

// PreviewText returns the last rendered preview.
func (m *Module) PreviewText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preview
}

// current returns the selection and editor text, rejecting blank text
// before any network call.
func (m *Module) current() (model.PromptType, string, error) {
	m.mu.Lock()
	pt, content := m.selected, m.content
	m.mu.Unlock()
	if strings.TrimSpace(content) == "" {
		m.notifier.Error("Prompt content cannot be empty")
		return pt, "", shell.Handled(ErrEmptyPrompt)
	}
	return pt, content, nil
}

// Validate checks the editor text with the backend.
func (m *Module) Validate(ctx context.Context) (*model.ValidationResult, error) {
	pt, content, err := m.current()
	if err != nil {
		return nil, err
	}
	res, err := m.client.ValidatePrompt(ctx, pt, content)
	if err != nil {
		return nil, m.fail("validate", err)
	}

	m.mu.Lock()
	m.validation = res
	m.mu.Unlock()
	m.changed()

	if res.Valid {
		m.notifier.Success("Prompt is valid")
	} else {
		m.notifier.Warning("Prompt has issues: " + strings.Join(res.Errors, "; "))
	}
	return res, nil
}

// Preview renders the editor text with sample variables.
func (m *Module) Preview(ctx context.Context) (string, error) {
	pt, content, err := m.current()
	if err != nil {
		return "", err
	}
	p, err := m.client.PreviewPrompt(ctx, pt, content)
	if err != nil {
		return "", m.fail("preview", err)
	}

	m.mu.Lock()
	m.preview = p.Rendered
	m.mu.Unlock()
	m.changed()
	return p.Rendered, nil
}

// Save persists the editor text.
func (m *Module) Save(ctx context.Context) error {
	pt, content, err := m.current()
	if err != nil {
		return err
	}
	if _, err := m.client.SavePrompt(ctx, pt, content); err != nil {
		return m.fail("save", err)
	}

	m.mu.Lock()
	if m.selected == pt {
		m.original = content
	}
	m.mu.Unlock()
	m.changed()

	m.logger.Info("prompt saved", zap.String("type", string(pt)))
	m.notifier.Success("Prompt saved successfully")
	return nil
}

// Reset reloads the saved text, dropping edits.
func (m *Module) Reset(ctx context.Context) error {
	pt := m.Selected()
	m.mu.Lock()
	m.validation = nil
	m.preview = ""
	m.mu.Unlock()
	return m.load(ctx, pt)
}

// RequestReset resets, asking first when there are unsaved edits.
func (m *Module) RequestReset() {
	run := func() { m.background("prompt-reset", m.Reset) }
	if m.HasUnsavedChanges() {
		m.notifier.Confirm("Discard unsaved changes and reload the saved prompt?", run, nil)
		return
	}
	run()
}

// StartValidate, StartPreview and StartSave run their operation in the background.
func (m *Module) StartValidate() {
	m.background("prompt-validate", func(ctx context.Context) error {
		_, err := m.Validate(ctx)
		return err
	})
}

func (m *Module) StartPreview() {
	m.background("prompt-preview", func(ctx context.Context) error {
		_, err := m.Preview(ctx)
		return err
	})
}

func (m *Module) StartSave() {
	m.background("prompt-save", m.Save)
}

// Stats fetches prompt usage counters.
func (m *Module) Stats(ctx context.Context) (model.PromptStats, error) {
	stats, err := m.client.PromptStats(ctx)
	if err != nil {
		return nil, m.fail("stats", err)
	}
	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
	m.changed()
	return stats, nil
}

// LastStats returns the most recently fetched counters.
func (m *Module) LastStats() model.PromptStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
