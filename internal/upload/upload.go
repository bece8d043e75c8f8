// Package upload ingests contract and template files.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/utils"
)

// Uploader is the backend surface the module needs.
type Uploader interface {
	Upload(ctx context.Context, target model.UploadTarget, filename string, r io.Reader, size int64, progress api.ProgressFunc) (*model.UploadResponse, error)
	DeleteFile(ctx context.Context, target model.UploadTarget, id string) error
}

// Notifier shows user-facing messages.
type Notifier interface {
	Success(message string, opts ...notify.Option) string
	Error(message string, opts ...notify.Option) string
	Info(message string, opts ...notify.Option) string
	Confirm(message string, onConfirm, onCancel func()) string
}

// Task is one in-flight upload.
type Task struct {
	ID        string
	Filename  string
	Target    model.UploadTarget
	StartTime time.Time
	Sent      int64
	Total     int64

	cancel context.CancelFunc
}

// Progress returns the fraction sent, 0 to 1.
func (t Task) Progress() float64 {
	if t.Total <= 0 {
		return 0
	}
	p := float64(t.Sent) / float64(t.Total)
	if p > 1 {
		p = 1
	}
	return p
}

// Module is the upload module.
type Module struct {
	client   Uploader
	notifier Notifier
	logger   *zap.Logger

	mu               sync.Mutex
	host             shell.Host
	target           model.UploadTarget
	tasks            map[string]*Task
	contracts        []model.Contract
	templates        []model.Template
	allowed          []string
	maxBytes         int64
	progressInterval time.Duration
	lastRedraw       time.Time
}

// New creates the upload module.
func New(cfg *config.Config, client Uploader, notifier Notifier, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Module{
		client:   client,
		notifier: notifier,
		logger:   logger,
		target:   model.TargetContract,
		tasks:    make(map[string]*Task),
	}
	m.applyConfig(cfg)
	return m
}

func (m *Module) applyConfig(cfg *config.Config) {
	m.allowed = append([]string(nil), cfg.Upload.AllowedTypes...)
	m.maxBytes = cfg.MaxUploadBytes()
	m.progressInterval = cfg.GetProgressInterval()
}

func (m *Module) Name() string { return shell.ModuleUpload }

func (m *Module) Init(_ context.Context, host shell.Host) error {
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()
	return nil
}

func (m *Module) HandleEvent(ev shell.Event) {
	switch e := ev.(type) {
	case shell.DataUpdated:
		m.mu.Lock()
		m.contracts = e.Data.Contracts
		m.templates = e.Data.Templates
		m.mu.Unlock()
	case shell.SettingsChanged:
		m.mu.Lock()
		m.applyConfig(e.Config)
		m.mu.Unlock()
	}
}

// OnTabActivated refetches when the file lists failed to load last time.
func (m *Module) OnTabActivated() {
	m.mu.Lock()
	host := m.host
	missing := m.contracts == nil || m.templates == nil
	m.mu.Unlock()

	if host != nil && missing {
		host.Go("upload-reload", func(ctx context.Context) error {
			_ = host.Refresh(ctx)
			return nil
		})
	}
}

// SetTarget chooses whether new uploads are contracts or templates.
func (m *Module) SetTarget(t model.UploadTarget) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
	m.changed()
}

// Target returns the current upload target.
func (m *Module) Target() model.UploadTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Contracts returns the last known contract list; nil if it failed to load.
func (m *Module) Contracts() []model.Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contracts
}

// Templates returns the last known template list; nil if it failed to load.
func (m *Module) Templates() []model.Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates
}

// Tasks returns the in-flight uploads, oldest first.
func (m *Module) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Validate applies the type and size checks to f.
func (m *Module) Validate(f File) error {
	m.mu.Lock()
	allowed, max := m.allowed, m.maxBytes
	m.mu.Unlock()

	if err := utils.ValidateFileType(f.Name, allowed); err != nil {
		return err
	}
	return utils.ValidateFileSize(f.Size, max)
}

// Submit starts Upload in the background.
func (m *Module) Submit(sel Selection) {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host == nil {
		return
	}
	host.Go("upload", func(ctx context.Context) error {
		return m.Upload(ctx, sel)
	})
}

// Upload sends every file of sel to the current target, one at a time.
// Each failure is shown as it happens and marked handled in the returned
// error. Core refreshes once after the batch if anything succeeded.
func (m *Module) Upload(ctx context.Context, sel Selection) error {
	target := m.Target()

	var (
		errs      []error
		succeeded int
	)
	for _, f := range sel.Files {
		if err := m.uploadFile(ctx, f, target); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded++
	}

	if succeeded > 0 {
		m.mu.Lock()
		host := m.host
		m.mu.Unlock()
		if host != nil {
			if err := host.Refresh(ctx); err != nil {
				m.logger.Warn("refresh after upload incomplete", zap.Error(err))
			}
		}
	}

	if len(errs) > 0 {
		return shell.Handled(errors.Join(errs...))
	}
	return nil
}

func (m *Module) uploadFile(ctx context.Context, f File, target model.UploadTarget) error {
	if err := m.Validate(f); err != nil {
		m.notifier.Error(err.Error())
		return err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		m.notifier.Error(fmt.Sprintf("Cannot open %s: %v", f.Name, err))
		return err
	}
	defer file.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	task := &Task{
		ID:        uuid.NewString(),
		Filename:  f.Name,
		Target:    target,
		StartTime: time.Now(),
		Total:     f.Size,
		cancel:    cancel,
	}
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()
	m.changed()

	m.logger.Info("upload started",
		zap.String("upload_id", task.ID),
		zap.String("filename", f.Name),
		zap.String("target", string(target)),
		zap.Int64("size", f.Size))

	_, err = m.client.Upload(ctx, target, f.Name, file, f.Size, func(sent, total int64) {
		m.progress(task.ID, sent)
	})

	m.remove(task.ID)

	switch {
	case err == nil:
		m.logger.Info("upload finished", zap.String("upload_id", task.ID), zap.Duration("took", time.Since(task.StartTime)))
		m.notifier.Success(fmt.Sprintf("%s uploaded successfully", f.Name))
		return nil
	case errors.Is(err, context.Canceled):
		m.logger.Info("upload cancelled", zap.String("upload_id", task.ID))
		m.notifier.Info(fmt.Sprintf("Upload of %s cancelled", f.Name))
		return err
	default:
		m.logger.Warn("upload failed", zap.String("upload_id", task.ID), zap.Error(err))
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			m.notifier.Error(apiErr.Message)
		} else {
			m.notifier.Error(fmt.Sprintf("Failed to upload %s: %v", f.Name, err))
		}
		return err
	}
}

func (m *Module) progress(id string, sent int64) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok {
		t.Sent = sent
	}
	redraw := ok && time.Since(m.lastRedraw) >= m.progressInterval
	if redraw {
		m.lastRedraw = time.Now()
	}
	m.mu.Unlock()
	if redraw {
		m.changed()
	}
}

func (m *Module) remove(id string) {
	m.mu.Lock()
	_, ok := m.tasks[id]
	delete(m.tasks, id)
	m.mu.Unlock()
	if ok {
		m.changed()
	}
}

// Cancel aborts an in-flight upload and stops tracking it.
func (m *Module) Cancel(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	m.changed()
	return true
}

// CancelAll aborts every in-flight upload.
func (m *Module) CancelAll() {
	for _, t := range m.Tasks() {
		m.Cancel(t.ID)
	}
}

// RequestDelete asks for confirmation and then deletes the file.
func (m *Module) RequestDelete(target model.UploadTarget, id, filename string) {
	m.notifier.Confirm(fmt.Sprintf("Delete %s? This cannot be undone.", filename), func() {
		m.mu.Lock()
		host := m.host
		m.mu.Unlock()
		if host == nil {
			return
		}
		host.Go("delete-file", func(ctx context.Context) error {
			return m.DeleteFile(ctx, target, id)
		})
	}, nil)
}

// DeleteFile removes a contract or template and refreshes.
func (m *Module) DeleteFile(ctx context.Context, target model.UploadTarget, id string) error {
	if err := m.client.DeleteFile(ctx, target, id); err != nil {
		m.logger.Warn("delete failed", zap.String("id", id), zap.Error(err))
		m.notifier.Error(err.Error())
		return shell.Handled(err)
	}
	m.notifier.Success("File deleted successfully")

	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		_ = host.Refresh(ctx)
	}
	return nil
}

func (m *Module) changed() {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}
