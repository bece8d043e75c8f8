// Package shelltest provides a recording shell.Host for module tests.
package shelltest

import (
	"context"
	"sync"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/shell"
)

// Host records everything modules ask of it. Refresh calls RefreshFunc when set.
type Host struct {
	RefreshFunc func(ctx context.Context) error

	mu        sync.Mutex
	modules   map[string]shell.Module
	state     shell.Snapshot
	events    []shell.Event
	errors    []string
	refreshes int
	changes   int
	wg        sync.WaitGroup
	asyncErrs []error
	configs   []*config.Config
}

// NewHost creates a host with the given modules registered.
func NewHost(modules ...shell.Module) *Host {
	h := &Host{modules: make(map[string]shell.Module)}
	for _, m := range modules {
		h.modules[m.Name()] = m
	}
	return h
}

// Add registers a module.
func (h *Host) Add(m shell.Module) {
	h.mu.Lock()
	h.modules[m.Name()] = m
	h.mu.Unlock()
}

// SetState replaces the snapshot State returns.
func (h *Host) SetState(s shell.Snapshot) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Host) State() shell.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) Module(name string) (shell.Module, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[name]
	return m, ok
}

func (h *Host) NotifyModules(ev shell.Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *Host) Refresh(ctx context.Context) error {
	h.mu.Lock()
	h.refreshes++
	fn := h.RefreshFunc
	h.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Go runs fn on a tracked goroutine; call Wait before asserting.
func (h *Host) Go(_ string, fn func(ctx context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := fn(context.Background()); err != nil && !shell.IsHandled(err) {
			h.mu.Lock()
			h.asyncErrs = append(h.asyncErrs, err)
			h.mu.Unlock()
		}
	}()
}

// Wait blocks until every Go call has returned.
func (h *Host) Wait() {
	h.wg.Wait()
}

func (h *Host) ReportError(message string) {
	h.mu.Lock()
	h.errors = append(h.errors, message)
	h.mu.Unlock()
}

func (h *Host) SetCurrentTab(tab shell.TabID) {
	h.mu.Lock()
	h.state.CurrentTab = tab
	h.mu.Unlock()
}

func (h *Host) Changed() {
	h.mu.Lock()
	h.changes++
	h.mu.Unlock()
}

// UpdateConfig records cfg and fans out SettingsChanged to the registered modules.
func (h *Host) UpdateConfig(cfg *config.Config) {
	h.mu.Lock()
	h.configs = append(h.configs, cfg)
	mods := make([]shell.Module, 0, len(h.modules))
	for _, m := range h.modules {
		mods = append(mods, m)
	}
	h.mu.Unlock()
	for _, m := range mods {
		m.HandleEvent(shell.SettingsChanged{Config: cfg})
	}
}

// Configs returns every configuration passed to UpdateConfig.
func (h *Host) Configs() []*config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*config.Config(nil), h.configs...)
}

// Events returns the fanned-out events.
func (h *Host) Events() []shell.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shell.Event(nil), h.events...)
}

// Errors returns messages passed to ReportError.
func (h *Host) Errors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errors...)
}

// AsyncErrors returns unhandled errors returned from Go functions.
func (h *Host) AsyncErrors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.asyncErrs...)
}

// Refreshes returns how many times Refresh was called.
func (h *Host) Refreshes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshes
}

// Changes returns how many redraws were requested.
func (h *Host) Changes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changes
}
