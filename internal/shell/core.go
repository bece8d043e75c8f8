package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
)

// UnexpectedErrorMessage is shown for panics and unhandled async errors.
const UnexpectedErrorMessage = "An unexpected error occurred"

// Fetcher loads the four collections every refresh needs.
type Fetcher interface {
	Health(ctx context.Context) (*model.HealthStatus, error)
	Contracts(ctx context.Context) ([]model.Contract, error)
	Templates(ctx context.Context) ([]model.Template, error)
	AnalysisResults(ctx context.Context) ([]model.AnalysisResult, error)
}

// appState is written only by Core.
type appState struct {
	initialized bool
	currentTab  TabID
	data        model.Data
	appliedSeq  uint64
	width       int
	height      int
}

// Core orchestrates modules and owns the application state.
type Core struct {
	fetcher Fetcher
	logger  *zap.Logger
	alert   io.Writer

	cfgMu sync.RWMutex
	cfg   *config.Config

	modMu   sync.RWMutex
	modules []Module
	byName  map[string]Module

	initStarted atomic.Bool

	mu    sync.RWMutex
	state appState

	// seq numbers refreshes at initiation; publishMu serialises apply + fan-out.
	seq       atomic.Uint64
	publishMu sync.Mutex

	visible atomic.Bool

	changeMu sync.RWMutex
	onChange func()

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lifeMu   sync.Mutex // orders wg.Add against Stop
	stopped  bool
	pollOnce sync.Once
	stopOnce sync.Once
}

// CoreOption customises a Core.
type CoreOption func(*Core)

// WithAlertWriter sets where errors go when no notifications module is registered.
func WithAlertWriter(w io.Writer) CoreOption {
	return func(c *Core) { c.alert = w }
}

// NewCore creates a Core. Modules are added with Register before Init.
func NewCore(cfg *config.Config, fetcher Fetcher, logger *zap.Logger, opts ...CoreOption) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{
		fetcher: fetcher,
		logger:  logger,
		alert:   os.Stderr,
		cfg:     cfg,
		byName:  make(map[string]Module),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.visible.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a module. Names must be unique.
func (c *Core) Register(m Module) error {
	c.modMu.Lock()
	defer c.modMu.Unlock()

	name := m.Name()
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}
	c.byName[name] = m
	c.modules = append(c.modules, m)
	return nil
}

// Module looks up a registered module by name.
func (c *Core) Module(name string) (Module, bool) {
	c.modMu.RLock()
	defer c.modMu.RUnlock()
	m, ok := c.byName[name]
	return m, ok
}

func (c *Core) moduleList() []Module {
	c.modMu.RLock()
	defer c.modMu.RUnlock()
	return append([]Module(nil), c.modules...)
}

// Config returns the active configuration.
func (c *Core) Config() *config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// Init initialises modules in InitOrder, loads the initial data, shows the
// default tab and starts polling. A second call logs a warning and does nothing.
func (c *Core) Init(ctx context.Context) error {
	if !c.initStarted.CompareAndSwap(false, true) {
		c.logger.Warn("core already initialized, ignoring Init")
		return nil
	}

	c.logger.Info("initializing modules")
	seen := make(map[string]bool, len(InitOrder))
	for _, name := range InitOrder {
		seen[name] = true
		m, ok := c.Module(name)
		if !ok {
			c.logger.Info("module not registered, skipping", zap.String("module", name))
			continue
		}
		c.initModule(ctx, m)
	}
	for _, m := range c.moduleList() {
		if !seen[m.Name()] {
			c.initModule(ctx, m)
		}
	}

	c.mu.Lock()
	c.state.initialized = true
	c.mu.Unlock()

	if err := c.LoadInitialData(ctx); err != nil {
		c.logger.Warn("initial data load incomplete", zap.Error(err))
	}

	c.showDefaultTab()
	c.StartPolling(ctx)
	c.Changed()

	c.logger.Info("core initialized")
	return nil
}

func (c *Core) initModule(ctx context.Context, m Module) {
	name := m.Name()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				c.logger.Error("module init panicked",
					zap.String("module", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		return m.Init(ctx, c)
	}()
	if err != nil {
		c.logger.Error("module init failed", zap.String("module", name), zap.Error(err))
		c.ReportError(fmt.Sprintf("Failed to initialize %s module", name))
		return
	}
	c.logger.Debug("module initialized", zap.String("module", name))
}

func (c *Core) showDefaultTab() {
	m, ok := c.Module(ModuleNavigation)
	if !ok {
		return
	}
	nav, ok := m.(TabShower)
	if !ok {
		return
	}
	tab := TabID(c.Config().Navigation.DefaultTab)
	if tab == "" {
		tab = TabDashboard
	}
	nav.ShowTab(tab)
}

// LoadInitialData is the first Refresh.
func (c *Core) LoadInitialData(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh fetches health, contracts, templates and analysis results in
// parallel and applies them. A failed fetch leaves its field nil and does
// not abort the others. If a later-initiated refresh has already been
// applied, this one is discarded. The returned error joins the fetch failures.
func (c *Core) Refresh(ctx context.Context) error {
	seq := c.seq.Add(1)
	data, err := c.fetchAll(ctx)
	c.apply(seq, data)
	return err
}

func (c *Core) fetchAll(ctx context.Context) (model.Data, error) {
	var (
		data   model.Data
		errMu  sync.Mutex
		errs   []error
		failed = func(what string, err error) {
			c.logger.Warn("fetch failed", zap.String("resource", what), zap.Error(err))
			errMu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
			errMu.Unlock()
		}
	)

	var g errgroup.Group
	g.Go(func() error {
		v, err := c.fetcher.AnalysisResults(ctx)
		if err != nil {
			failed("analysis-results", err)
			return nil
		}
		data.AnalysisResults = v
		return nil
	})
	g.Go(func() error {
		v, err := c.fetcher.Contracts(ctx)
		if err != nil {
			failed("contracts", err)
			return nil
		}
		data.Contracts = v
		return nil
	})
	g.Go(func() error {
		v, err := c.fetcher.Templates(ctx)
		if err != nil {
			failed("templates", err)
			return nil
		}
		data.Templates = v
		return nil
	})
	g.Go(func() error {
		v, err := c.fetcher.Health(ctx)
		if err != nil {
			failed("health", err)
			return nil
		}
		data.SystemStatus = v
		return nil
	})
	_ = g.Wait()

	return data, errors.Join(errs...)
}

// apply stores data unless a newer refresh was already applied, then fans
// out DataUpdated. It reports whether the data was applied.
func (c *Core) apply(seq uint64, data model.Data) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if seq < c.state.appliedSeq {
		applied := c.state.appliedSeq
		c.mu.Unlock()
		c.logger.Debug("discarding stale refresh", zap.Uint64("seq", seq), zap.Uint64("applied", applied))
		return false
	}
	c.state.data = data
	c.state.appliedSeq = seq
	c.mu.Unlock()

	c.NotifyModules(DataUpdated{Data: data.Clone(), Seq: seq})
	c.Changed()
	return true
}

// State returns a copy of the application state.
func (c *Core) State() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Initialized: c.state.initialized,
		CurrentTab:  c.state.currentTab,
		Data:        c.state.data.Clone(),
		Seq:         c.state.appliedSeq,
		Width:       c.state.width,
		Height:      c.state.height,
		Visible:     c.visible.Load(),
	}
}

// SetCurrentTab records the active tab.
func (c *Core) SetCurrentTab(tab TabID) {
	c.mu.Lock()
	c.state.currentTab = tab
	c.mu.Unlock()
}

// NotifyModules delivers ev to every module in registration order. A panic
// in one module is logged and does not stop delivery to the rest.
func (c *Core) NotifyModules(ev Event) {
	for _, m := range c.moduleList() {
		c.deliver(m, ev)
	}
}

func (c *Core) deliver(m Module, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("module event handler panicked",
				zap.String("module", m.Name()),
				zap.String("event", fmt.Sprintf("%T", ev)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	m.HandleEvent(ev)
}

// HandleResize records the terminal size and fans out WindowResized.
func (c *Core) HandleResize(width, height int) {
	c.mu.Lock()
	c.state.width, c.state.height = width, height
	c.mu.Unlock()
	c.NotifyModules(WindowResized{Width: width, Height: height})
	c.Changed()
}

// HandleEscape fans out EscapePressed.
func (c *Core) HandleEscape() {
	c.NotifyModules(EscapePressed{})
	c.Changed()
}

// SetVisible records terminal focus. Regaining focus triggers a refresh.
func (c *Core) SetVisible(visible bool) {
	if c.visible.Swap(visible) == visible {
		return
	}
	c.NotifyModules(VisibilityChanged{Visible: visible})
	if visible {
		c.Go("refresh-on-visible", func(ctx context.Context) error {
			_ = c.Refresh(ctx)
			return nil
		})
	}
	c.Changed()
}

// Visible reports whether the terminal currently has focus.
func (c *Core) Visible() bool {
	return c.visible.Load()
}

// UpdateConfig swaps in a reloaded configuration and fans out SettingsChanged.
func (c *Core) UpdateConfig(cfg *config.Config) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
	c.NotifyModules(SettingsChanged{Config: cfg})
	c.Changed()
}

// OnChange registers the redraw hook.
func (c *Core) OnChange(fn func()) {
	c.changeMu.Lock()
	c.onChange = fn
	c.changeMu.Unlock()
}

// Changed invokes the redraw hook, if any.
func (c *Core) Changed() {
	c.changeMu.RLock()
	fn := c.onChange
	c.changeMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Go runs fn on its own goroutine under Core's lifetime context. Panics and
// errors not marked Handled are logged with a stack and surfaced as a
// generic error notification.
func (c *Core) Go(name string, fn func(ctx context.Context) error) {
	if !c.track() {
		c.logger.Debug("core stopped, dropping async operation", zap.String("op", name))
		return
	}
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("async operation panicked",
					zap.String("op", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				c.ReportError(UnexpectedErrorMessage)
			}
		}()

		err := fn(c.ctx)
		if err == nil || IsHandled(err) || errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("unhandled async error",
			zap.String("op", name),
			zap.Error(err),
			zap.ByteString("stack", debug.Stack()))
		c.ReportError(UnexpectedErrorMessage)
	}()
}

// track registers one goroutine with the wait group unless Stop has begun.
func (c *Core) track() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.stopped {
		return false
	}
	c.wg.Add(1)
	return true
}

// Wait blocks until every operation started with Go has returned.
func (c *Core) Wait() {
	c.wg.Wait()
}

// ReportError shows message through the notifications module when it is
// registered, else writes it to the alert writer. It never panics.
func (c *Core) ReportError(message string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error reporting failed", zap.Any("panic", r), zap.String("message", message))
		}
	}()

	if m, ok := c.Module(ModuleNotifications); ok {
		if r, ok := m.(ErrorReporter); ok {
			r.ReportError(message)
			return
		}
	}
	if c.alert != nil {
		fmt.Fprintf(c.alert, "alert: %s\n", message)
	}
}

// Stop cancels polling and async operations, waits for them to finish,
// then closes every module that holds resources.
func (c *Core) Stop() {
	c.stopOnce.Do(func() {
		c.lifeMu.Lock()
		c.stopped = true
		c.lifeMu.Unlock()

		c.cancel()
		c.wg.Wait()
		for _, m := range c.moduleList() {
			if cl, ok := m.(io.Closer); ok {
				if err := cl.Close(); err != nil {
					c.logger.Warn("module close failed", zap.String("module", m.Name()), zap.Error(err))
				}
			}
		}
		c.logger.Debug("core stopped")
	})
}
