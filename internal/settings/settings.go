// Package settings shows and live-reloads the console configuration and
// reports on the backend connection.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/model"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/shell"
)

// HealthChecker probes the backend.
type HealthChecker interface {
	Health(ctx context.Context) (*model.HealthStatus, error)
}

// Notifier shows user-facing messages.
type Notifier interface {
	Success(message string, opts ...notify.Option) string
	Error(message string, opts ...notify.Option) string
	Warning(message string, opts ...notify.Option) string
	Info(message string, opts ...notify.Option) string
}

// Connection is the outcome of the last connection test.
type Connection struct {
	Health    *model.HealthStatus
	Latency   time.Duration
	CheckedAt time.Time
	Err       string
}

// Module is the settings module.
type Module struct {
	client   HealthChecker
	notifier Notifier
	logger   *zap.Logger
	path     string

	mu      sync.Mutex
	host    shell.Host
	cfg     *config.Config
	health  *model.HealthStatus
	conn    *Connection
	watcher *config.Watcher
}

// New creates the settings module. path is the config file to watch and
// persist to; empty disables both.
func New(cfg *config.Config, path string, client HealthChecker, notifier Notifier, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		client:   client,
		notifier: notifier,
		logger:   logger,
		path:     path,
		cfg:      cfg,
	}
}

func (m *Module) Name() string { return shell.ModuleSettings }

// Init starts watching the config file. A watcher that cannot start only
// disables live reload.
func (m *Module) Init(ctx context.Context, host shell.Host) error {
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()

	if m.path == "" {
		return nil
	}
	w, err := config.NewWatcher(m.path, m.reloaded, m.reloadFailed)
	if err != nil {
		m.logger.Warn("config watcher unavailable, live reload disabled", zap.String("path", m.path), zap.Error(err))
		return nil
	}
	w.Start(ctx)

	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
	m.logger.Debug("watching config", zap.String("path", m.path))
	return nil
}

// Close stops the config watcher.
func (m *Module) Close() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (m *Module) HandleEvent(ev shell.Event) {
	switch e := ev.(type) {
	case shell.DataUpdated:
		if e.Data.SystemStatus != nil {
			m.mu.Lock()
			m.health = e.Data.SystemStatus
			m.mu.Unlock()
		}
	case shell.SettingsChanged:
		m.mu.Lock()
		m.cfg = e.Config
		m.mu.Unlock()
	}
}

func (m *Module) reloaded(cfg *config.Config) {
	m.logger.Info("config reloaded", zap.String("path", m.path))
	m.apply(cfg)
	m.notifier.Info("Settings reloaded")
}

func (m *Module) reloadFailed(err error) {
	m.logger.Warn("config reload failed", zap.Error(err))
	m.notifier.Error(fmt.Sprintf("Invalid configuration, keeping previous settings: %v", err))
}

// apply pushes cfg to every module through the host, or just records it
// when the host cannot fan out.
func (m *Module) apply(cfg *config.Config) {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()

	if u, ok := host.(shell.ConfigUpdater); ok {
		u.UpdateConfig(cfg)
		return
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}

// Config returns a copy of the effective configuration.
func (m *Module) Config() *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// Path returns the watched config file.
func (m *Module) Path() string { return m.path }

// Health returns the health reported by the last refresh.
func (m *Module) Health() *model.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// LastConnection returns the result of the last TestConnection.
func (m *Module) LastConnection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// TestConnection probes the backend's health endpoint.
func (m *Module) TestConnection(ctx context.Context) (*Connection, error) {
	start := time.Now()
	h, err := m.client.Health(ctx)
	conn := &Connection{Health: h, Latency: time.Since(start), CheckedAt: time.Now()}

	if err != nil {
		msg := err.Error()
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		conn.Err = msg
		m.store(conn)
		m.logger.Warn("connection test failed", zap.Error(err))
		m.notifier.Error("Connection failed: " + msg)
		return conn, shell.Handled(err)
	}

	m.store(conn)
	if h.Healthy() {
		m.notifier.Success(fmt.Sprintf("Connected to backend (%s)", conn.Latency.Round(time.Millisecond)))
	} else {
		m.notifier.Warning(fmt.Sprintf("Backend reachable but reports status %q", h.Status))
	}
	return conn, nil
}

func (m *Module) store(conn *Connection) {
	m.mu.Lock()
	m.conn = conn
	if conn.Health != nil {
		m.health = conn.Health
	}
	host := m.host
	m.mu.Unlock()
	if host != nil {
		host.Changed()
	}
}

// StartTestConnection runs TestConnection in the background.
func (m *Module) StartTestConnection() {
	m.mu.Lock()
	host := m.host
	m.mu.Unlock()
	if host == nil {
		return
	}
	host.Go("test-connection", func(ctx context.Context) error {
		_, err := m.TestConnection(ctx)
		return err
	})
}

// ToggleTheme flips between light and dark, persists the choice and
// applies it. "auto" becomes dark.
func (m *Module) ToggleTheme() (string, error) {
	cfg := m.Config()
	if cfg.UI.Theme == "dark" {
		cfg.UI.Theme = "light"
	} else {
		cfg.UI.Theme = "dark"
	}

	if m.path != "" {
		if err := config.SaveTheme(m.path, cfg.UI.Theme); err != nil {
			m.logger.Warn("failed to persist theme", zap.Error(err))
			m.notifier.Error(fmt.Sprintf("Could not save settings: %v", err))
			return "", shell.Handled(err)
		}
	}
	m.apply(cfg)
	return cfg.UI.Theme, nil
}

// Token inspects the configured bearer token.
func (m *Module) Token(now time.Time) TokenInfo {
	m.mu.Lock()
	token := m.cfg.API.Token
	m.mu.Unlock()
	return InspectToken(token, now)
}
