// Package app wires configuration, logging, tracing, the backend client,
// Core and the feature modules into one session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"contractanalyzer/internal/api"
	"contractanalyzer/internal/config"
	"contractanalyzer/internal/dashboard"
	"contractanalyzer/internal/logging"
	"contractanalyzer/internal/navigation"
	"contractanalyzer/internal/notify"
	"contractanalyzer/internal/prompts"
	"contractanalyzer/internal/settings"
	"contractanalyzer/internal/shell"
	"contractanalyzer/internal/tracing"
	"contractanalyzer/internal/upload"
)

// Version is stamped at build time.
var Version = "dev"

// Options configures a session.
type Options struct {
	// Config is used as-is when set; otherwise ConfigPath is loaded.
	Config     *config.Config
	ConfigPath string
	// Logger overrides the rotating file logger.
	Logger     *zap.Logger
	HTTPClient *http.Client
	// AlertWriter receives errors when notifications are unavailable.
	AlertWriter io.Writer
	// Headless registers empty panes so navigation works without a front end.
	Headless bool
	// Watch enables live reload of ConfigPath.
	Watch bool
	// StderrLogs tees warnings to stderr for one-shot commands.
	StderrLogs bool
}

// App is one console session.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Client *api.Client
	Core   *shell.Core

	Notify     *notify.Module
	Navigation *navigation.Module
	Dashboard  *dashboard.Module
	Upload     *upload.Module
	Prompts    *prompts.Module
	Settings   *settings.Module

	shutdownTracing tracing.ShutdownFunc
	ownsLogger      bool
}

// New builds a session. Nothing talks to the backend until Start.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	ownsLogger := false
	if logger == nil {
		l, err := logging.New(cfg.Logging, logging.Options{Stderr: opts.StderrLogs})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger, ownsLogger = l, true
	}
	boot := logging.For(logger, logging.CategoryBoot)
	boot.Info("starting session",
		zap.String("version", Version),
		zap.String("api", cfg.API.BaseURL),
		zap.Bool("headless", opts.Headless))

	shutdown := tracing.Init(ctx, cfg.Tracing, Version, boot)

	clientOpts := []api.Option{api.WithLogger(logging.For(logger, logging.CategoryAPI))}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	client := api.New(cfg, clientOpts...)

	coreOpts := []shell.CoreOption{}
	if opts.AlertWriter != nil {
		coreOpts = append(coreOpts, shell.WithAlertWriter(opts.AlertWriter))
	}
	core := shell.NewCore(cfg, client, logging.For(logger, logging.CategoryCore), coreOpts...)

	notifier := notify.New(cfg, logging.For(logger, logging.CategoryNotifications))
	watchPath := ""
	if opts.Watch && opts.Config == nil {
		watchPath = opts.ConfigPath
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		Client:          client,
		Core:            core,
		Notify:          notifier,
		Navigation:      navigation.New(cfg, logging.For(logger, logging.CategoryNavigation)),
		Dashboard:       dashboard.New(cfg, client, notifier, logging.For(logger, logging.CategoryDashboard)),
		Upload:          upload.New(cfg, client, notifier, logging.For(logger, logging.CategoryUpload)),
		Prompts:         prompts.New(cfg, client, notifier, logging.For(logger, logging.CategoryPrompts)),
		Settings:        settings.New(cfg, watchPath, client, notifier, logging.For(logger, logging.CategorySettings)),
		shutdownTracing: shutdown,
		ownsLogger:      ownsLogger,
	}

	for _, m := range []shell.Module{a.Notify, a.Navigation, a.Dashboard, a.Upload, a.Settings, a.Prompts} {
		if err := core.Register(m); err != nil {
			return nil, err
		}
	}
	if opts.Headless {
		for _, tab := range shell.Tabs() {
			a.Navigation.RegisterPane(tab, navigation.NopPane{})
		}
	}
	return a, nil
}

// Start initialises every module and loads the first data set.
func (a *App) Start(ctx context.Context) error {
	return a.Core.Init(ctx)
}

// Close stops background work, flushes traces and syncs the log.
func (a *App) Close(ctx context.Context) error {
	a.Upload.CancelAll()
	a.Core.Stop()
	a.Notify.Clear()

	var errs []error
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	if a.ownsLogger {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
