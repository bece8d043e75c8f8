// Package logging provides the console's structured file logger.
// The terminal belongs to the TUI, so the interactive session logs only to a
// rotating JSON file. One-shot CLI commands may tee warnings to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"contractanalyzer/internal/config"
)

// Category names a subsystem. Each category gets a named child logger so
// entries can be filtered by the "logger" field.
type Category string

const (
	CategoryBoot          Category = "boot"
	CategoryCore          Category = "core"
	CategoryAPI           Category = "api"
	CategoryNavigation    Category = "navigation"
	CategoryNotifications Category = "notifications"
	CategoryUpload        Category = "upload"
	CategoryDashboard     Category = "dashboard"
	CategoryPrompts       Category = "prompts"
	CategorySettings      Category = "settings"
	CategoryTUI           Category = "tui"
	CategoryMockAPI       Category = "mockapi"
)

// Options controls optional outputs.
type Options struct {
	// Stderr adds a console core at warn level and above.
	Stderr bool
}

// New builds a file logger from cfg.
func New(cfg config.LoggingConfig, opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.File); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), level),
	}

	if opts.Stderr {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zap.WarnLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.MessageKey = "message"
	ec.LevelKey = "level"
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

// ParseLevel maps a config level name onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// For returns the child logger for a category. A nil base yields a no-op logger.
func For(base *zap.Logger, c Category) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(string(c))
}
