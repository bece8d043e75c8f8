package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all Contract Analyzer console configuration.
type Config struct {
	// Backend REST API
	API APIConfig `yaml:"api"`

	// Core orchestration (polling)
	Shell ShellConfig `yaml:"shell"`

	// File ingestion limits
	Upload UploadConfig `yaml:"upload"`

	// Toast queue behaviour
	Notifications NotificationsConfig `yaml:"notifications"`

	// Tabs and sidebar
	Navigation NavigationConfig `yaml:"navigation"`

	// Report downloads
	Downloads DownloadsConfig `yaml:"downloads"`

	// Prompt management
	Prompts PromptsConfig `yaml:"prompts"`

	// Terminal appearance
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// OpenTelemetry
	Tracing TracingConfig `yaml:"tracing"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL       string `yaml:"base_url" validate:"required,url"`
	Token         string `yaml:"token"`
	Timeout       string `yaml:"timeout"`
	UploadTimeout string `yaml:"upload_timeout"`
	RetryAttempts int    `yaml:"retry_attempts" validate:"gte=0,lte=10"`
}

// ShellConfig configures the Core orchestrator.
type ShellConfig struct {
	PollInterval string `yaml:"poll_interval"`
}

// UploadConfig configures client-side file validation.
type UploadConfig struct {
	AllowedTypes     []string `yaml:"allowed_types" validate:"min=1,dive,startswith=."`
	MaxSizeMB        int      `yaml:"max_size_mb" validate:"gt=0,lte=1024"`
	ProgressInterval string   `yaml:"progress_interval"`
}

// NotificationsConfig configures the notification queue.
type NotificationsConfig struct {
	MaxVisible      int    `yaml:"max_visible" validate:"gt=0,lte=20"`
	SuccessDuration string `yaml:"success_duration"`
	ErrorDuration   string `yaml:"error_duration"`
	WarningDuration string `yaml:"warning_duration"`
	InfoDuration    string `yaml:"info_duration"`
}

// NavigationConfig configures tab navigation and the responsive sidebar.
type NavigationConfig struct {
	// Terminal width (columns) below which the console uses the compact layout.
	MobileBreakpoint int    `yaml:"mobile_breakpoint" validate:"gt=0"`
	DefaultTab       string `yaml:"default_tab" validate:"oneof=dashboard upload prompts settings"`
}

// DownloadsConfig configures where generated reports are saved.
type DownloadsConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// PromptsConfig configures prompt template management.
type PromptsConfig struct {
	BackupCacheTTL string `yaml:"backup_cache_ttl"`
}

// UIConfig configures the terminal front end.
type UIConfig struct {
	Theme string `yaml:"theme" validate:"oneof=auto light dark"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" validate:"required"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "http://localhost:5000",
			Timeout:       "60s",
			UploadTimeout: "5m",
			RetryAttempts: 3,
		},
		Shell: ShellConfig{
			PollInterval: "30s",
		},
		Upload: UploadConfig{
			AllowedTypes:     []string{".docx"},
			MaxSizeMB:        16,
			ProgressInterval: "200ms",
		},
		Notifications: NotificationsConfig{
			MaxVisible:      5,
			SuccessDuration: "3s",
			ErrorDuration:   "8s",
			WarningDuration: "6s",
			InfoDuration:    "5s",
		},
		Navigation: NavigationConfig{
			MobileBreakpoint: 100,
			DefaultTab:       "dashboard",
		},
		Downloads: DownloadsConfig{
			Dir: defaultDownloadDir(),
		},
		Prompts: PromptsConfig{
			BackupCacheTTL: "1m",
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(defaultStateDir(), "analyzer.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "contract-analyzer-console",
		},
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".analyzer", "config.yaml")
	}
	return filepath.Join(dir, "contract-analyzer", "config.yaml")
}

func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".analyzer"
	}
	return filepath.Join(dir, "contract-analyzer")
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment. Missing files are ignored; existing variables are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFile loads configuration from a YAML file without environment
// overrides. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// SaveTheme stores theme in the file at path, leaving every other value as
// the file has it. Environment and flag overrides never reach the file.
func SaveTheme(path, theme string) error {
	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}
	cfg.UI.Theme = theme
	return cfg.Save(path)
}

// Save saves configuration to a YAML file readable only by the owner.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold the API token
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANALYZER_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("ANALYZER_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("ANALYZER_DOWNLOAD_DIR"); v != "" {
		c.Downloads.Dir = v
	}
	if v := os.Getenv("ANALYZER_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if os.Getenv("OTEL_ENABLED") == "true" {
		c.Tracing.Enabled = true
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for values the console cannot run with.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Upload.AllowedTypes = append([]string(nil), c.Upload.AllowedTypes...)
	return &out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetTimeout returns the per-request timeout.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.API.Timeout, 60*time.Second)
}

// GetUploadTimeout returns the timeout for a single file upload.
func (c *Config) GetUploadTimeout() time.Duration {
	return parseDuration(c.API.UploadTimeout, 5*time.Minute)
}

// GetPollInterval returns the background refresh interval.
func (c *Config) GetPollInterval() time.Duration {
	d := parseDuration(c.Shell.PollInterval, 30*time.Second)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetProgressInterval returns how often upload progress is redrawn.
func (c *Config) GetProgressInterval() time.Duration {
	d := parseDuration(c.Upload.ProgressInterval, 200*time.Millisecond)
	if d == 0 {
		return 200 * time.Millisecond
	}
	return d
}

// GetBackupCacheTTL returns how long prompt backup lists are cached.
func (c *Config) GetBackupCacheTTL() time.Duration {
	return parseDuration(c.Prompts.BackupCacheTTL, time.Minute)
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) * 1024 * 1024
}

// NotificationDurations returns the default auto-dismiss duration per
// notification kind.
func (c *Config) NotificationDurations() map[string]time.Duration {
	return map[string]time.Duration{
		"success": parseDuration(c.Notifications.SuccessDuration, 3*time.Second),
		"error":   parseDuration(c.Notifications.ErrorDuration, 8*time.Second),
		"warning": parseDuration(c.Notifications.WarningDuration, 6*time.Second),
		"info":    parseDuration(c.Notifications.InfoDuration, 5*time.Second),
	}
}
