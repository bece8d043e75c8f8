package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"contractanalyzer/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.File = filepath.Join(t.TempDir(), "logs", "analyzer.log")
	cfg.Compress = false

	logger, err := New(cfg, Options{})
	require.NoError(t, err)

	For(logger, CategoryUpload).Info("upload started", zap.String("filename", "a.docx"))
	logger.Debug("hidden at info level")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "upload started", entry["message"])
	assert.Equal(t, "upload", entry["logger"])
	assert.Equal(t, "a.docx", entry["filename"])
	assert.Contains(t, entry, "timestamp")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zap.DebugLevel, false},
		{"INFO", zap.InfoLevel, false},
		{"", zap.InfoLevel, false},
		{"warning", zap.WarnLevel, false},
		{"error", zap.ErrorLevel, false},
		{"verbose", zap.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestFor_NilBase(t *testing.T) {
	l := For(nil, CategoryCore)
	require.NotNil(t, l)
	l.Info("dropped")
}
