package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	changed := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changed <- c }, nil)
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	cfg := DefaultConfig()
	cfg.Notifications.MaxVisible = 3
	require.NoError(t, cfg.Save(path))

	select {
	case got := <-changed:
		assert.Equal(t, 3, got.Notifications.MaxVisible)
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload after config write")
	}

	require.NoError(t, w.Close())
}

func TestWatcher_InvalidConfigReportsError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	errs := make(chan error, 4)
	w, err := NewWatcher(path, func(*Config) { t.Error("unexpected reload of invalid config") }, func(e error) { errs <- e })
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("ui:\n  theme: neon\n"), 0644))

	select {
	case e := <-errs:
		assert.Contains(t, e.Error(), "Theme")
	case <-time.After(3 * time.Second):
		t.Fatal("expected validation error")
	}

	require.NoError(t, w.Close())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	w, err := NewWatcher(path, func(*Config) { t.Error("reload for unrelated file") }, nil)
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, w.Close())
}
