package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gofr-iq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dir: initial\n"), 0o644))

	var mu sync.Mutex
	var reloaded *Config
	done := make(chan struct{}, 1)

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		reloaded = cfg
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dir: updated\n"), 0o644))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, reloaded)
	require.Equal(t, "updated", reloaded.Storage.Dir)
}

func TestWatcher_InvalidReloadIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gofr-iq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dir: initial\n"), 0o644))

	calls := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) { calls <- cfg }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dir: \"\"\n"), 0o644))

	select {
	case <-calls:
		t.Fatal("onReload should not fire for a config that fails Validate")
	case <-time.After(1 * time.Second):
	}
}
