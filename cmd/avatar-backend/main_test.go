package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triario/avatar-backend/internal/config"
	"github.com/triario/avatar-backend/internal/mapping"
)

type closeCountingStore struct {
	mapping.Store
	closed int
}

func (s *closeCountingStore) Close() error {
	s.closed++
	return s.Store.Close()
}

func useStore(t *testing.T) *closeCountingStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner, err := mapping.OpenFile(filepath.Join(t.TempDir(), mapping.DefaultFileName), logger)
	require.NoError(t, err)

	store := &closeCountingStore{Store: inner}
	prev := openStore
	openStore = func(context.Context, config.Config, *slog.Logger) (mapping.Store, error) {
		return store, nil
	}
	t.Cleanup(func() { openStore = prev })
	return store
}

func TestRun_ClosesStoreOnStartupFailure(t *testing.T) {
	store := useStore(t)
	cfg := config.Config{TaxonomyFile: filepath.Join(t.TempDir(), "missing.json")}

	err := run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load taxonomy")
	assert.Equal(t, 1, store.closed)
}

func TestRun_ClosesStoreOnShutdown(t *testing.T) {
	store := useStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, config.Config{Port: 0}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, store.closed)
}
