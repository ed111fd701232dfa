package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popcorn/config"
)

func TestOpenSlotBackends(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultSettings().Storage
	cfg.Directory = dir
	cfg.SQLitePath = filepath.Join(dir, "db", "popcorn.db")
	cfg.BadgerPath = filepath.Join(dir, "badger")

	for _, backend := range []config.StorageBackend{
		config.StorageBackendFile,
		config.StorageBackendSQLite,
		config.StorageBackendBadger,
	} {
		t.Run(string(backend), func(t *testing.T) {
			cfg.Backend = backend
			slot, closeSlot, err := openSlot(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, string(backend), slot.Name())

			require.NoError(t, slot.Save(context.Background(), []byte(`[]`)))
			data, ok, err := slot.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[]`, string(data))
			require.NoError(t, closeSlot())
		})
	}
}

func TestOpenSlotUnknownBackend(t *testing.T) {
	cfg := config.DefaultSettings().Storage
	cfg.Backend = "tape"
	_, _, err := openSlot(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storage backend")
}
