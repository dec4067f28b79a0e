package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superiorweather/internal/config"
	"superiorweather/internal/notifications/delivery"
)

func TestOpenStore_Memory(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.StoreConfig{Backend: config.StoreMemory}, nil)
	require.NoError(t, err)
	defer closeFn()

	_, ok := store.(*delivery.MemoryStore)
	assert.True(t, ok)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.StoreConfig{Backend: "etcd"}, nil)
	assert.ErrorContains(t, err, "etcd")
}

func TestOpenStore_PostgresBadURL(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.StoreConfig{
		Backend:     config.StorePostgres,
		DatabaseURL: "postgres://weather@localhost:notaport/weather",
	}, nil)
	assert.Error(t, err)
}
