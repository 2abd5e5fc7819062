package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/habit-tracker/internal/config"
	"github.com/magabrotheeeer/habit-tracker/internal/models"
)

func setupTestCache(t *testing.T) *Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		Password:     "",
		DB:           0,
		User:         "",
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	return cache
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	expected := models.HistoryGrid{
		MonthLabels: []string{"", "Jun"},
		Squares: []models.GridSquare{
			{Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), NumComplete: 2, NumActive: 3, Level: 2},
		},
	}
	err := cache.Set("grid:user-1:2025-06-01", expected, time.Minute)
	require.NoError(t, err)

	var actual models.HistoryGrid
	found, err := cache.Get("grid:user-1:2025-06-01", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache := setupTestCache(t)

	var out models.HistoryGrid
	found, err := cache.Get("no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache := setupTestCache(t)

	err := cache.Set("key", "value", time.Minute)
	require.NoError(t, err)

	err = cache.Invalidate("key")
	require.NoError(t, err)

	var out string
	found, err := cache.Get("key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache := setupTestCache(t)

	err := cache.Db.Set(context.Background(), "bad", []byte("not-json"), time.Minute).Err()
	require.NoError(t, err)

	var out models.HistoryGrid
	found, err := cache.Get("bad", &out)
	require.Error(t, err)
	assert.False(t, found)
}

func TestInvalidateMissingKey(t *testing.T) {
	cache := setupTestCache(t)

	err := cache.Invalidate("no_such_key")
	require.NoError(t, err)
}
