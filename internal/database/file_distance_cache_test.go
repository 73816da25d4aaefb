package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/models"
)

func TestFileDistanceCacheSetBatchAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), DistanceCacheFile)
	cache, err := NewFileDistanceCache(path)
	require.NoError(t, err)
	ctx := context.Background()

	origin := models.Coordinates{Lat: 39.9163, Lng: 116.3972}
	dest := models.Coordinates{Lat: 39.8822, Lng: 116.4066}
	require.NoError(t, cache.SetBatch(ctx, []models.DistanceCacheEntry{
		{Origin: origin, Destination: dest, DistanceMeters: 4200, DurationSecs: 900},
	}))

	entry, err := cache.Get(ctx, origin, dest)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 4200.0, entry.DistanceMeters)

	reverse, err := cache.Get(ctx, dest, origin)
	require.NoError(t, err)
	assert.Nil(t, reverse)
}

func TestFileDistanceCacheRounding(t *testing.T) {
	cache, err := NewFileDistanceCache(filepath.Join(t.TempDir(), DistanceCacheFile))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.SetBatch(ctx, []models.DistanceCacheEntry{{
		Origin:         models.Coordinates{Lat: 39.916321, Lng: 116.397201},
		Destination:    models.Coordinates{Lat: 39.882201, Lng: 116.406601},
		DistanceMeters: 4200,
	}}))

	entry, err := cache.Get(ctx,
		models.Coordinates{Lat: 39.916324, Lng: 116.397204},
		models.Coordinates{Lat: 39.882204, Lng: 116.406604})
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestFileDistanceCacheUpdateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), DistanceCacheFile)
	cache, err := NewFileDistanceCache(path)
	require.NoError(t, err)
	ctx := context.Background()

	a := models.Coordinates{Lat: 1, Lng: 1}
	b := models.Coordinates{Lat: 2, Lng: 2}
	require.NoError(t, cache.SetBatch(ctx, []models.DistanceCacheEntry{{Origin: a, Destination: b, DistanceMeters: 100}}))
	require.NoError(t, cache.SetBatch(ctx, []models.DistanceCacheEntry{{Origin: a, Destination: b, DistanceMeters: 150}}))
	assert.Equal(t, 1, cache.Count())

	reloaded, err := NewFileDistanceCache(path)
	require.NoError(t, err)
	entry, err := reloaded.Get(ctx, a, b)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 150.0, entry.DistanceMeters)

	require.NoError(t, reloaded.Clear(ctx))
	assert.Equal(t, 0, reloaded.Count())
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SQLiteDBFileName), cfg.DatabasePath)

	cfg.DefaultStartTime = "09:30"
	require.NoError(t, SaveConfig(dir, cfg))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
