package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

var _ database.DataStore = (*Store)(nil)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", database.SQLiteDBFileName)
	store, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func snapshot(id string, updated time.Time, n int) *models.ItinerarySnapshot {
	snap := &models.ItinerarySnapshot{ID: id, StartMinutes: 480, UpdatedAt: updated}
	for i := 0; i < n; i++ {
		snap.Waypoints = append(snap.Waypoints, models.Waypoint{
			ID: id + "-w" + string(rune('a'+i)), Lat: 39.9 + float64(i)/100, Lng: 116.4, Name: "Stop", StayMinutes: 60,
		})
	}
	return snap
}

func TestItineraryPutGetDelete(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	snap := snapshot("trip-1", time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), 2)
	snap.Route = &models.RouteData{
		DistanceMeters:  4200,
		DurationSeconds: 900,
		Geometry:        []models.Coordinates{{Lat: 39.9, Lng: 116.4}, {Lat: 39.91, Lng: 116.4}},
		Legs:            []models.Leg{{DistanceMeters: 4200, DurationSeconds: 900}},
	}

	require.NoError(t, store.Itineraries().Put(ctx, snap))

	got, err := store.Itineraries().Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	require.NoError(t, store.Itineraries().Delete(ctx, "trip-1"))
	_, err = store.Itineraries().Get(ctx, "trip-1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, store.Itineraries().Delete(ctx, "trip-1"), database.ErrNotFound)
}

func TestItineraryPutRejectsEmptyID(t *testing.T) {
	store, _ := setupStore(t)
	err := store.Itineraries().Put(context.Background(), &models.ItinerarySnapshot{})
	assert.ErrorIs(t, err, database.ErrInvalidID)
}

func TestItineraryPutOverwrites(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Itineraries().Put(ctx, snapshot("trip-1", base, 1)))
	require.NoError(t, store.Itineraries().Put(ctx, snapshot("trip-1", base.Add(time.Minute), 3)))

	got, err := store.Itineraries().Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.Len(t, got.Waypoints, 3)

	list, err := store.Itineraries().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].WaypointCount)
}

func TestItineraryListNewestFirst(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Itineraries().Put(ctx, snapshot("old", base, 1)))
	require.NoError(t, store.Itineraries().Put(ctx, snapshot("new", base.Add(time.Hour), 2)))
	require.NoError(t, store.Itineraries().Put(ctx, snapshot("mid", base.Add(time.Minute), 0)))

	list, err := store.Itineraries().List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 2, list[0].WaypointCount)
	assert.Equal(t, base.Add(time.Hour), list[0].UpdatedAt)
	assert.Equal(t, "mid", list[1].ID)

	all, err := store.Itineraries().List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestItineraryPersistsAcrossReopen(t *testing.T) {
	store, path := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Itineraries().Put(ctx, snapshot("trip-1", time.Now().UTC(), 2)))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Itineraries().Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.Len(t, got.Waypoints, 2)
}

func TestDistanceCache(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	origin := models.Coordinates{Lat: 39.916321, Lng: 116.397201}
	dest := models.Coordinates{Lat: 39.882201, Lng: 116.406601}

	miss, err := store.DistanceCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.DistanceCache().SetBatch(ctx, []models.DistanceCacheEntry{
		{Origin: origin, Destination: dest, DistanceMeters: 4200, DurationSecs: 900},
	}))

	hit, err := store.DistanceCache().Get(ctx,
		models.Coordinates{Lat: 39.916324, Lng: 116.397204},
		models.Coordinates{Lat: 39.882204, Lng: 116.406604})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 900.0, hit.DurationSecs)

	require.NoError(t, store.DistanceCache().Clear(ctx))
	gone, err := store.DistanceCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGeocodeCache(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.GeocodeCache().PutMany(ctx, []models.GeocodeCacheEntry{
		{Query: "summer palace", DisplayName: "Summer Palace, Haidian", Coords: models.Coordinates{Lat: 39.9993, Lng: 116.2753}},
		{Query: "798", DisplayName: "798 Art Zone, Chaoyang", Coords: models.Coordinates{Lat: 39.9841, Lng: 116.4950}},
	}))

	got, err := store.GeocodeCache().GetMany(ctx, []string{"summer palace", "nowhere"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Summer Palace, Haidian", got["summer palace"].DisplayName)
	assert.Equal(t, 116.2753, got["summer palace"].Coords.Lng)

	empty, err := store.GeocodeCache().GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHealthCheck(t *testing.T) {
	store, path := setupStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.Equal(t, path, store.GetDBPath())
}
