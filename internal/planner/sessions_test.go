package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/models"
	"itinerary-planner/internal/testutil"
)

func TestSessionStore_CreatePersistsEmptyItinerary(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	s := f.newSession(t)

	snap, err := f.repo.Get(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Empty(t, snap.Waypoints)
	assert.Equal(t, 8*60, snap.StartMinutes)
	assert.Nil(t, snap.Route)
}

func TestSessionStore_RehydratesWithoutRecompute(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	s := f.newSession(t)
	stops := addStops(t, s, 3)
	require.NoError(t, s.SetStartTime("09:15"))
	settle(t, s)
	calls := len(f.router.RouteCalls())

	// A fresh store has nothing live and must load from the repository
	restarted := NewSessionStore(f.config())
	restored, err := restarted.Get(context.Background(), s.ID())
	require.NoError(t, err)
	settle(t, restored)

	v := restored.View()
	assert.Equal(t, []string{stops[0].ID, stops[1].ID, stops[2].ID}, viewIDs(v))
	assert.Equal(t, "09:15", v.StartTime)
	require.NotNil(t, v.Route)
	assert.Len(t, v.Route.Legs, 2)
	assert.Len(t, f.router.RouteCalls(), calls, "a stored route is reused")

	again, err := restarted.Get(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Same(t, restored, again)
}

func TestSessionStore_RehydrateWithoutRouteRecomputes(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	require.NoError(t, f.repo.Put(context.Background(), &models.ItinerarySnapshot{
		ID: "stored",
		Waypoints: []models.Waypoint{
			{ID: "a", Lat: 39.9163, Lng: 116.3972, Name: "Palace Museum", StayMinutes: 120},
			{ID: "b", Lat: 39.8822, Lng: 116.4066, Name: "Temple of Heaven", StayMinutes: 90},
		},
		StartMinutes: 10 * 60,
	}))

	s, err := f.sessions.Get(context.Background(), "stored")
	require.NoError(t, err)
	settle(t, s)

	require.NotNil(t, s.View().Route)
	assert.Len(t, f.router.RouteCalls(), 1)

	snap, err := f.repo.Get(context.Background(), "stored")
	require.NoError(t, err)
	assert.NotNil(t, snap.Route, "the recomputed route is persisted")
}

func TestSessionStore_RestoredRouteWithWrongLegCountIsDropped(t *testing.T) {
	router := testutil.NewGatedRouter()
	f := newFixture(t, router)
	require.NoError(t, f.repo.Put(context.Background(), &models.ItinerarySnapshot{
		ID: "stale",
		Waypoints: []models.Waypoint{
			{ID: "a", Lat: 1, Lng: 1, Name: "A"},
			{ID: "b", Lat: 2, Lng: 2, Name: "B"},
			{ID: "c", Lat: 3, Lng: 3, Name: "C"},
		},
		Route: &models.RouteData{Legs: []models.Leg{{DurationSeconds: 60}}},
	}))

	s, err := f.sessions.Get(context.Background(), "stale")
	require.NoError(t, err)
	assert.Nil(t, s.View().Route)

	call := receiveCall(t, router)
	assert.Len(t, call.Waypoints, 3)
	call.Respond(testutil.StraightRoute(call.Waypoints), nil)
	settle(t, s)
	assert.Len(t, s.View().Route.Legs, 2)
}

func TestSessionStore_GetUnknown(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	_, err := f.sessions.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	memoryOnly := NewSessionStore(Config{Router: f.router, Geocoder: f.geocoder})
	_, err = memoryOnly.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	router := testutil.NewGatedRouter()
	f := newFixture(t, router)
	s := f.newSession(t)
	addStops(t, s, 2)
	call := receiveCall(t, router)
	puts := f.repo.PutCount()

	require.NoError(t, f.sessions.Delete(context.Background(), s.ID()))
	call.Respond(testutil.StraightRoute(call.Waypoints), nil)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, puts, f.repo.PutCount(), "a late response must not resurrect a deleted itinerary")
	_, err := f.sessions.Get(context.Background(), s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.sessions.Delete(context.Background(), s.ID()), ErrSessionNotFound)
}

func TestSessionStore_ListNewestFirst(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	first := f.newSession(t)
	f.clock.Advance(time.Minute)
	second := f.newSession(t)
	f.clock.Advance(time.Minute)
	addStops(t, first, 1)

	list, err := f.sessions.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID(), list[0].ID)
	assert.Equal(t, 1, list[0].WaypointCount)
	assert.Equal(t, second.ID(), list[1].ID)

	limited, err := f.sessions.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSessionStore_ListWithoutRepository(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := NewSessionStore(Config{Router: testutil.NewFakeRouter(), Geocoder: testutil.NewFakeGeocoder(), Now: clock.Now})

	a, err := store.Create(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Second)
	b, err := store.Create(context.Background())
	require.NoError(t, err)

	list, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID(), list[0].ID)
	assert.Equal(t, a.ID(), list[1].ID)

	require.NoError(t, store.Delete(context.Background(), a.ID()))
	list, err = store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPersistFailureDoesNotBreakEditing(t *testing.T) {
	f := newFixture(t, testutil.NewFakeRouter())
	s := f.newSession(t)
	f.repo.PutErr = assert.AnError

	_, err := s.AddWaypoint(models.Coordinates{Lat: 1, Lng: 1})
	require.NoError(t, err)
	assert.Len(t, s.View().Waypoints, 1)
}
