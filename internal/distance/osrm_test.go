package distance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

func newTestCache(t *testing.T) *database.FileDistanceCache {
	t.Helper()
	cache, err := database.NewFileDistanceCache(filepath.Join(t.TempDir(), database.DistanceCacheFile))
	require.NoError(t, err)
	return cache
}

func newTestCalculator(server *httptest.Server, cache database.DistanceCacheRepository) *osrmCalculator {
	return &osrmCalculator{
		baseURL:    server.URL,
		profile:    "driving",
		httpClient: server.Client(),
		cache:      cache,
	}
}

var (
	palace = models.Coordinates{Lat: 39.9163, Lng: 116.3972}
	temple = models.Coordinates{Lat: 39.8822, Lng: 116.4066}
	summer = models.Coordinates{Lat: 39.9993, Lng: 116.2753}
)

func TestGetDistancesFromPoint_AllCached(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.SetBatch(context.Background(), []models.DistanceCacheEntry{
		{Origin: palace, Destination: temple, DistanceMeters: 4200, DurationSecs: 900},
		{Origin: palace, Destination: summer, DistanceMeters: 15000, DurationSecs: 2100},
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("OSRM server should not be called when all data is cached")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	results, err := newTestCalculator(server, cache).GetDistancesFromPoint(context.Background(), palace,
		[]models.Coordinates{temple, palace, summer})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 900.0, results[0].DurationSecs)
	assert.Equal(t, 0.0, results[1].DurationSecs)
	assert.Equal(t, 2100.0, results[2].DurationSecs)
}

func TestGetDistancesFromPoint_FetchesMissingOnly(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.SetBatch(context.Background(), []models.DistanceCacheEntry{
		{Origin: palace, Destination: temple, DistanceMeters: 4200, DurationSecs: 900},
	}))

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/table/v1/driving/"))
		coords := strings.Split(strings.TrimPrefix(r.URL.Path, "/table/v1/driving/"), ";")
		assert.Len(t, coords, 2, "origin plus the one uncached destination")
		assert.Equal(t, "0", r.URL.Query().Get("sources"))
		assert.Equal(t, "distance,duration", r.URL.Query().Get("annotations"))

		w.Write([]byte(`{"code":"Ok","distances":[[0,15000]],"durations":[[0,2100]]}`))
	}))
	defer server.Close()

	calc := newTestCalculator(server, cache)
	results, err := calc.GetDistancesFromPoint(context.Background(), palace, []models.Coordinates{temple, summer})
	require.NoError(t, err)
	assert.Equal(t, 900.0, results[0].DurationSecs)
	assert.Equal(t, 2100.0, results[1].DurationSecs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// second lookup is served from the cache
	_, err = calc.GetDistancesFromPoint(context.Background(), palace, []models.Coordinates{summer})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, cache.Count())
}

func TestGetDistancesFromPoint_UnreachableNotCached(t *testing.T) {
	cache := newTestCache(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","distances":[[0,null,15000]],"durations":[[0,null,2100]]}`))
	}))
	defer server.Close()

	results, err := newTestCalculator(server, cache).GetDistancesFromPoint(context.Background(), palace,
		[]models.Coordinates{temple, summer})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Unreachable)
	assert.False(t, results[1].Unreachable)
	assert.Equal(t, 2100.0, results[1].DurationSecs)

	assert.Equal(t, 1, cache.Count())
	cached, err := cache.Get(context.Background(), palace, temple)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestGetDistancesFromPoint_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   models.FailureKind
	}{
		{"server error", http.StatusBadGateway, "", models.KindNetwork},
		{"rate limited", http.StatusTooManyRequests, "", models.KindNetwork},
		{"bad request", http.StatusBadRequest, `{"code":"InvalidQuery"}`, models.KindMalformed},
		{"garbage", http.StatusOK, "not json", models.KindMalformed},
		{"no route", http.StatusOK, `{"code":"NoRoute"}`, models.KindNoRoute},
		{"wrong shape", http.StatusOK, `{"code":"Ok","distances":[[0]],"durations":[[0]]}`, models.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestCalculator(server, newTestCache(t)).GetDistancesFromPoint(context.Background(), palace,
				[]models.Coordinates{temple})
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
		})
	}
}

func TestGetDistancesFromPoint_Empty(t *testing.T) {
	calc := NewOSRMCalculator("", "", 0, newTestCache(t))
	results, err := calc.GetDistancesFromPoint(context.Background(), palace, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
