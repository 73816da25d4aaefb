package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/models"
)

func testWaypoints(n int) []models.Waypoint {
	out := make([]models.Waypoint, n)
	for i := range out {
		out[i] = models.Waypoint{
			ID:          string(rune('a' + i)),
			Lat:         39.9 + float64(i)*0.01,
			Lng:         116.4 + float64(i)*0.01,
			Name:        "P" + string(rune('0'+i)),
			StayMinutes: 10 * (i + 1),
			Notes:       "note " + string(rune('0'+i)),
		}
	}
	return out
}

func newTestClient(server *httptest.Server) *osrmClient {
	return &osrmClient{
		baseURL:    server.URL,
		profile:    DefaultProfile,
		httpClient: server.Client(),
	}
}

func serveJSON(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const routeOK = `{
	"code": "Ok",
	"routes": [{
		"distance": 5400.5,
		"duration": 2100,
		"geometry": {"type": "LineString", "coordinates": [[116.4, 39.9], [116.41, 39.91], [116.42, 39.92]]},
		"legs": [{"distance": 2000, "duration": 1200}, {"distance": 3400.5, "duration": 900}]
	}]
}`

func TestFetchRoute_Success(t *testing.T) {
	server := serveJSON(t, http.StatusOK, routeOK, func(r *http.Request) {
		assert.Equal(t, "/route/v1/driving/116.400000,39.900000;116.410000,39.910000;116.420000,39.920000", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
	})

	route, err := newTestClient(server).FetchRoute(context.Background(), testWaypoints(3))
	require.NoError(t, err)

	assert.Equal(t, 5400.5, route.DistanceMeters)
	assert.Equal(t, 2100.0, route.DurationSeconds)
	require.Len(t, route.Legs, 2)
	assert.Equal(t, 1200.0, route.Legs[0].DurationSeconds)
	require.Len(t, route.Geometry, 3)
	assert.Equal(t, models.Coordinates{Lat: 39.9, Lng: 116.4}, route.Geometry[0])
}

func TestFetchRoute_InsufficientPointsMakesNoRequest(t *testing.T) {
	called := false
	server := serveJSON(t, http.StatusOK, routeOK, func(*http.Request) { called = true })

	_, err := newTestClient(server).FetchRoute(context.Background(), testWaypoints(1))

	assert.Equal(t, models.KindInsufficientPoints, models.KindOf(err))
	assert.False(t, called)
}

func TestFetchRoute_FailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   models.FailureKind
	}{
		{"no route code", http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route between points"}`, models.KindNoRoute},
		{"no segment", http.StatusBadRequest, `{"code":"NoSegment"}`, models.KindNoRoute},
		{"invalid query", http.StatusBadRequest, `{"code":"InvalidQuery"}`, models.KindMalformed},
		{"server error", http.StatusBadGateway, `upstream down`, models.KindNetwork},
		{"rate limited", http.StatusTooManyRequests, `{"message":"slow down"}`, models.KindNetwork},
		{"not json", http.StatusOK, `<html>`, models.KindMalformed},
		{"missing code", http.StatusOK, `{"routes":[]}`, models.KindMalformed},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, models.KindNoRoute},
		{"leg count mismatch", http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"duration":1,
			"geometry":{"type":"LineString","coordinates":[[116.4,39.9],[116.41,39.91]]},
			"legs":[{"distance":1,"duration":1}]}]}`, models.KindMalformed},
		{"missing geometry", http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"duration":1,
			"legs":[{"distance":1,"duration":1},{"distance":1,"duration":1}]}]}`, models.KindMalformed},
		{"point geometry", http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"duration":1,
			"geometry":{"type":"Point","coordinates":[116.4,39.9]},
			"legs":[{"distance":1,"duration":1},{"distance":1,"duration":1}]}]}`, models.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveJSON(t, tt.status, tt.body, nil)

			route, err := newTestClient(server).FetchRoute(context.Background(), testWaypoints(3))

			require.Error(t, err)
			assert.Nil(t, route)
			assert.Equal(t, tt.kind, models.KindOf(err))
		})
	}
}

func TestFetchRoute_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(server)
	server.Close()

	_, err := client.FetchRoute(context.Background(), testWaypoints(2))

	assert.Equal(t, models.KindNetwork, models.KindOf(err))
}

func TestFetchRoute_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server).FetchRoute(ctx, testWaypoints(2))

	assert.Equal(t, models.KindNetwork, models.KindOf(err))
}

func tripBody(indexes string) string {
	parts := strings.Split(indexes, ",")
	wps := make([]string, len(parts))
	for i, p := range parts {
		wps[i] = `{"waypoint_index":` + p + `,"trips_index":0,"location":[116.4,39.9]}`
	}
	return `{
		"code": "Ok",
		"trips": [{
			"distance": 4200,
			"duration": 1500,
			"geometry": {"type": "LineString", "coordinates": [[116.4, 39.9], [116.42, 39.92], [116.41, 39.91]]},
			"legs": [{"distance": 2500, "duration": 900}, {"distance": 1700, "duration": 600}]
		}],
		"waypoints": [` + strings.Join(wps, ",") + `]
	}`
}

func TestFetchOptimizedRoute_MapsIndexesOntoOriginals(t *testing.T) {
	server := serveJSON(t, http.StatusOK, tripBody("0,2,1"), func(r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/trip/v1/driving/"))
		q := r.URL.Query()
		assert.Equal(t, "first", q.Get("source"))
		assert.Equal(t, "false", q.Get("roundtrip"))
		assert.Equal(t, "any", q.Get("destination"))
	})
	input := testWaypoints(3)

	result, err := newTestClient(server).FetchOptimizedRoute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Order, 3)
	assert.Equal(t, []models.Waypoint{input[0], input[2], input[1]}, result.Order)
	assert.Equal(t, "note 2", result.Order[1].Notes)
	assert.Equal(t, 30, result.Order[1].StayMinutes)
	assert.Len(t, result.Route.Legs, 2)
	assert.Equal(t, 4200.0, result.Route.DistanceMeters)
}

func TestFetchOptimizedRoute_PreservesIDsWhenCoordinatesRepeat(t *testing.T) {
	server := serveJSON(t, http.StatusOK, tripBody("0,2,1"), nil)
	input := testWaypoints(3)
	input[2].Lat, input[2].Lng = input[1].Lat, input[1].Lng

	result, err := newTestClient(server).FetchOptimizedRoute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "b"}, []string{result.Order[0].ID, result.Order[1].ID, result.Order[2].ID})
}

func TestFetchOptimizedRoute_RejectsBadPermutations(t *testing.T) {
	tests := []struct {
		name    string
		indexes string
	}{
		{"out of range", "0,3,1"},
		{"negative", "0,-1,2"},
		{"duplicate", "0,1,1"},
		{"too few", "0,1"},
		{"wrong start", "1,0,2"},
		{"missing index", "0,null,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveJSON(t, http.StatusOK, tripBody(tt.indexes), nil)

			result, err := newTestClient(server).FetchOptimizedRoute(context.Background(), testWaypoints(3))

			assert.Nil(t, result)
			assert.Equal(t, models.KindMalformed, models.KindOf(err))
			assert.ErrorIs(t, err, errBadPermutation)
		})
	}
}

func TestFetchOptimizedRoute_FailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   models.FailureKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"message":"Too Many Requests"}`, models.KindSolverBusy},
		{"no trips code", http.StatusBadRequest, `{"code":"NoTrips"}`, models.KindNoTripFound},
		{"empty trips", http.StatusOK, `{"code":"Ok","trips":[],"waypoints":[]}`, models.KindNoTripFound},
		{"no route", http.StatusBadRequest, `{"code":"NoRoute"}`, models.KindNoRoute},
		{"server error", http.StatusServiceUnavailable, ``, models.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveJSON(t, tt.status, tt.body, nil)

			_, err := newTestClient(server).FetchOptimizedRoute(context.Background(), testWaypoints(3))

			assert.Equal(t, tt.kind, models.KindOf(err))
		})
	}
}

func TestFetchOptimizedRoute_InsufficientPoints(t *testing.T) {
	called := false
	server := serveJSON(t, http.StatusOK, tripBody("0,1"), func(*http.Request) { called = true })

	_, err := newTestClient(server).FetchOptimizedRoute(context.Background(), testWaypoints(2))

	assert.Equal(t, models.KindInsufficientPoints, models.KindOf(err))
	assert.False(t, called)
}

func TestNewOSRMClient_Defaults(t *testing.T) {
	c := NewOSRMClient("", "", time.Second).(*osrmClient)

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultProfile, c.profile)

	c = NewOSRMClient("http://localhost:5000/", "foot", time.Second).(*osrmClient)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "foot", c.profile)
}
