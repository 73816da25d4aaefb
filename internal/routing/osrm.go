package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"itinerary-planner/internal/models"
	"itinerary-planner/internal/platform/obs"
)

const (
	serviceName = "osrm"

	// DefaultBaseURL is the public OSRM demo server
	DefaultBaseURL = "https://router.project-osrm.org"
	// DefaultProfile is the OSRM routing profile
	DefaultProfile = "driving"

	maxResponseBytes = 8 << 20
)

type osrmClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

type osrmStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type osrmLeg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry *geojson.Geometry `json:"geometry"`
	Legs     []osrmLeg         `json:"legs"`
}

type osrmRouteResponse struct {
	osrmStatus
	Routes []osrmRoute `json:"routes"`
}

type osrmTripWaypoint struct {
	WaypointIndex *int      `json:"waypoint_index"`
	TripsIndex    int       `json:"trips_index"`
	Location      []float64 `json:"location"`
}

type osrmTripResponse struct {
	osrmStatus
	Trips     []osrmRoute        `json:"trips"`
	Waypoints []osrmTripWaypoint `json:"waypoints"`
}

// NewOSRMClient creates a routing service backed by an OSRM server
func NewOSRMClient(baseURL, profile string, timeout time.Duration) Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &osrmClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *osrmClient) FetchRoute(ctx context.Context, ordered []models.Waypoint) (_ *models.RouteData, err error) {
	if len(ordered) < MinRoutePoints {
		return nil, models.NewServiceError(serviceName, models.KindInsufficientPoints,
			"need at least %d waypoints, got %d", MinRoutePoints, len(ordered))
	}
	defer obs.Time(ctx, "osrm.route")(&err)

	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "geojson")
	query.Set("steps", "false")

	var resp osrmRouteResponse
	if err := c.get(ctx, "route", ordered, query, models.KindNetwork, &resp); err != nil {
		return nil, err
	}
	if err := checkCode(resp.osrmStatus); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, models.NewServiceError(serviceName, models.KindNoRoute, "response contained no routes")
	}

	route, err := decodeRoute(resp.Routes[0], len(ordered))
	if err != nil {
		return nil, err
	}

	log.Printf("[OSRM] Route calculated: points=%d distance=%.0f duration=%.0f", len(ordered), route.DistanceMeters, route.DurationSeconds)
	return route, nil
}

func (c *osrmClient) FetchOptimizedRoute(ctx context.Context, waypoints []models.Waypoint) (_ *OptimizedRoute, err error) {
	if len(waypoints) < MinOptimizePoints {
		return nil, models.NewServiceError(serviceName, models.KindInsufficientPoints,
			"need at least %d waypoints to optimize, got %d", MinOptimizePoints, len(waypoints))
	}
	defer obs.Time(ctx, "osrm.trip")(&err)

	query := url.Values{}
	query.Set("source", "first")
	query.Set("destination", "any")
	query.Set("roundtrip", "false")
	query.Set("overview", "full")
	query.Set("geometries", "geojson")

	var resp osrmTripResponse
	if err := c.get(ctx, "trip", waypoints, query, models.KindSolverBusy, &resp); err != nil {
		return nil, err
	}
	if err := checkCode(resp.osrmStatus); err != nil {
		return nil, err
	}
	if len(resp.Trips) == 0 {
		return nil, models.NewServiceError(serviceName, models.KindNoTripFound, "response contained no trips")
	}

	order, err := mapTripOrder(resp.Waypoints, waypoints)
	if err != nil {
		return nil, err
	}

	route, err := decodeRoute(resp.Trips[0], len(waypoints))
	if err != nil {
		return nil, err
	}

	log.Printf("[OSRM] Trip optimized: points=%d distance=%.0f duration=%.0f", len(waypoints), route.DistanceMeters, route.DurationSeconds)
	return &OptimizedRoute{Order: order, Route: route}, nil
}

// get issues the request and decodes the body into out. A 429 maps to busyKind.
func (c *osrmClient) get(ctx context.Context, service string, points []models.Waypoint, query url.Values, busyKind models.FailureKind, out any) error {
	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	queryURL := fmt.Sprintf("%s/%s/v1/%s/%s?%s", c.baseURL, service, c.profile, strings.Join(coords, ";"), query.Encode())
	log.Printf("[OSRM] Request: service=%s points=%d", service, len(points))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create OSRM request: service=%s err=%v", service, err)
		return models.NewServiceError(serviceName, models.KindMalformed, "build request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] OSRM API request failed: service=%s err=%v", service, err)
		return models.NetworkFailure(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Printf("[ERROR] Failed to read OSRM response: service=%s err=%v", service, err)
		return models.NetworkFailure(serviceName, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		log.Printf("[ERROR] OSRM rate limited: service=%s", service)
		return models.NewServiceError(serviceName, busyKind, "rate limited: %s", statusMessage(body, resp.StatusCode))
	case resp.StatusCode >= http.StatusInternalServerError:
		log.Printf("[ERROR] OSRM API error: service=%s status=%d body=%s", service, resp.StatusCode, string(body))
		return models.NewServiceError(serviceName, models.KindNetwork, "HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Printf("[ERROR] Failed to decode OSRM response: service=%s status=%d err=%v", service, resp.StatusCode, err)
		return &models.ServiceError{Service: serviceName, Kind: models.KindMalformed, Reason: "decode response: " + err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		// 4xx bodies still carry an OSRM code; let the caller classify it
		log.Printf("[OSRM] Non-OK status: service=%s status=%d", service, resp.StatusCode)
	}
	return nil
}

func statusMessage(body []byte, status int) string {
	var st osrmStatus
	if json.Unmarshal(body, &st) == nil && st.Message != "" {
		return st.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}

// checkCode maps an OSRM response code to a failure kind
func checkCode(st osrmStatus) error {
	switch st.Code {
	case "Ok":
		return nil
	case "NoRoute", "NoSegment":
		return models.NewServiceError(serviceName, models.KindNoRoute, "%s", describe(st))
	case "NoTrips":
		return models.NewServiceError(serviceName, models.KindNoTripFound, "%s", describe(st))
	case "":
		return models.NewServiceError(serviceName, models.KindMalformed, "response has no status code")
	default:
		return models.NewServiceError(serviceName, models.KindMalformed, "%s", describe(st))
	}
}

func describe(st osrmStatus) string {
	if st.Message == "" {
		return st.Code
	}
	return st.Code + ": " + st.Message
}

// decodeRoute converts an OSRM route into RouteData for n waypoints
func decodeRoute(r osrmRoute, n int) (*models.RouteData, error) {
	if len(r.Legs) != n-1 {
		return nil, models.NewServiceError(serviceName, models.KindMalformed,
			"expected %d legs for %d waypoints, got %d", n-1, n, len(r.Legs))
	}
	if r.Geometry == nil {
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "route has no geometry")
	}
	line, ok := r.Geometry.Geometry().(orb.LineString)
	if !ok || len(line) == 0 {
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "route geometry is not a line string")
	}

	geometry := make([]models.Coordinates, len(line))
	for i, p := range line {
		geometry[i] = models.Coordinates{Lat: p.Lat(), Lng: p.Lon()}
	}

	legs := make([]models.Leg, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = models.Leg{DistanceMeters: l.Distance, DurationSeconds: l.Duration}
	}

	return &models.RouteData{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Geometry:        geometry,
		Legs:            legs,
	}, nil
}

var errBadPermutation = errors.New("trip order is not a permutation of the input")

// mapTripOrder maps the solver's visiting order back onto the input
// waypoints by original index. Entry k names the input position visited k-th.
func mapTripOrder(tripWaypoints []osrmTripWaypoint, input []models.Waypoint) ([]models.Waypoint, error) {
	if len(tripWaypoints) != len(input) {
		return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed,
			Reason: fmt.Sprintf("expected %d trip waypoints, got %d", len(input), len(tripWaypoints)), Err: errBadPermutation}
	}

	seen := make([]bool, len(input))
	order := make([]models.Waypoint, len(input))
	for k, tw := range tripWaypoints {
		if tw.WaypointIndex == nil {
			return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed,
				Reason: fmt.Sprintf("trip waypoint %d has no waypoint_index", k), Err: errBadPermutation}
		}
		idx := *tw.WaypointIndex
		if idx < 0 || idx >= len(input) {
			return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed,
				Reason: fmt.Sprintf("waypoint_index %d out of range for %d waypoints", idx, len(input)), Err: errBadPermutation}
		}
		if seen[idx] {
			return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed,
				Reason: fmt.Sprintf("waypoint_index %d repeated", idx), Err: errBadPermutation}
		}
		seen[idx] = true
		order[k] = input[idx]
	}

	if order[0].ID != input[0].ID {
		return nil, &models.ServiceError{Service: serviceName, Kind: models.KindMalformed,
			Reason: "trip does not start at the first waypoint", Err: errBadPermutation}
	}
	return order, nil
}
