package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/platform/obs"
)

const serviceName = "osrm-table"

// DistanceResult contains the result of a distance calculation.
// Unreachable is set when OSRM found no path; the metrics are then zero.
type DistanceResult struct {
	DistanceMeters float64
	DurationSecs   float64
	Unreachable    bool
}

// DistanceCalculator provides travel times from one point to many
type DistanceCalculator interface {
	GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]DistanceResult, error)
}

type osrmCalculator struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	cache      database.DistanceCacheRepository
}

type osrmTableResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message,omitempty"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// NewOSRMCalculator creates an OSRM table client backed by the distance cache
func NewOSRMCalculator(baseURL, profile string, timeout time.Duration, cache database.DistanceCacheRepository) DistanceCalculator {
	if baseURL == "" {
		baseURL = "https://router.project-osrm.org"
	}
	if profile == "" {
		profile = "driving"
	}
	return &osrmCalculator{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: cache,
	}
}

func samePoint(a, b models.Coordinates) bool {
	return models.RoundCoordinate(a.Lat) == models.RoundCoordinate(b.Lat) &&
		models.RoundCoordinate(a.Lng) == models.RoundCoordinate(b.Lng)
}

// GetDistancesFromPoint returns one result per destination, in order. Cached
// pairs are served locally; the rest go out in a single table request.
func (c *osrmCalculator) GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) (_ []DistanceResult, err error) {
	defer obs.Time(ctx, "osrm.table")(&err)

	results := make([]DistanceResult, len(destinations))
	if len(destinations) == 0 {
		return results, nil
	}

	var missing []int
	for i, dest := range destinations {
		if samePoint(origin, dest) {
			continue
		}
		cached, err := c.cache.Get(ctx, origin, dest)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			results[i] = DistanceResult{DistanceMeters: cached.DistanceMeters, DurationSecs: cached.DurationSecs}
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		log.Printf("[OSRM] Distance table all cached: destinations=%d", len(destinations))
		return results, nil
	}

	log.Printf("[OSRM] Distance table request: destinations=%d cached=%d missing=%d",
		len(destinations), len(destinations)-len(missing), len(missing))

	points := make([]models.Coordinates, 0, len(missing)+1)
	points = append(points, origin)
	for _, i := range missing {
		points = append(points, destinations[i])
	}

	resp, err := c.fetchTable(ctx, points)
	if err != nil {
		return nil, err
	}

	if len(resp.Durations) != 1 || len(resp.Durations[0]) != len(points) ||
		len(resp.Distances) != 1 || len(resp.Distances[0]) != len(points) {
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "table has wrong shape")
	}

	cacheEntries := make([]models.DistanceCacheEntry, 0, len(missing))
	for k, i := range missing {
		dist, dur := resp.Distances[0][k+1], resp.Durations[0][k+1]
		if dist == nil || dur == nil {
			results[i] = DistanceResult{Unreachable: true}
			continue
		}
		r := DistanceResult{DistanceMeters: *dist, DurationSecs: *dur}
		results[i] = r
		cacheEntries = append(cacheEntries, models.DistanceCacheEntry{
			Origin:         origin,
			Destination:    destinations[i],
			DistanceMeters: r.DistanceMeters,
			DurationSecs:   r.DurationSecs,
		})
	}

	if err := c.cache.SetBatch(ctx, cacheEntries); err != nil {
		log.Printf("[WARN] Failed to cache distances: entries=%d err=%v", len(cacheEntries), err)
	}

	return results, nil
}

func (c *osrmCalculator) fetchTable(ctx context.Context, points []models.Coordinates) (*osrmTableResponse, error) {
	n := len(points)
	coords := make([]string, n)
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}

	queryURL := fmt.Sprintf("%s/table/v1/%s/%s?sources=0&annotations=distance,duration",
		c.baseURL, c.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, models.NetworkFailure(serviceName, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] OSRM table request failed: points=%d err=%v", n, err)
		return nil, models.NetworkFailure(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[ERROR] OSRM table error: points=%d status=%d body=%s", n, resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, models.NewServiceError(serviceName, models.KindNetwork, "HTTP %d", resp.StatusCode)
		}
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tableResp osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tableResp); err != nil {
		log.Printf("[ERROR] Failed to decode OSRM table response: points=%d err=%v", n, err)
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "decode response: %v", err)
	}

	if tableResp.Code != "Ok" {
		log.Printf("[ERROR] OSRM table returned error code: points=%d code=%s", n, tableResp.Code)
		if tableResp.Code == "NoRoute" || tableResp.Code == "NoSegment" {
			return nil, models.NewServiceError(serviceName, models.KindNoRoute, "%s", tableResp.Code)
		}
		return nil, models.NewServiceError(serviceName, models.KindMalformed, "OSRM error: %s", tableResp.Code)
	}

	return &tableResp, nil
}
