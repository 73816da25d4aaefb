package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"

	"itinerary-planner/internal/distance"
	"itinerary-planner/internal/models"
)

// DistanceCall tracks a call to the distance calculator
type DistanceCall struct {
	Origin       models.Coordinates
	Destinations []models.Coordinates
}

// MockDistanceCalculator is a mock implementation for testing.
// It calculates Euclidean distance (scaled) between coordinates for deterministic tests.
type MockDistanceCalculator struct {
	ScaleFactor float64
	Overrides   map[string]*distance.DistanceResult
	Err         error

	mu    sync.Mutex
	Calls []DistanceCall
}

func NewMockDistanceCalculator() *MockDistanceCalculator {
	return &MockDistanceCalculator{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		Overrides:   make(map[string]*distance.DistanceResult),
	}
}

func (m *MockDistanceCalculator) makeKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", origin.Lat, origin.Lng, dest.Lat, dest.Lng)
}

// SetDistance sets a custom distance for a specific origin-destination pair
func (m *MockDistanceCalculator) SetDistance(origin, dest models.Coordinates, distMeters, durSecs float64) {
	m.Overrides[m.makeKey(origin, dest)] = &distance.DistanceResult{
		DistanceMeters: distMeters,
		DurationSecs:   durSecs,
	}
}

// SetUnreachable makes the pair report no path, as OSRM does with null cells
func (m *MockDistanceCalculator) SetUnreachable(origin, dest models.Coordinates) {
	m.Overrides[m.makeKey(origin, dest)] = &distance.DistanceResult{Unreachable: true}
}

func (m *MockDistanceCalculator) distanceTo(origin, dest models.Coordinates) distance.DistanceResult {
	if override, ok := m.Overrides[m.makeKey(origin, dest)]; ok {
		return *override
	}
	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	// Assume average speed of 50 km/h for duration
	return distance.DistanceResult{DistanceMeters: dist, DurationSecs: dist / 50000 * 3600}
}

// GetDistancesFromPoint returns distances from a single origin to multiple destinations
func (m *MockDistanceCalculator) GetDistancesFromPoint(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]distance.DistanceResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, DistanceCall{Origin: origin, Destinations: destinations})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	results := make([]distance.DistanceResult, len(destinations))
	for i, dest := range destinations {
		results[i] = m.distanceTo(origin, dest)
	}
	return results, nil
}

// CallCount returns how many times the calculator was called
func (m *MockDistanceCalculator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockDistanceCache is a mock implementation of DistanceCacheRepository for testing
type MockDistanceCache struct {
	mu      sync.Mutex
	entries map[string]models.DistanceCacheEntry
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{
		entries: make(map[string]models.DistanceCacheEntry),
	}
}

func (c *MockDistanceCache) cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

func (c *MockDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[c.cacheKey(origin, dest)]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (c *MockDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[c.cacheKey(e.Origin, e.Destination)] = e
	}
	return nil
}

func (c *MockDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.DistanceCacheEntry)
	return nil
}

// Count returns the number of entries in the cache
func (c *MockDistanceCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
