package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

// MockGeocodeCache is an in-memory GeocodeCacheRepository
type MockGeocodeCache struct {
	mu      sync.Mutex
	entries map[string]models.GeocodeCacheEntry
	GetErr  error
	Gets    int
	Puts    int
}

func NewMockGeocodeCache() *MockGeocodeCache {
	return &MockGeocodeCache{entries: make(map[string]models.GeocodeCacheEntry)}
}

func (c *MockGeocodeCache) GetMany(ctx context.Context, queries []string) (map[string]models.GeocodeCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	out := make(map[string]models.GeocodeCacheEntry)
	for _, q := range queries {
		if e, ok := c.entries[q]; ok {
			out[q] = e
		}
	}
	return out, nil
}

func (c *MockGeocodeCache) PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Puts++
	for _, e := range entries {
		c.entries[e.Query] = e
	}
	return nil
}

// Entry returns a cached entry by normalized query
func (c *MockGeocodeCache) Entry(query string) (models.GeocodeCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[query]
	return e, ok
}

// MemoryItineraryRepo is an in-memory ItineraryRepository
type MemoryItineraryRepo struct {
	mu     sync.Mutex
	snaps  map[string]models.ItinerarySnapshot
	PutErr error
	Puts   int
}

func NewMemoryItineraryRepo() *MemoryItineraryRepo {
	return &MemoryItineraryRepo{snaps: make(map[string]models.ItinerarySnapshot)}
}

func (r *MemoryItineraryRepo) Get(ctx context.Context, id string) (*models.ItinerarySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	snap.Waypoints = append([]models.Waypoint(nil), snap.Waypoints...)
	snap.Route = snap.Route.Clone()
	return &snap, nil
}

func (r *MemoryItineraryRepo) Put(ctx context.Context, snapshot *models.ItinerarySnapshot) error {
	if snapshot.ID == "" {
		return database.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Puts++
	if r.PutErr != nil {
		return r.PutErr
	}
	snap := *snapshot
	snap.Waypoints = append([]models.Waypoint(nil), snapshot.Waypoints...)
	snap.Route = snapshot.Route.Clone()
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	r.snaps[snap.ID] = snap
	return nil
}

func (r *MemoryItineraryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snaps[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.snaps, id)
	return nil
}

func (r *MemoryItineraryRepo) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ItinerarySummary, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutCount returns how many times Put was called
func (r *MemoryItineraryRepo) PutCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Puts
}
