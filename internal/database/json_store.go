package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"itinerary-planner/internal/models"
)

// JSONData represents the structure of the JSON file
type JSONData struct {
	Itineraries map[string]models.ItinerarySnapshot `json:"itineraries"`
	Geocodes    map[string]models.GeocodeCacheEntry `json:"geocodes"`
}

// JSONStore is a JSON file-based data store
type JSONStore struct {
	filePath string
	data     *JSONData
	mu       sync.RWMutex

	itineraryRepository     ItineraryRepository
	geocodeCacheRepository  GeocodeCacheRepository
	distanceCacheRepository DistanceCacheRepository
}

func (s *JSONStore) Itineraries() ItineraryRepository     { return s.itineraryRepository }
func (s *JSONStore) GeocodeCache() GeocodeCacheRepository { return s.geocodeCacheRepository }
func (s *JSONStore) DistanceCache() DistanceCacheRepository {
	return s.distanceCacheRepository
}

// NewJSONStore opens or creates the data file at filePath. The distance
// cache lives in its own file next to it.
func NewJSONStore(filePath string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	log.Printf("Using JSON data file: %s", filePath)

	distanceCache, err := NewFileDistanceCache(filepath.Join(filepath.Dir(filePath), DistanceCacheFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize distance cache: %w", err)
	}

	store := &JSONStore{
		filePath: filePath,
		data:     &JSONData{},
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	store.itineraryRepository = &jsonItineraryRepository{store: store}
	store.geocodeCacheRepository = &jsonGeocodeCacheRepository{store: store}
	store.distanceCacheRepository = distanceCache

	return store, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.data = &JSONData{
			Itineraries: map[string]models.ItinerarySnapshot{},
			Geocodes:    map[string]models.GeocodeCacheEntry{},
		}
		return s.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	if err := json.Unmarshal(data, s.data); err != nil {
		return fmt.Errorf("failed to parse data file: %w", err)
	}

	if s.data.Itineraries == nil {
		s.data.Itineraries = map[string]models.ItinerarySnapshot{}
	}
	if s.data.Geocodes == nil {
		s.data.Geocodes = map[string]models.GeocodeCacheEntry{}
	}

	log.Printf("Loaded JSON data: itineraries=%d geocodes=%d", len(s.data.Itineraries), len(s.data.Geocodes))
	return nil
}

func (s *JSONStore) saveUnlocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := writeFileAtomic(s.filePath, data); err != nil {
		return fmt.Errorf("failed to save data file: %w", err)
	}
	return nil
}

// Close flushes pending data
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUnlocked()
}

// HealthCheck verifies the data file is still readable
func (s *JSONStore) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("data file unavailable: %w", err)
	}
	return nil
}

type jsonItineraryRepository struct {
	store *JSONStore
}

func (r *jsonItineraryRepository) Get(ctx context.Context, id string) (*models.ItinerarySnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	snap, ok := r.store.data.Itineraries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &snap, nil
}

func (r *jsonItineraryRepository) Put(ctx context.Context, snapshot *models.ItinerarySnapshot) error {
	if snapshot.ID == "" {
		return ErrInvalidID
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snap := *snapshot
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	r.store.data.Itineraries[snap.ID] = snap
	return r.store.saveUnlocked()
}

func (r *jsonItineraryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.data.Itineraries[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.data.Itineraries, id)
	return r.store.saveUnlocked()
}

func (r *jsonItineraryRepository) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]models.ItinerarySummary, 0, len(r.store.data.Itineraries))
	for _, snap := range r.store.data.Itineraries {
		result = append(result, snap.Summarize())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type jsonGeocodeCacheRepository struct {
	store *JSONStore
}

func (r *jsonGeocodeCacheRepository) GetMany(ctx context.Context, queries []string) (map[string]models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]models.GeocodeCacheEntry, len(queries))
	for _, q := range queries {
		if e, ok := r.store.data.Geocodes[q]; ok {
			out[q] = e
		}
	}
	return out, nil
}

func (r *jsonGeocodeCacheRepository) PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, e := range entries {
		r.store.data.Geocodes[e.Query] = e
	}
	return r.store.saveUnlocked()
}
