package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"itinerary-planner/internal/models"
)

// FileDistanceCacheData represents the structure of the cache file
type FileDistanceCacheData struct {
	Entries []models.DistanceCacheEntry `json:"entries"`
}

// FileDistanceCache is a file-based implementation of DistanceCacheRepository
type FileDistanceCache struct {
	filePath string
	data     *FileDistanceCacheData
	index    map[string]int // coordinate pair key -> position in Entries
	mu       sync.RWMutex
}

// NewFileDistanceCache opens or creates the cache file at filePath
func NewFileDistanceCache(filePath string) (*FileDistanceCache, error) {
	log.Printf("Using distance cache file: %s", filePath)

	cache := &FileDistanceCache{
		filePath: filePath,
		data:     &FileDistanceCacheData{Entries: []models.DistanceCacheEntry{}},
		index:    make(map[string]int),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	return cache, nil
}

func (c *FileDistanceCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c.data); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}
	if c.data.Entries == nil {
		c.data.Entries = []models.DistanceCacheEntry{}
	}

	c.index = make(map[string]int, len(c.data.Entries))
	for i, e := range c.data.Entries {
		c.index[makeCacheKey(e.Origin, e.Destination)] = i
	}

	log.Printf("Loaded distance cache: %d entries", len(c.data.Entries))
	return nil
}

func (c *FileDistanceCache) saveUnlocked() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := writeFileAtomic(c.filePath, data); err != nil {
		return fmt.Errorf("failed to save cache file: %w", err)
	}
	return nil
}

func (c *FileDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.index[makeCacheKey(origin, dest)]
	if !ok {
		return nil, nil
	}
	entryCopy := c.data.Entries[idx]
	return &entryCopy, nil
}

func (c *FileDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		key := makeCacheKey(entry.Origin, entry.Destination)
		if idx, ok := c.index[key]; ok {
			c.data.Entries[idx] = entry
			continue
		}
		c.data.Entries = append(c.data.Entries, entry)
		c.index[key] = len(c.data.Entries) - 1
	}

	return c.saveUnlocked()
}

func (c *FileDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries = []models.DistanceCacheEntry{}
	c.index = make(map[string]int)
	return c.saveUnlocked()
}

// Count returns the number of cached pairs
func (c *FileDistanceCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Entries)
}

// makeCacheKey creates a unique key for a coordinate pair
func makeCacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// CacheKey exposes the pair key so other backends share one format
func CacheKey(origin, dest models.Coordinates) string {
	return makeCacheKey(origin, dest)
}
