package database

import (
	"context"

	"itinerary-planner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Itineraries() ItineraryRepository
	DistanceCache() DistanceCacheRepository
	GeocodeCache() GeocodeCacheRepository
}

// ItineraryRepository is the key-value store for itinerary snapshots
type ItineraryRepository interface {
	Get(ctx context.Context, id string) (*models.ItinerarySnapshot, error)
	Put(ctx context.Context, snapshot *models.ItinerarySnapshot) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]models.ItinerarySummary, error)
}

// DistanceCacheRepository handles distance cache persistence
type DistanceCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
	Clear(ctx context.Context) error
}

// GeocodeCacheRepository maps normalized search queries to resolved places
type GeocodeCacheRepository interface {
	GetMany(ctx context.Context, queries []string) (map[string]models.GeocodeCacheEntry, error)
	PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error
}
