// Package redisstore keeps itineraries and lookup caches in Redis, for
// deployments where several servers share session state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

const (
	itineraryPrefix = "itinerary:"
	itineraryIndex  = "itineraries:index"
	geocodePrefix   = "geocode:"
	distancePrefix  = "distance:"

	// DefaultTTL bounds how long an untouched itinerary lives
	DefaultTTL = 30 * 24 * time.Hour
	cacheTTL   = 7 * 24 * time.Hour
)

// Store implements database.DataStore on a Redis client
type Store struct {
	client *redis.Client
	ttl    time.Duration

	itineraries   *itineraryRepository
	distanceCache *distanceCacheRepository
	geocodeCache  *geocodeCacheRepository
}

// New connects to the server at addr, pings it and returns a store
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("verify redis connection: %w", err)
	}

	log.Printf("[DB] Using Redis backend: addr=%s db=%d", addr, db)
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client. ttl <= 0 uses DefaultTTL.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{client: client, ttl: ttl}
	s.itineraries = &itineraryRepository{store: s}
	s.distanceCache = &distanceCacheRepository{store: s}
	s.geocodeCache = &geocodeCacheRepository{store: s}
	return s
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Itineraries() database.ItineraryRepository      { return s.itineraries }
func (s *Store) DistanceCache() database.DistanceCacheRepository { return s.distanceCache }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository   { return s.geocodeCache }

type itineraryRepository struct {
	store *Store
}

func (r *itineraryRepository) Get(ctx context.Context, id string) (*models.ItinerarySnapshot, error) {
	data, err := r.store.client.Get(ctx, itineraryPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get itinerary: %w", err)
	}

	var snap models.ItinerarySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("get itinerary: decode %s: %w", id, err)
	}
	return &snap, nil
}

func (r *itineraryRepository) Put(ctx context.Context, snapshot *models.ItinerarySnapshot) error {
	if snapshot.ID == "" {
		return database.ErrInvalidID
	}

	snap := *snapshot
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("put itinerary: encode: %w", err)
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itineraryPrefix+snap.ID, data, r.store.ttl)
		pipe.ZAdd(ctx, itineraryIndex, redis.Z{
			Score:  float64(snap.UpdatedAt.UnixMilli()),
			Member: snap.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put itinerary id=%q: %w", snap.ID, err)
	}
	return nil
}

func (r *itineraryRepository) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, itineraryPrefix+id)
		pipe.ZRem(ctx, itineraryIndex, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete itinerary: %w", err)
	}
	if del.Val() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// List reads the index newest first. Index members whose key has expired
// are pruned as they are found.
func (r *itineraryRepository) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	ids, err := r.store.client.ZRevRange(ctx, itineraryIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}

	out := []models.ItinerarySummary{}
	var stale []any
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		snap, err := r.Get(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snap.Summarize())
	}

	if len(stale) > 0 {
		if err := r.store.client.ZRem(ctx, itineraryIndex, stale...).Err(); err != nil {
			log.Printf("[WARN] Failed to prune itinerary index: err=%v", err)
		}
	}
	return out, nil
}

type distanceCacheRepository struct {
	store *Store
}

func (r *distanceCacheRepository) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	data, err := r.store.client.Get(ctx, distancePrefix+database.CacheKey(origin, dest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get distance cache: %w", err)
	}

	var e models.DistanceCacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("get distance cache: decode: %w", err)
	}
	return &e, nil
}

func (r *distanceCacheRepository) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := r.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			pipe.Set(ctx, distancePrefix+database.CacheKey(e.Origin, e.Destination), data, cacheTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set distance cache: %w", err)
	}
	return nil
}

func (r *distanceCacheRepository) Clear(ctx context.Context) error {
	iter := r.store.client.Scan(ctx, 0, distancePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("clear distance cache: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear distance cache: %w", err)
	}
	return nil
}

type geocodeCacheRepository struct {
	store *Store
}

func (r *geocodeCacheRepository) GetMany(ctx context.Context, queries []string) (map[string]models.GeocodeCacheEntry, error) {
	out := make(map[string]models.GeocodeCacheEntry, len(queries))
	if len(queries) == 0 {
		return out, nil
	}

	keys := make([]string, len(queries))
	for i, q := range queries {
		keys[i] = geocodePrefix + q
	}

	vals, err := r.store.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e models.GeocodeCacheEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			log.Printf("[WARN] Dropping corrupt geocode cache entry: query=%q err=%v", queries[i], err)
			continue
		}
		out[queries[i]] = e
	}
	return out, nil
}

func (r *geocodeCacheRepository) PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := r.store.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			pipe.Set(ctx, geocodePrefix+e.Query, data, cacheTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put geocode cache: %w", err)
	}
	return nil
}
