package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/platform/obs"
)

type distanceCacheRepository struct {
	db *sql.DB
}

func (r *distanceCacheRepository) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	var e models.DistanceCacheEntry
	err := r.db.QueryRowContext(ctx, `
	SELECT origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs
	FROM distance_cache
	WHERE cache_key = $1;
	`, database.CacheKey(origin, dest)).Scan(
		&e.Origin.Lat, &e.Origin.Lng,
		&e.Destination.Lat, &e.Destination.Lng,
		&e.DistanceMeters, &e.DurationSecs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get distance cache: %w", err)
	}
	return &e, nil
}

func (r *distanceCacheRepository) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert distance cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO distance_cache (cache_key, origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (cache_key) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_secs = EXCLUDED.duration_secs;
	`)
	if err != nil {
		return fmt.Errorf("insert distance cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, database.CacheKey(e.Origin, e.Destination),
			models.RoundCoordinate(e.Origin.Lat), models.RoundCoordinate(e.Origin.Lng),
			models.RoundCoordinate(e.Destination.Lat), models.RoundCoordinate(e.Destination.Lng),
			e.DistanceMeters, e.DurationSecs)
		if err != nil {
			return fmt.Errorf("insert distance cache: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert distance cache commit: %w", err)
	}
	return nil
}

func (r *distanceCacheRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM distance_cache`); err != nil {
		return fmt.Errorf("clear distance cache: %w", err)
	}
	return nil
}

type geocodeCacheRepository struct {
	db *sql.DB
}

func (r *geocodeCacheRepository) GetMany(ctx context.Context, queries []string) (_ map[string]models.GeocodeCacheEntry, err error) {
	defer obs.Time(ctx, "postgres.geocode.GetMany")(&err)

	uniq := uniqueQueries(queries)
	if len(uniq) == 0 {
		return map[string]models.GeocodeCacheEntry{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
	SELECT query, display_name, lat, lng
	FROM geocode_cache
	WHERE query = ANY($1::text[]);
	`, uniq)
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: query geocode_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.GeocodeCacheEntry, len(uniq))
	for rows.Next() {
		var e models.GeocodeCacheEntry
		if err := rows.Scan(&e.Query, &e.DisplayName, &e.Coords.Lat, &e.Coords.Lng); err != nil {
			return nil, fmt.Errorf("get geocode cache: scan rows: %w", err)
		}
		out[e.Query] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocode cache: row iteration: %w", err)
	}
	return out, nil
}

func (r *geocodeCacheRepository) PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert geocode cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO geocode_cache (query, display_name, lat, lng)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (query) DO UPDATE
	SET display_name = EXCLUDED.display_name,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng;
	`)
	if err != nil {
		return fmt.Errorf("insert geocode cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if strings.TrimSpace(e.Query) == "" {
			return fmt.Errorf("insert geocode cache: empty query key")
		}
		if _, err := stmt.ExecContext(ctx, e.Query, e.DisplayName, e.Coords.Lat, e.Coords.Lng); err != nil {
			return fmt.Errorf("insert geocode cache query=%q: %w", e.Query, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert geocode cache commit: %w", err)
	}
	return nil
}

// uniqueQueries trims and dedupes keys, dropping blanks
func uniqueQueries(queries []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		uniq = append(uniq, q)
	}
	return uniq
}
