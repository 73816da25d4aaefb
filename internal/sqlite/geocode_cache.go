package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"itinerary-planner/internal/models"
)

type geocodeCacheRepository struct {
	store *Store
}

func (r *geocodeCacheRepository) GetMany(ctx context.Context, queries []string) (map[string]models.GeocodeCacheEntry, error) {
	out := make(map[string]models.GeocodeCacheEntry, len(queries))
	if len(queries) == 0 {
		return out, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stmt, err := r.store.db.PrepareContext(ctx, "SELECT display_name, lat, lng FROM geocode_cache WHERE query = ?")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare geocode query: %w", err)
	}
	defer stmt.Close()

	for _, q := range queries {
		e := models.GeocodeCacheEntry{Query: q}
		err := stmt.QueryRowContext(ctx, q).Scan(&e.DisplayName, &e.Coords.Lat, &e.Coords.Lng)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read geocode cache: %w", err)
		}
		out[q] = e
	}
	return out, nil
}

func (r *geocodeCacheRepository) PutMany(ctx context.Context, entries []models.GeocodeCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO geocode_cache (query, display_name, lat, lng)
	                                     VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Query, e.DisplayName, e.Coords.Lat, e.Coords.Lng); err != nil {
			return fmt.Errorf("failed to cache geocode %q: %w", e.Query, err)
		}
	}

	return tx.Commit()
}
