package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

type itineraryRepository struct {
	store *Store
}

func (r *itineraryRepository) Get(ctx context.Context, id string) (*models.ItinerarySnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var data string
	err := r.store.db.QueryRowContext(ctx, "SELECT data FROM itineraries WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	var snap models.ItinerarySnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode itinerary %s: %w", id, err)
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
		return fmt.Errorf("failed to encode itinerary: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT OR REPLACE INTO itineraries (id, data, waypoint_count, updated_at)
	          VALUES (?, ?, ?, ?)`
	if _, err := r.store.db.ExecContext(ctx, query, snap.ID, string(data), len(snap.Waypoints), snap.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save itinerary: %w", err)
	}
	return nil
}

func (r *itineraryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, "DELETE FROM itineraries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *itineraryRepository) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := "SELECT id, waypoint_count, updated_at FROM itineraries ORDER BY updated_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list itineraries: %w", err)
	}
	defer rows.Close()

	result := []models.ItinerarySummary{}
	for rows.Next() {
		var s models.ItinerarySummary
		var updatedMillis int64
		if err := rows.Scan(&s.ID, &s.WaypointCount, &updatedMillis); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary: %w", err)
		}
		s.UpdatedAt = time.UnixMilli(updatedMillis).UTC()
		result = append(result, s)
	}
	return result, rows.Err()
}
