package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/platform/obs"
)

type itineraryRepository struct {
	db *sql.DB
}

func (r *itineraryRepository) Get(ctx context.Context, id string) (_ *models.ItinerarySnapshot, err error) {
	defer obs.Time(ctx, "postgres.itineraries.Get")(&err)

	var data []byte
	err = r.db.QueryRowContext(ctx, `SELECT data FROM itineraries WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (r *itineraryRepository) Put(ctx context.Context, snapshot *models.ItinerarySnapshot) (err error) {
	defer obs.Time(ctx, "postgres.itineraries.Put")(&err)

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

	_, err = r.db.ExecContext(ctx, `
	INSERT INTO itineraries (id, data, waypoint_count, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET data = EXCLUDED.data,
		waypoint_count = EXCLUDED.waypoint_count,
		updated_at = EXCLUDED.updated_at;
	`, snap.ID, data, len(snap.Waypoints), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put itinerary id=%q: %w", snap.ID, err)
	}
	return nil
}

func (r *itineraryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete itinerary: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete itinerary: rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *itineraryRepository) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	q := `SELECT id, waypoint_count, updated_at FROM itineraries ORDER BY updated_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}
	defer rows.Close()

	out := []models.ItinerarySummary{}
	for rows.Next() {
		var s models.ItinerarySummary
		if err := rows.Scan(&s.ID, &s.WaypointCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list itineraries: scan rows: %w", err)
		}
		s.UpdatedAt = s.UpdatedAt.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list itineraries: row iteration: %w", err)
	}
	return out, nil
}
