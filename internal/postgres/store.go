// Package postgres is the shared-database backend for multi-instance servers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"itinerary-planner/internal/database"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store implements database.DataStore on PostgreSQL through the pgx stdlib driver
type Store struct {
	db *sql.DB

	itineraries   *itineraryRepository
	distanceCache *distanceCacheRepository
	geocodeCache  *geocodeCacheRepository
}

// Open connects to databaseURL and verifies the connection
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}

	return db, nil
}

// New opens databaseURL and makes sure the schema exists
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[DB] Using PostgreSQL backend")
	return NewWithDB(db), nil
}

// NewWithDB wraps an already open connection pool
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:            db,
		itineraries:   &itineraryRepository{db: db},
		distanceCache: &distanceCacheRepository{db: db},
		geocodeCache:  &geocodeCacheRepository{db: db},
	}
}

// InitSchema creates the tables if they don't exist yet
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS itineraries (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		waypoint_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_itineraries_updated ON itineraries(updated_at DESC);`,
	`CREATE TABLE IF NOT EXISTS distance_cache (
		cache_key TEXT PRIMARY KEY,
		origin_lat DOUBLE PRECISION NOT NULL,
		origin_lng DOUBLE PRECISION NOT NULL,
		dest_lat DOUBLE PRECISION NOT NULL,
		dest_lng DOUBLE PRECISION NOT NULL,
		distance_meters DOUBLE PRECISION NOT NULL,
		duration_secs DOUBLE PRECISION NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS geocode_cache (
		query TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL
	);`,
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Itineraries() database.ItineraryRepository      { return s.itineraries }
func (s *Store) DistanceCache() database.DistanceCacheRepository { return s.distanceCache }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository   { return s.geocodeCache }
