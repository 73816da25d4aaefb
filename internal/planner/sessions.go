package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/models"
)

// ErrSessionNotFound is returned for an unknown itinerary id
var ErrSessionNotFound = errors.New("itinerary not found")

// SessionStore keeps live sessions in memory and rehydrates persisted
// itineraries on first access.
type SessionStore struct {
	cfg      Config
	sessions map[string]*Session
	mu       sync.Mutex
}

// NewSessionStore creates a session store
func NewSessionStore(cfg Config) *SessionStore {
	cfg = cfg.withDefaults()
	return &SessionStore{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts an empty itinerary
func (s *SessionStore) Create(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	session, err := newSession(id, &s.cfg, nil)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.persistLocked()
	session.mu.Unlock()

	s.sessions[id] = session
	log.Printf("[SESSION] Created itinerary session: id=%s", id)
	return session, nil
}

// Get returns the live session for id, loading it from the repository if
// this process hasn't seen it yet.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	if s.cfg.Repo == nil {
		return nil, ErrSessionNotFound
	}

	snap, err := s.cfg.Repo.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load itinerary %s: %w", id, err)
	}

	session, err := newSession(id, &s.cfg, snap)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = session
	log.Printf("[SESSION] Restored itinerary session: id=%s waypoints=%d", id, len(snap.Waypoints))
	return session, nil
}

// List returns stored itineraries newest first. Without a repository the
// live sessions are listed.
func (s *SessionStore) List(ctx context.Context, limit int) ([]models.ItinerarySummary, error) {
	if s.cfg.Repo != nil {
		return s.cfg.Repo.List(ctx, limit)
	}

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	out := make([]models.ItinerarySummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Snapshot().Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes an itinerary from memory and the repository
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, live := s.sessions[id]
	if live {
		session.close()
		delete(s.sessions, id)
	}

	if s.cfg.Repo != nil {
		err := s.cfg.Repo.Delete(ctx, id)
		if errors.Is(err, database.ErrNotFound) && !live {
			return ErrSessionNotFound
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("delete itinerary %s: %w", id, err)
		}
	} else if !live {
		return ErrSessionNotFound
	}

	log.Printf("[SESSION] Deleted itinerary session: id=%s", id)
	return nil
}
