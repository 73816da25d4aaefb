// Package planner ties the waypoint store, the routing services and the
// schedule together into an editable itinerary session.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/geocoding"
	"itinerary-planner/internal/itinerary"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/places"
	"itinerary-planner/internal/platform/obs"
	"itinerary-planner/internal/routing"
	"itinerary-planner/internal/schedule"
)

// DefaultStayMinutes is the stay given to every newly added waypoint
const DefaultStayMinutes = 60

// Config holds the collaborators shared by all sessions
type Config struct {
	Router   routing.Service
	Geocoder geocoding.Geocoder
	// Repo persists snapshots. Nil keeps sessions in memory only.
	Repo database.ItineraryRepository

	RequestTimeout time.Duration
	NoticeTTL      time.Duration
	DefaultStart   int
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 4 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Notice is a transient message about a failed operation
type Notice struct {
	Message   string             `json:"message"`
	Kind      models.FailureKind `json:"kind"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// Session is one editable itinerary. All methods are safe for concurrent use.
type Session struct {
	id  string
	cfg *Config

	mu           sync.Mutex
	store        *itinerary.Store
	drag         *itinerary.DragReconciler
	startMinutes int
	route        *models.RouteData
	notice       *Notice
	updatedAt    time.Time

	// seq is the tag of the latest issued routing request. done is closed
	// when that request resolves. routedIDs is the order that request was
	// made for.
	seq       uint64
	done      chan struct{}
	routedIDs []string

	// Set when a store change or a save was held back by an active drag
	deferredRoute bool
	deferredSave  bool

	muted  bool
	closed bool
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newSession(id string, cfg *Config, snap *models.ItinerarySnapshot) (*Session, error) {
	var initial []models.Waypoint
	start := cfg.DefaultStart
	var route *models.RouteData
	var updated time.Time
	if snap != nil {
		initial = snap.Waypoints
		start = snap.StartMinutes
		route = snap.Route.Clone()
		updated = snap.UpdatedAt
	}

	store, err := itinerary.NewStore(initial)
	if err != nil {
		return nil, fmt.Errorf("restore itinerary %s: %w", id, err)
	}

	s := &Session{
		id:           id,
		cfg:          cfg,
		store:        store,
		startMinutes: start,
		route:        route,
		updatedAt:    updated,
		done:         closedChan(),
	}
	s.drag = itinerary.NewDragReconciler(store, s.dispatchLocked)
	store.Subscribe(s.onChange)

	n := store.Len()
	if s.route != nil && (n < routing.MinRoutePoints || len(s.route.Legs) != n-1) {
		s.route = nil
	}
	if s.route != nil {
		s.routedIDs = store.IDs()
	}
	if s.route == nil && n >= routing.MinRoutePoints {
		s.mu.Lock()
		s.dispatchLocked()
		s.mu.Unlock()
	}
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// onChange runs synchronously inside store mutations, which only happen
// with s.mu held. While a drag is active no route is requested; the order
// is settled when the gesture ends.
func (s *Session) onChange(c itinerary.Change) {
	if s.muted {
		return
	}
	if c.Len < routing.MinRoutePoints {
		s.clearRouteLocked()
		return
	}
	if s.drag.Active() {
		if c.Kind != itinerary.ChangeReordered {
			s.deferredRoute = true
		}
		return
	}
	s.dispatchLocked()
}

// clearRouteLocked drops the route and invalidates any in-flight response
func (s *Session) clearRouteLocked() {
	s.seq++
	s.route = nil
	s.routedIDs = nil
	s.done = closedChan()
}

// finishDragLocked routes the order a gesture left behind if the last
// request was made for a different order or a change was held back.
func (s *Session) finishDragLocked() {
	deferredRoute, deferredSave := s.deferredRoute, s.deferredSave
	s.deferredRoute, s.deferredSave = false, false

	if s.store.Len() < routing.MinRoutePoints {
		if s.route != nil {
			s.clearRouteLocked()
		}
	} else if deferredRoute || !slices.Equal(s.routedIDs, s.store.IDs()) {
		s.dispatchLocked()
		deferredSave = true
	}
	if deferredSave {
		s.persistLocked()
	}
}

// dispatchLocked issues a route request for the current order. The response
// is applied only if no newer request has been issued by then.
func (s *Session) dispatchLocked() {
	s.seq++
	tag := s.seq
	ordered := s.store.List()
	done := make(chan struct{})
	s.done = done
	s.routedIDs = s.store.IDs()
	s.deferredRoute = false

	log.Printf("[SESSION] Route requested: id=%s tag=%d waypoints=%d", s.id, tag, len(ordered))

	go func() {
		defer close(done)
		ctx := obs.WithRequestID(context.Background(), "")
		route, err := callWithTimeout(ctx, s.cfg.RequestTimeout, "routing", func(ctx context.Context) (*models.RouteData, error) {
			return s.cfg.Router.FetchRoute(ctx, ordered)
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		if tag != s.seq || s.closed {
			log.Printf("[SESSION] Dropping stale route: id=%s tag=%d latest=%d", s.id, tag, s.seq)
			return
		}
		if err != nil {
			log.Printf("[ERROR] Route recompute failed: id=%s tag=%d err=%v", s.id, tag, err)
			s.setNoticeLocked(models.KindOf(err), "Couldn't calculate a route between these stops.", s.cfg.NoticeTTL)
			return
		}
		s.route = route
		s.notice = nil
		s.persistLocked()
	}()
}

// callWithTimeout bounds fn by timeout even if fn ignores its context
func callWithTimeout[T any](parent context.Context, timeout time.Duration, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, models.NetworkFailure(service, ctx.Err())
	}
}

func (s *Session) setNoticeLocked(kind models.FailureKind, message string, ttl time.Duration) {
	s.notice = &Notice{
		Message:   message,
		Kind:      kind,
		ExpiresAt: s.cfg.Now().Add(ttl),
	}
}

func (s *Session) shortTTL() time.Duration { return s.cfg.NoticeTTL * 3 / 4 }
func (s *Session) longTTL() time.Duration  { return s.cfg.NoticeTTL * 3 / 2 }

func (s *Session) persistLocked() {
	s.updatedAt = s.cfg.Now().UTC()
	if s.drag.Active() {
		s.deferredSave = true
		return
	}
	if s.cfg.Repo == nil || s.closed {
		return
	}

	snap := s.snapshotLocked()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	if err := s.cfg.Repo.Put(ctx, snap); err != nil {
		log.Printf("[ERROR] Failed to persist itinerary: id=%s err=%v", s.id, err)
	}
}

func (s *Session) snapshotLocked() *models.ItinerarySnapshot {
	return &models.ItinerarySnapshot{
		ID:           s.id,
		Waypoints:    s.store.List(),
		StartMinutes: s.startMinutes,
		Route:        s.route.Clone(),
		UpdatedAt:    s.updatedAt,
	}
}

// Settle waits until the latest issued routing request has resolved
func (s *Session) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		current := s.done
		s.mu.Unlock()
		if current == done {
			return nil
		}
	}
}

func (s *Session) insertLocked(name string, coords models.Coordinates) (models.Waypoint, error) {
	wp := models.Waypoint{
		ID:          uuid.NewString(),
		Lat:         coords.Lat,
		Lng:         coords.Lng,
		Name:        name,
		StayMinutes: DefaultStayMinutes,
	}
	if err := s.store.Insert(wp, true); err != nil {
		return models.Waypoint{}, err
	}
	s.persistLocked()
	log.Printf("[SESSION] Waypoint added: id=%s waypoint=%s name=%q len=%d", s.id, wp.ID, wp.Name, s.store.Len())
	return wp, nil
}

// AddWaypoint appends a map-clicked point named after its position
func (s *Session) AddWaypoint(coords models.Coordinates) (models.Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(fmt.Sprintf("Stop %d", s.store.Len()+1), coords)
}

// AddFromSearch geocodes query and appends the best match
func (s *Session) AddFromSearch(ctx context.Context, query string) (models.Waypoint, error) {
	result, err := callWithTimeout(ctx, s.cfg.RequestTimeout, "geocoding", func(ctx context.Context) (*geocoding.GeocodingResult, error) {
		return s.cfg.Geocoder.Search(ctx, query)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			s.setNoticeLocked(models.KindNotFound, "Place not found, try another name.", s.shortTTL())
		} else {
			s.setNoticeLocked(models.KindOf(err), "Search is unavailable right now.", s.cfg.NoticeTTL)
		}
		return models.Waypoint{}, err
	}

	name := result.Name()
	if name == "" {
		name = fmt.Sprintf("Stop %d", s.store.Len()+1)
	}
	return s.insertLocked(name, result.Coords)
}

// AddPlace appends a recommended place
func (s *Session) AddPlace(placeID string) (models.Waypoint, error) {
	place, err := places.Find(placeID)
	if err != nil {
		return models.Waypoint{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(place.Name, place.GetCoords())
}

// Remove deletes a waypoint
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(id); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// Update edits a waypoint's name, stay or notes
func (s *Session) Update(id string, patch models.WaypointPatch) (models.Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wp, err := s.store.Update(id, patch)
	if err != nil {
		return models.Waypoint{}, err
	}
	s.persistLocked()
	return wp, nil
}

// Reorder moves the waypoint at from to to
func (s *Session) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag.Active() {
		return itinerary.ErrDragInProgress
	}
	if err := s.store.Reorder(from, to); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// Move swaps a waypoint with its neighbour. Moving past either end is a no-op.
func (s *Session) Move(id string, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag.Active() {
		return itinerary.ErrDragInProgress
	}
	idx := s.store.IndexOf(id)
	if idx < 0 {
		return itinerary.ErrNotFound
	}
	target := idx + 1
	if up {
		target = idx - 1
	}
	if target < 0 || target >= s.store.Len() {
		return nil
	}
	if err := s.store.Reorder(idx, target); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// DragStart begins a drag gesture on the waypoint at index
func (s *Session) DragStart(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Start(index)
}

// DragOver moves the dragged waypoint to the hovered index
func (s *Session) DragOver(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Over(index)
}

// DragEnd drops the waypoint. A changed order is persisted and routed once.
func (s *Session) DragEnd() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.drag.End()
	if err != nil {
		return false, err
	}
	if changed {
		s.deferredSave = true
	}
	s.finishDragLocked()
	return changed, nil
}

// DragCancel abandons the gesture and restores the pre-drag order
func (s *Session) DragCancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.drag.Cancel(); err != nil {
		return err
	}
	s.finishDragLocked()
	return nil
}

// SetStartTime sets the trip start from an HH:MM clock string
func (s *Session) SetStartTime(clock string) error {
	minutes, err := schedule.ParseClock(clock)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startMinutes = minutes
	s.persistLocked()
	return nil
}

// Optimize asks the solver for a shorter visiting order and, if the answer
// is still current, replaces both the order and the route with it.
func (s *Session) Optimize(ctx context.Context) error {
	s.mu.Lock()
	if s.drag.Active() {
		s.mu.Unlock()
		return itinerary.ErrDragInProgress
	}
	waypoints := s.store.List()
	if len(waypoints) < routing.MinOptimizePoints {
		s.setNoticeLocked(models.KindInsufficientPoints, "Add at least 3 stops to optimize.", s.shortTTL())
		s.mu.Unlock()
		return models.NewServiceError("optimization", models.KindInsufficientPoints,
			"need at least %d waypoints, have %d", routing.MinOptimizePoints, len(waypoints))
	}
	// The route request in flight, if any, keeps its tag. Any change made
	// while the solver works bumps seq and makes this answer stale.
	tag := s.seq
	s.mu.Unlock()

	log.Printf("[SESSION] Optimize requested: id=%s tag=%d waypoints=%d", s.id, tag, len(waypoints))
	res, err := callWithTimeout(ctx, s.cfg.RequestTimeout, "optimization", func(ctx context.Context) (*routing.OptimizedRoute, error) {
		return s.cfg.Router.FetchOptimizedRoute(ctx, waypoints)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if tag != s.seq || s.closed {
		log.Printf("[SESSION] Dropping stale optimization: id=%s tag=%d latest=%d", s.id, tag, s.seq)
		return nil
	}
	if err != nil {
		log.Printf("[ERROR] Optimization failed: id=%s err=%v", s.id, err)
		kind := models.KindOf(err)
		if kind == models.KindSolverBusy || kind == models.KindNetwork {
			s.setNoticeLocked(kind, "Optimization failed, the server may be busy.", s.cfg.NoticeTTL)
		} else {
			s.setNoticeLocked(kind, "Optimization failed: "+failureReason(err), s.longTTL())
		}
		return err
	}
	if s.drag.Active() {
		log.Printf("[SESSION] Dropping optimization that landed mid-drag: id=%s tag=%d", s.id, tag)
		return nil
	}

	current := lo.KeyBy(s.store.List(), func(wp models.Waypoint) string { return wp.ID })
	order := make([]models.Waypoint, 0, len(res.Order))
	for _, wp := range res.Order {
		cur, ok := current[wp.ID]
		if !ok {
			log.Printf("[SESSION] Dropping optimization for a changed itinerary: id=%s tag=%d", s.id, tag)
			return nil
		}
		order = append(order, cur)
	}
	if len(order) != len(current) {
		log.Printf("[SESSION] Dropping optimization for a changed itinerary: id=%s tag=%d", s.id, tag)
		return nil
	}

	s.muted = true
	err = s.store.ReplaceAll(order)
	s.muted = false
	if err != nil {
		return fmt.Errorf("apply optimized order: %w", err)
	}
	s.seq++
	s.route = res.Route.Clone()
	s.routedIDs = s.store.IDs()
	s.notice = nil
	s.persistLocked()
	log.Printf("[SESSION] Optimization applied: id=%s tag=%d distance=%.0f", s.id, tag, s.route.DistanceMeters)
	return nil
}

func failureReason(err error) string {
	var se *models.ServiceError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}

// close marks the session deleted so late responses are not persisted
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.clearRouteLocked()
}
