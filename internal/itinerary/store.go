// Package itinerary holds the ordered waypoint store and the drag reorder state machine.
package itinerary

import (
	"errors"
	"fmt"
	"log"

	"github.com/samber/lo"

	"itinerary-planner/internal/models"
)

var (
	// ErrNotFound is returned for an unknown waypoint id or an out of range index
	ErrNotFound = errors.New("waypoint not found")
	// ErrDuplicateID is returned when a waypoint id is already in the store
	ErrDuplicateID = errors.New("duplicate waypoint id")
	// ErrInvalidStay is returned for a negative stay duration
	ErrInvalidStay = errors.New("stay duration must be zero or more minutes")
	// ErrInvalidCoordinates is returned for a point outside WGS84 bounds
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	// ErrMissingID is returned when a waypoint has no id
	ErrMissingID = errors.New("waypoint id is required")
)

// ChangeKind names the mutation that produced a Change
type ChangeKind string

const (
	ChangeInserted  ChangeKind = "inserted"
	ChangeRemoved   ChangeKind = "removed"
	ChangeUpdated   ChangeKind = "updated"
	ChangeReordered ChangeKind = "reordered"
	ChangeReplaced  ChangeKind = "replaced"
)

// Change describes a committed store mutation
type Change struct {
	Kind    ChangeKind
	ID      string
	Len     int
	PrevLen int
}

// Listener is called synchronously after every committed mutation
type Listener func(Change)

// Store is the ordered list of waypoints. Slice order is itinerary order.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	waypoints []models.Waypoint
	listeners map[int]Listener
	nextSub   int
}

// NewStore creates a store seeded with the given waypoints
func NewStore(initial []models.Waypoint) (*Store, error) {
	s := &Store{listeners: make(map[int]Listener)}
	if err := validateList(initial); err != nil {
		return nil, err
	}
	s.waypoints = cloneWaypoints(initial)
	return s, nil
}

// Subscribe registers a listener and returns a func that removes it
func (s *Store) Subscribe(l Listener) func() {
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return func() {
		delete(s.listeners, id)
	}
}

func (s *Store) notify(c Change) {
	for _, l := range s.listeners {
		l(c)
	}
}

// Len returns the number of waypoints
func (s *Store) Len() int {
	return len(s.waypoints)
}

// List returns a copy of the waypoints in order
func (s *Store) List() []models.Waypoint {
	return cloneWaypoints(s.waypoints)
}

// IDs returns the waypoint ids in order
func (s *Store) IDs() []string {
	return lo.Map(s.waypoints, func(w models.Waypoint, _ int) string { return w.ID })
}

// IndexOf returns the position of id, or -1
func (s *Store) IndexOf(id string) int {
	_, idx, ok := lo.FindIndexOf(s.waypoints, func(w models.Waypoint) bool { return w.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Get returns the waypoint with the given id
func (s *Store) Get(id string) (models.Waypoint, error) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return models.Waypoint{}, ErrNotFound
	}
	return s.waypoints[idx], nil
}

// Insert adds a waypoint at the end, or at the front when atEnd is false
func (s *Store) Insert(wp models.Waypoint, atEnd bool) error {
	if err := validateWaypoint(wp); err != nil {
		return err
	}
	if s.IndexOf(wp.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, wp.ID)
	}

	prev := len(s.waypoints)
	if atEnd {
		s.waypoints = append(s.waypoints, wp)
	} else {
		s.waypoints = append([]models.Waypoint{wp}, s.waypoints...)
	}

	log.Printf("[STORE] Inserted waypoint: id=%s at_end=%t len=%d", wp.ID, atEnd, len(s.waypoints))
	s.notify(Change{Kind: ChangeInserted, ID: wp.ID, Len: len(s.waypoints), PrevLen: prev})
	return nil
}

// Remove deletes the waypoint with the given id
func (s *Store) Remove(id string) error {
	idx := s.IndexOf(id)
	if idx < 0 {
		return ErrNotFound
	}

	prev := len(s.waypoints)
	s.waypoints = append(s.waypoints[:idx:idx], s.waypoints[idx+1:]...)

	log.Printf("[STORE] Removed waypoint: id=%s len=%d", id, len(s.waypoints))
	s.notify(Change{Kind: ChangeRemoved, ID: id, Len: len(s.waypoints), PrevLen: prev})
	return nil
}

// Update applies a partial edit. Coordinates can't be changed.
func (s *Store) Update(id string, patch models.WaypointPatch) (models.Waypoint, error) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return models.Waypoint{}, ErrNotFound
	}
	if patch.StayMinutes != nil && *patch.StayMinutes < 0 {
		return models.Waypoint{}, ErrInvalidStay
	}

	wp := s.waypoints[idx]
	if patch.Name != nil {
		wp.Name = *patch.Name
	}
	if patch.StayMinutes != nil {
		wp.StayMinutes = *patch.StayMinutes
	}
	if patch.Notes != nil {
		wp.Notes = *patch.Notes
	}
	s.waypoints[idx] = wp

	s.notify(Change{Kind: ChangeUpdated, ID: id, Len: len(s.waypoints), PrevLen: len(s.waypoints)})
	return wp, nil
}

// Reorder moves the waypoint at from to position to. from == to is a no-op.
func (s *Store) Reorder(from, to int) error {
	n := len(s.waypoints)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrNotFound
	}
	if from == to {
		return nil
	}

	moved := s.waypoints[from]
	s.waypoints = append(s.waypoints[:from:from], s.waypoints[from+1:]...)
	s.waypoints = append(s.waypoints[:to], append([]models.Waypoint{moved}, s.waypoints[to:]...)...)

	s.notify(Change{Kind: ChangeReordered, ID: moved.ID, Len: n, PrevLen: n})
	return nil
}

// ReplaceAll swaps in a new ordered list
func (s *Store) ReplaceAll(list []models.Waypoint) error {
	if err := validateList(list); err != nil {
		return err
	}

	prev := len(s.waypoints)
	s.waypoints = cloneWaypoints(list)

	log.Printf("[STORE] Replaced waypoints: prev_len=%d len=%d", prev, len(s.waypoints))
	s.notify(Change{Kind: ChangeReplaced, Len: len(s.waypoints), PrevLen: prev})
	return nil
}

// restoreOrder puts the waypoints back into the order of ids. Waypoints not
// named in ids keep their relative order after the named ones.
func (s *Store) restoreOrder(ids []string) bool {
	byID := lo.KeyBy(s.waypoints, func(w models.Waypoint) string { return w.ID })
	out := make([]models.Waypoint, 0, len(s.waypoints))
	for _, id := range ids {
		if wp, ok := byID[id]; ok {
			out = append(out, wp)
			delete(byID, id)
		}
	}
	for _, wp := range s.waypoints {
		if _, ok := byID[wp.ID]; ok {
			out = append(out, wp)
		}
	}

	if sameOrder(s.waypoints, out) {
		return false
	}
	s.waypoints = out
	s.notify(Change{Kind: ChangeReordered, Len: len(out), PrevLen: len(out)})
	return true
}

func sameOrder(a, b []models.Waypoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func validateWaypoint(wp models.Waypoint) error {
	if wp.ID == "" {
		return ErrMissingID
	}
	if wp.StayMinutes < 0 {
		return ErrInvalidStay
	}
	if !wp.GetCoords().Valid() {
		return fmt.Errorf("%w: lat=%.6f lng=%.6f", ErrInvalidCoordinates, wp.Lat, wp.Lng)
	}
	return nil
}

func validateList(list []models.Waypoint) error {
	seen := make(map[string]struct{}, len(list))
	for _, wp := range list {
		if err := validateWaypoint(wp); err != nil {
			return err
		}
		if _, ok := seen[wp.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, wp.ID)
		}
		seen[wp.ID] = struct{}{}
	}
	return nil
}

func cloneWaypoints(in []models.Waypoint) []models.Waypoint {
	out := make([]models.Waypoint, len(in))
	copy(out, in)
	return out
}
