package models

import (
	"math"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

// Waypoint is a single itinerary stop. Lat/Lng never change after creation.
type Waypoint struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Name        string  `json:"name"`
	StayMinutes int     `json:"stay_minutes"`
	Notes       string  `json:"notes,omitempty"`
}

// GetCoords returns the coordinates of the waypoint
func (w *Waypoint) GetCoords() Coordinates {
	return Coordinates{Lat: w.Lat, Lng: w.Lng}
}

// WaypointPatch carries a partial edit. Nil fields are left unchanged.
type WaypointPatch struct {
	Name        *string `json:"name,omitempty"`
	StayMinutes *int    `json:"stay_minutes,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p WaypointPatch) Empty() bool {
	return p.Name == nil && p.StayMinutes == nil && p.Notes == nil
}

// Leg is the travel segment between two consecutive waypoints
type Leg struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RouteData is the routed path through the waypoints in their current order.
// len(Legs) is always one less than the number of waypoints it was computed for.
type RouteData struct {
	DistanceMeters  float64       `json:"distance_meters"`
	DurationSeconds float64       `json:"duration_seconds"`
	Geometry        []Coordinates `json:"geometry"`
	Legs            []Leg         `json:"legs"`
}

// Clone returns a deep copy so callers can't mutate shared route state
func (r *RouteData) Clone() *RouteData {
	if r == nil {
		return nil
	}
	out := &RouteData{
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
		Geometry:        make([]Coordinates, len(r.Geometry)),
		Legs:            make([]Leg, len(r.Legs)),
	}
	copy(out.Geometry, r.Geometry)
	copy(out.Legs, r.Legs)
	return out
}

// ItinerarySnapshot is the persisted form of an itinerary
type ItinerarySnapshot struct {
	ID           string     `json:"id"`
	Waypoints    []Waypoint `json:"waypoints"`
	StartMinutes int        `json:"start_minutes"`
	Route        *RouteData `json:"route,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ItinerarySummary is a listing row for stored itineraries
type ItinerarySummary struct {
	ID            string    `json:"id"`
	WaypointCount int       `json:"waypoint_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summarize builds the listing row for a snapshot
func (s *ItinerarySnapshot) Summarize() ItinerarySummary {
	return ItinerarySummary{
		ID:            s.ID,
		WaypointCount: len(s.Waypoints),
		UpdatedAt:     s.UpdatedAt,
	}
}

// Place is an entry in the recommendations catalog
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Rating   float64  `json:"rating"`
	Price    int      `json:"price"`
	Image    string   `json:"image"`
	Tags     []string `json:"tags"`
}

// GetCoords returns the coordinates of the place
func (p *Place) GetCoords() Coordinates {
	return Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// DistanceCacheEntry represents a cached distance lookup
type DistanceCacheEntry struct {
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
}

// RoundCoordinate rounds to 5 decimal places (~1m), the cache key precision
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// GeocodeCacheEntry is a resolved search query
type GeocodeCacheEntry struct {
	Query       string      `json:"query"`
	DisplayName string      `json:"display_name"`
	Coords      Coordinates `json:"coords"`
}
