package planner

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samber/lo"

	"itinerary-planner/internal/models"
	"itinerary-planner/internal/schedule"
)

// ScheduleRow is one waypoint's computed times, raw and formatted
type ScheduleRow struct {
	schedule.Entry
	ArrivalTime   string `json:"arrival_time"`
	DepartureTime string `json:"departure_time"`
	DayOffset     int    `json:"day_offset"`
}

// View is the full state of an itinerary as the UI renders it
type View struct {
	ID        string            `json:"id"`
	Waypoints []models.Waypoint `json:"waypoints"`
	Route     *models.RouteData `json:"route"`
	StartTime string            `json:"start_time"`
	Schedule  []ScheduleRow     `json:"schedule"`
	Summary   schedule.Summary  `json:"summary"`
	Notice    *Notice           `json:"notice"`
	Dragging  bool              `json:"dragging"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// View returns the current state. The schedule is derived on every call.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() *View {
	waypoints := s.store.List()
	var legs []models.Leg
	if s.route != nil {
		legs = s.route.Legs
	}

	rows := lo.Map(schedule.Compute(waypoints, legs, s.startMinutes), func(e schedule.Entry, _ int) ScheduleRow {
		return ScheduleRow{
			Entry:         e,
			ArrivalTime:   schedule.FormatClock(e.Arrival),
			DepartureTime: schedule.FormatClock(e.Departure),
			DayOffset:     schedule.DayOffset(e.Arrival),
		}
	})

	var notice *Notice
	if s.notice != nil && s.cfg.Now().Before(s.notice.ExpiresAt) {
		n := *s.notice
		notice = &n
	}

	return &View{
		ID:        s.id,
		Waypoints: waypoints,
		Route:     s.route.Clone(),
		StartTime: schedule.FormatClock(s.startMinutes),
		Schedule:  rows,
		Summary:   schedule.Summarize(waypoints, s.route, s.startMinutes),
		Notice:    notice,
		Dragging:  s.drag.Active(),
		UpdatedAt: s.updatedAt,
	}
}

// Snapshot returns the persisted form of the session
func (s *Session) Snapshot() *models.ItinerarySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// GeoJSON exports the route line and the stops as a FeatureCollection
func (s *Session) GeoJSON() *geojson.FeatureCollection {
	v := s.View()
	fc := geojson.NewFeatureCollection()
	var bound *orb.Bound

	extend := func(b orb.Bound) {
		if bound == nil {
			bound = &b
			return
		}
		u := bound.Union(b)
		bound = &u
	}

	if v.Route != nil && len(v.Route.Geometry) > 0 {
		line := make(orb.LineString, len(v.Route.Geometry))
		for i, c := range v.Route.Geometry {
			line[i] = orb.Point{c.Lng, c.Lat}
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "route"
		f.Properties["distance_meters"] = v.Route.DistanceMeters
		f.Properties["duration_seconds"] = v.Route.DurationSeconds
		fc.Append(f)
		extend(line.Bound())
	}

	for i, wp := range v.Waypoints {
		pt := orb.Point{wp.Lng, wp.Lat}
		f := geojson.NewFeature(pt)
		f.ID = wp.ID
		f.Properties["kind"] = "stop"
		f.Properties["order"] = i + 1
		f.Properties["name"] = wp.Name
		f.Properties["stay_minutes"] = wp.StayMinutes
		if wp.Notes != "" {
			f.Properties["notes"] = wp.Notes
		}
		if i < len(v.Schedule) {
			f.Properties["arrival"] = v.Schedule[i].ArrivalTime
			f.Properties["departure"] = v.Schedule[i].DepartureTime
		}
		fc.Append(f)
		extend(pt.Bound())
	}

	if bound != nil {
		fc.BBox = geojson.NewBBox(*bound)
	}
	return fc
}
