// Package schedule derives arrival and departure times for an ordered itinerary.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"itinerary-planner/internal/models"
)

// MinutesPerDay is the display modulus for clock times
const MinutesPerDay = 24 * 60

// ErrInvalidClock is returned by ParseClock for anything that isn't HH:MM
var ErrInvalidClock = errors.New("time must be HH:MM")

// Entry holds the computed times for one waypoint, in minutes since the
// midnight of the trip's first day. Values past 1439 belong to later days.
type Entry struct {
	WaypointID string `json:"waypoint_id"`
	Arrival    int    `json:"arrival"`
	Departure  int    `json:"departure"`
}

// LegMinutes converts a leg duration to whole minutes, rounding to nearest
func LegMinutes(durationSeconds float64) int {
	return int(math.Round(durationSeconds / 60))
}

// Compute walks the waypoints in order. Missing legs count as zero travel.
func Compute(waypoints []models.Waypoint, legs []models.Leg, start int) []Entry {
	entries := make([]Entry, len(waypoints))
	clock := start
	for i, wp := range waypoints {
		if i > 0 && i-1 < len(legs) {
			clock += LegMinutes(legs[i-1].DurationSeconds)
		}
		entries[i] = Entry{
			WaypointID: wp.ID,
			Arrival:    clock,
			Departure:  clock + wp.StayMinutes,
		}
		clock += wp.StayMinutes
	}
	return entries
}

// ParseClock parses "HH:MM" into minutes since midnight
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes as HH:MM on a 24 hour clock
func FormatClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DayOffset returns how many midnights have passed since the start day
func DayOffset(minutes int) int {
	if minutes < 0 {
		return -((-minutes + MinutesPerDay - 1) / MinutesPerDay)
	}
	return minutes / MinutesPerDay
}

// Summary aggregates a computed schedule and its route
type Summary struct {
	DistanceMeters float64 `json:"distance_meters"`
	TravelMinutes  int     `json:"travel_minutes"`
	StayMinutes    int     `json:"stay_minutes"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
}

// Summarize totals the schedule. route may be nil.
func Summarize(waypoints []models.Waypoint, route *models.RouteData, start int) Summary {
	s := Summary{Start: start, End: start}
	var legs []models.Leg
	if route != nil {
		s.DistanceMeters = route.DistanceMeters
		legs = route.Legs
	}
	for i, leg := range legs {
		if i >= len(waypoints)-1 {
			break
		}
		s.TravelMinutes += LegMinutes(leg.DurationSeconds)
	}
	for _, wp := range waypoints {
		s.StayMinutes += wp.StayMinutes
	}
	if entries := Compute(waypoints, legs, start); len(entries) > 0 {
		s.End = entries[len(entries)-1].Departure
	}
	return s
}
