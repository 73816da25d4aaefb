package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaypointGetCoords(t *testing.T) {
	w := Waypoint{
		Lat: 39.9163,
		Lng: 116.3972,
	}

	coords := w.GetCoords()

	assert.Equal(t, 39.9163, coords.Lat)
	assert.Equal(t, 116.3972, coords.Lng)
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 90, Lng: 180}.Valid())
	assert.True(t, Coordinates{Lat: -90, Lng: -180}.Valid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -181}.Valid())
}

func TestWaypointPatchEmpty(t *testing.T) {
	assert.True(t, WaypointPatch{}.Empty())

	name := "Lunch"
	assert.False(t, WaypointPatch{Name: &name}.Empty())
}

func TestRouteDataClone(t *testing.T) {
	var nilRoute *RouteData
	assert.Nil(t, nilRoute.Clone())

	r := &RouteData{
		DistanceMeters: 1000,
		Geometry:       []Coordinates{{Lat: 1, Lng: 2}},
		Legs:           []Leg{{DistanceMeters: 1000, DurationSeconds: 60}},
	}
	c := r.Clone()
	c.Legs[0].DurationSeconds = 120
	c.Geometry[0].Lat = 5

	assert.Equal(t, 60.0, r.Legs[0].DurationSeconds)
	assert.Equal(t, 1.0, r.Geometry[0].Lat)
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 39.91632, RoundCoordinate(39.916324))
	assert.Equal(t, -74.00601, RoundCoordinate(-74.006007))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, FailureKind(""), KindOf(nil))
	assert.Equal(t, KindNoRoute, KindOf(NewServiceError("osrm", KindNoRoute, "no path")))
	assert.Equal(t, KindMalformed, KindOf(fmt.Errorf("wrapped: %w", NewServiceError("osrm", KindMalformed, "bad"))))
	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestServiceErrorUnwrap(t *testing.T) {
	err := NetworkFailure("nominatim", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "nominatim failed (network_error)")
}
