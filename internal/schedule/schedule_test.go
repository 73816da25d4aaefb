package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-planner/internal/models"
)

func stops(stays ...int) []models.Waypoint {
	out := make([]models.Waypoint, len(stays))
	for i, s := range stays {
		out[i] = models.Waypoint{ID: string(rune('a' + i)), StayMinutes: s}
	}
	return out
}

func TestCompute_ThreeStopExample(t *testing.T) {
	start, err := ParseClock("08:00")
	require.NoError(t, err)

	legs := []models.Leg{{DurationSeconds: 20 * 60}, {DurationSeconds: 15 * 60}}
	entries := Compute(stops(60, 30, 0), legs, start)

	require.Len(t, entries, 3)
	expected := [][2]string{{"08:00", "09:00"}, {"09:20", "09:50"}, {"10:05", "10:05"}}
	for i, e := range entries {
		assert.Equal(t, expected[i][0], FormatClock(e.Arrival), "arrival %d", i)
		assert.Equal(t, expected[i][1], FormatClock(e.Departure), "departure %d", i)
	}
	assert.Equal(t, "b", entries[1].WaypointID)
}

func TestCompute_Invariant(t *testing.T) {
	wps := stops(15, 0, 90, 45, 10)
	legs := []models.Leg{
		{DurationSeconds: 89},
		{DurationSeconds: 1234.5},
		{DurationSeconds: 29},
		{DurationSeconds: 3600},
	}
	entries := Compute(wps, legs, 7*60+30)

	for i := range wps {
		assert.Equal(t, entries[i].Arrival+wps[i].StayMinutes, entries[i].Departure)
		if i+1 < len(wps) {
			assert.Equal(t, entries[i].Departure+LegMinutes(legs[i].DurationSeconds), entries[i+1].Arrival)
		}
	}
}

func TestCompute_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, Compute(nil, nil, 480))

	entries := Compute(stops(30), nil, 480)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{WaypointID: "a", Arrival: 480, Departure: 510}, entries[0])
}

func TestCompute_MissingLegsCountAsZero(t *testing.T) {
	entries := Compute(stops(10, 10, 10), []models.Leg{{DurationSeconds: 600}}, 0)

	assert.Equal(t, 20, entries[1].Arrival)
	assert.Equal(t, 30, entries[2].Arrival)
}

func TestCompute_CrossesMidnight(t *testing.T) {
	entries := Compute(stops(60, 30), []models.Leg{{DurationSeconds: 90 * 60}}, 23*60)

	assert.Equal(t, 23*60+150, entries[1].Arrival)
	assert.Equal(t, "01:30", FormatClock(entries[1].Arrival))
	assert.Equal(t, 1, DayOffset(entries[1].Arrival))
}

func TestLegMinutes_RoundsToNearest(t *testing.T) {
	assert.Equal(t, 0, LegMinutes(29))
	assert.Equal(t, 1, LegMinutes(30))
	assert.Equal(t, 1, LegMinutes(89))
	assert.Equal(t, 2, LegMinutes(90))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"08:00", 480, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 9:05 ", 545, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12:5", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "10:05", FormatClock(605))
	assert.Equal(t, "00:10", FormatClock(MinutesPerDay+10))
	assert.Equal(t, "23:50", FormatClock(-10))
}

func TestDayOffset(t *testing.T) {
	assert.Equal(t, 0, DayOffset(1439))
	assert.Equal(t, 1, DayOffset(1440))
	assert.Equal(t, 2, DayOffset(3000))
	assert.Equal(t, -1, DayOffset(-1))
}

func TestSummarize(t *testing.T) {
	route := &models.RouteData{
		DistanceMeters: 12500,
		Legs:           []models.Leg{{DurationSeconds: 20 * 60}, {DurationSeconds: 15 * 60}},
	}

	s := Summarize(stops(60, 30, 0), route, 480)

	assert.Equal(t, 12500.0, s.DistanceMeters)
	assert.Equal(t, 35, s.TravelMinutes)
	assert.Equal(t, 90, s.StayMinutes)
	assert.Equal(t, 605, s.End)

	empty := Summarize(nil, nil, 480)
	assert.Equal(t, 480, empty.End)
}
