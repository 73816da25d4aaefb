package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDragFixture(t *testing.T, ids ...string) (*Store, *DragReconciler, *int) {
	t.Helper()
	s := newTestStore(t, ids...)
	drops := 0
	return s, NewDragReconciler(s, func() { drops++ }), &drops
}

func TestDrag_HoverSplicesLiveWithoutRecompute(t *testing.T) {
	s, d, drops := newDragFixture(t, "a", "b", "c", "d")

	require.NoError(t, d.Start(0))
	assert.Equal(t, DragDragging, d.State())
	assert.Equal(t, "a", d.DraggedID())

	require.NoError(t, d.Over(1))
	assert.Equal(t, []string{"b", "a", "c", "d"}, s.IDs())

	require.NoError(t, d.Over(3))
	assert.Equal(t, []string{"b", "c", "d", "a"}, s.IDs())
	assert.Equal(t, 0, *drops)

	changed, err := d.End()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, *drops)
	assert.Equal(t, DragIdle, d.State())
}

func TestDrag_RepeatedHoverIsIdempotent(t *testing.T) {
	s, d, _ := newDragFixture(t, "a", "b", "c")

	require.NoError(t, d.Start(2))
	require.NoError(t, d.Over(0))
	require.NoError(t, d.Over(0))
	require.NoError(t, d.Over(0))

	assert.Equal(t, []string{"c", "a", "b"}, s.IDs())
}

func TestDrag_DropInOriginalOrderSkipsRecompute(t *testing.T) {
	s, d, drops := newDragFixture(t, "a", "b", "c")

	require.NoError(t, d.Start(1))
	require.NoError(t, d.Over(2))
	require.NoError(t, d.Over(1))

	changed, err := d.End()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, *drops)
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
}

func TestDrag_CancelRestoresOrder(t *testing.T) {
	s, d, drops := newDragFixture(t, "a", "b", "c")

	require.NoError(t, d.Start(0))
	require.NoError(t, d.Over(2))
	require.NoError(t, d.Cancel())

	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
	assert.Equal(t, 0, *drops)
	assert.False(t, d.Active())
}

func TestDrag_SingleWaypointNeverRecomputes(t *testing.T) {
	_, d, drops := newDragFixture(t, "a")

	require.NoError(t, d.Start(0))
	require.NoError(t, d.Over(0))
	changed, err := d.End()

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, *drops)
}

func TestDrag_StateErrors(t *testing.T) {
	_, d, _ := newDragFixture(t, "a", "b")

	assert.ErrorIs(t, d.Over(1), ErrNotDragging)
	_, err := d.End()
	assert.ErrorIs(t, err, ErrNotDragging)
	assert.ErrorIs(t, d.Cancel(), ErrNotDragging)
	assert.ErrorIs(t, d.Start(5), ErrNotFound)

	require.NoError(t, d.Start(0))
	assert.ErrorIs(t, d.Start(1), ErrDragInProgress)
	assert.ErrorIs(t, d.Over(7), ErrNotFound)
}

func TestDrag_TracksByIdentityAfterExternalRemoval(t *testing.T) {
	s, d, drops := newDragFixture(t, "a", "b", "c")

	require.NoError(t, d.Start(2))
	require.NoError(t, s.Remove("a"))
	require.NoError(t, d.Over(0))
	assert.Equal(t, []string{"c", "b"}, s.IDs())

	changed, err := d.End()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, *drops)
}
