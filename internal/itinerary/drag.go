package itinerary

import (
	"errors"
	"log"
	"slices"
)

var (
	// ErrNotDragging is returned for hover/drop events with no gesture in progress
	ErrNotDragging = errors.New("no drag in progress")
	// ErrDragInProgress is returned when a gesture starts while another is active
	ErrDragInProgress = errors.New("drag already in progress")
)

// DragState is the reconciler state
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
)

func (s DragState) String() string {
	if s == DragDragging {
		return "dragging"
	}
	return "idle"
}

// DragReconciler turns a pointer drag gesture into live splices on a Store.
// Hovers never trigger a recompute; a drop that changed the order calls onDrop once.
type DragReconciler struct {
	store     *Store
	onDrop    func()
	state     DragState
	draggedID string
	before    []string
}

// NewDragReconciler creates an idle reconciler bound to store
func NewDragReconciler(store *Store, onDrop func()) *DragReconciler {
	return &DragReconciler{
		store:  store,
		onDrop: onDrop,
	}
}

// State returns the current state
func (d *DragReconciler) State() DragState {
	return d.state
}

// Active reports whether a gesture is in progress
func (d *DragReconciler) Active() bool {
	return d.state == DragDragging
}

// DraggedID returns the id of the waypoint being dragged, or ""
func (d *DragReconciler) DraggedID() string {
	return d.draggedID
}

// Start begins a gesture on the waypoint at index
func (d *DragReconciler) Start(index int) error {
	if d.state == DragDragging {
		return ErrDragInProgress
	}
	if index < 0 || index >= d.store.Len() {
		return ErrNotFound
	}

	d.before = d.store.IDs()
	d.draggedID = d.before[index]
	d.state = DragDragging
	log.Printf("[DRAG] Start: id=%s index=%d", d.draggedID, index)
	return nil
}

// Over splices the dragged waypoint to the hovered index. Hovering the
// waypoint's own current position changes nothing.
func (d *DragReconciler) Over(index int) error {
	if d.state != DragDragging {
		return ErrNotDragging
	}
	current := d.store.IndexOf(d.draggedID)
	if current < 0 {
		return ErrNotFound
	}
	if current == index {
		return nil
	}
	return d.store.Reorder(current, index)
}

// End finishes the gesture. It reports whether the order differs from the
// pre-drag order, and calls onDrop when it does and a route is possible.
func (d *DragReconciler) End() (bool, error) {
	if d.state != DragDragging {
		return false, ErrNotDragging
	}

	changed := !slices.Equal(d.before, d.store.IDs())
	log.Printf("[DRAG] End: id=%s changed=%t len=%d", d.draggedID, changed, d.store.Len())
	d.reset()

	if changed && d.store.Len() >= 2 && d.onDrop != nil {
		d.onDrop()
	}
	return changed, nil
}

// Cancel abandons the gesture and restores the pre-drag order
func (d *DragReconciler) Cancel() error {
	if d.state != DragDragging {
		return ErrNotDragging
	}

	restored := d.store.restoreOrder(d.before)
	log.Printf("[DRAG] Cancel: id=%s restored=%t", d.draggedID, restored)
	d.reset()
	return nil
}

func (d *DragReconciler) reset() {
	d.state = DragIdle
	d.draggedID = ""
	d.before = nil
}
