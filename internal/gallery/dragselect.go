package gallery

import (
	"math"
	"time"
)

// DragPhase enumerates the drag-select state machine.
type DragPhase int

const (
	// DragIdle means no pointer is being tracked.
	DragIdle DragPhase = iota
	// DragArmedGated is a touch press waiting for the long-press gate;
	// movement past the threshold before the gate fires is a scroll.
	DragArmedGated
	// DragArmedUngated is ready to drag: a shift-modified mouse press,
	// or a touch press whose long-press gate already fired.
	DragArmedUngated
	// DragDragging means the rectangle is live.
	DragDragging
)

const (
	// DragStartThreshold is the displacement in pixels that separates a
	// tap from a drag, and a hold from a scroll.
	DragStartThreshold = 6.0
	// DragLongPressDelay gates touch input into drag mode.
	DragLongPressDelay = 350 * time.Millisecond
)

// DragSelect turns a pointer event stream into rubber-band selection
// rectangles. One pointer drives the machine at a time; events from any
// other pointer are ignored. A completed drag invokes the callback
// exactly once with the final rectangle; a tap that never passed the
// threshold invokes nothing and falls through to click handling.
type DragSelect struct {
	phase      DragPhase
	pointerID  int
	hasPointer bool
	start      Point
	current    Point
	gate       CancelableTimer
	onSelect   func(Rect)
}

// NewDragSelect creates a drag-select machine delivering completed
// rectangles to onSelect.
func NewDragSelect(onSelect func(Rect)) *DragSelect {
	return &DragSelect{onSelect: onSelect}
}

// Phase returns the current state.
func (d *DragSelect) Phase() DragPhase { return d.phase }

// Dragging reports whether a selection rectangle is live.
func (d *DragSelect) Dragging() bool { return d.phase == DragDragging }

// ActiveRect returns the live rectangle while dragging.
func (d *DragSelect) ActiveRect() (Rect, bool) {
	if d.phase != DragDragging {
		return Rect{}, false
	}
	return RectFromPoints(d.start, d.current), true
}

// PointerDown starts tracking a pointer. Presses on interactive targets
// (buttons, heart overlay, card actions) never start a drag, and a
// second pointer while one is active is ignored.
func (d *DragSelect) PointerDown(id int, p Point, shift, touch, interactive bool, now time.Time) {
	if d.hasPointer || interactive {
		return
	}
	d.hasPointer = true
	d.pointerID = id
	d.start = p
	d.current = p

	if shift && !touch {
		d.phase = DragArmedUngated
		return
	}

	d.phase = DragArmedGated
	d.gate.Start(now, DragLongPressDelay, func() {
		if d.phase == DragArmedGated && d.hasPointer && d.pointerID == id {
			d.phase = DragArmedUngated
		}
	})
}

// PointerMove advances the machine for the tracked pointer.
func (d *DragSelect) PointerMove(id int, p Point) {
	if !d.hasPointer || id != d.pointerID {
		return
	}
	d.current = p
	dist := math.Hypot(p.X-d.start.X, p.Y-d.start.Y)

	switch d.phase {
	case DragArmedGated:
		// The gate hasn't fired: movement past the threshold means the
		// user is scrolling, not selecting.
		if dist > DragStartThreshold {
			d.reset()
		}
	case DragArmedUngated:
		if dist > DragStartThreshold {
			d.phase = DragDragging
		}
	case DragDragging:
		// rectangle tracks d.current
	}
}

// PointerUp finishes the gesture. Only a drag that actually crossed the
// threshold produces a selection callback.
func (d *DragSelect) PointerUp(id int, p Point) {
	if !d.hasPointer || id != d.pointerID {
		return
	}
	dragged := d.phase == DragDragging
	if dragged {
		d.current = p
	}
	rect := RectFromPoints(d.start, d.current)
	d.reset()
	if dragged && d.onSelect != nil {
		d.onSelect(rect)
	}
}

// PointerCancel aborts the gesture without a callback.
func (d *DragSelect) PointerCancel(id int) {
	if !d.hasPointer || id != d.pointerID {
		return
	}
	d.reset()
}

// Tick fires the long-press gate when its deadline has passed.
func (d *DragSelect) Tick(now time.Time) {
	d.gate.Fire(now)
}

func (d *DragSelect) reset() {
	d.gate.Cancel()
	d.phase = DragIdle
	d.hasPointer = false
}
