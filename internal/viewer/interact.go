package viewer

import (
	"math"
	"time"

	"mediapilot/internal/gallery"
)

// InteractionPhase enumerates the modal's multi-pointer classifier.
type InteractionPhase int

const (
	InteractIdle InteractionPhase = iota
	InteractPressing
	InteractSwiping
	InteractMagnifying
	InteractPinching
)

// SwipeDirection is the horizontal direction of a recognized swipe.
type SwipeDirection int

const (
	SwipeLeft SwipeDirection = iota
	SwipeRight
)

const (
	// SwipeThreshold is the horizontal displacement that recognizes a swipe.
	SwipeThreshold = 120.0
	// MaxVerticalSwipe bounds the vertical drift a swipe may have.
	MaxVerticalSwipe = 120.0
	// LongPressDelay turns a steady press into a magnifier activation.
	LongPressDelay = 300 * time.Millisecond
	// longPressJitter cancels a pending long-press once exceeded.
	longPressJitter = 10.0
)

// InteractionCallbacks receive the classified gestures.
type InteractionCallbacks struct {
	OnSwipe       func(dir SwipeDirection)
	OnLongPress   func(at gallery.Point)
	OnMagnifyMove func(at gallery.Point)
	OnMagnifyEnd  func()
	OnPinchStart  func(center gallery.Point)
	OnPinchMove   func(center gallery.Point)
	OnTap         func(at gallery.Point)
}

type trackedPointer struct {
	pos   gallery.Point
	start gallery.Point
}

// Interaction classifies a multi-pointer event stream into press,
// long-press, swipe, pinch and tap gestures. A second pointer cancels a
// pending long-press and switches to pinch mode; releasing back down to
// one pointer returns to pressing, and to zero returns to idle.
type Interaction struct {
	phase     InteractionPhase
	pointers  map[int]*trackedPointer
	order     []int
	longPress gallery.CancelableTimer
	calls     InteractionCallbacks
}

// NewInteraction creates a classifier delivering gestures to calls.
func NewInteraction(calls InteractionCallbacks) *Interaction {
	return &Interaction{
		pointers: make(map[int]*trackedPointer),
		calls:    calls,
	}
}

// Phase returns the current classifier state.
func (in *Interaction) Phase() InteractionPhase { return in.phase }

// PointerDown registers a new pointer.
func (in *Interaction) PointerDown(id int, p gallery.Point, now time.Time) {
	if _, ok := in.pointers[id]; ok {
		return
	}
	in.pointers[id] = &trackedPointer{pos: p, start: p}
	in.order = append(in.order, id)

	if len(in.pointers) >= 2 {
		in.longPress.Cancel()
		in.phase = InteractPinching
		if c, ok := in.center(); ok && in.calls.OnPinchStart != nil {
			in.calls.OnPinchStart(c)
		}
		return
	}

	if in.phase == InteractIdle {
		in.phase = InteractPressing
		in.longPress.Start(now, LongPressDelay, func() {
			if in.phase == InteractPressing {
				in.phase = InteractMagnifying
				if in.calls.OnLongPress != nil {
					in.calls.OnLongPress(p)
				}
			}
		})
	}
}

// PointerMove advances a tracked pointer.
func (in *Interaction) PointerMove(id int, p gallery.Point) {
	ptr, ok := in.pointers[id]
	if !ok {
		return
	}
	ptr.pos = p

	switch in.phase {
	case InteractPinching:
		if c, ok := in.center(); ok && in.calls.OnPinchMove != nil {
			in.calls.OnPinchMove(c)
		}
	case InteractMagnifying:
		if in.calls.OnMagnifyMove != nil {
			in.calls.OnMagnifyMove(p)
		}
	case InteractPressing:
		dx := p.X - ptr.start.X
		dy := p.Y - ptr.start.Y
		if math.Abs(dx) > longPressJitter || math.Abs(dy) > longPressJitter {
			in.longPress.Cancel()
		}
		if math.Abs(dx) > SwipeThreshold && math.Abs(dy) < MaxVerticalSwipe {
			in.phase = InteractSwiping
			if in.calls.OnSwipe != nil {
				if dx > 0 {
					in.calls.OnSwipe(SwipeRight)
				} else {
					in.calls.OnSwipe(SwipeLeft)
				}
			}
		}
	}
}

// PointerUp releases a pointer and settles the phase.
func (in *Interaction) PointerUp(id int, p gallery.Point) {
	ptr, ok := in.pointers[id]
	if !ok {
		return
	}
	in.longPress.Cancel()
	wasMagnifying := in.phase == InteractMagnifying
	wasPinching := in.phase == InteractPinching
	wasPressing := in.phase == InteractPressing

	delete(in.pointers, id)
	for i, oid := range in.order {
		if oid == id {
			in.order = append(in.order[:i], in.order[i+1:]...)
			break
		}
	}

	if wasMagnifying || wasPinching {
		if in.calls.OnMagnifyEnd != nil {
			in.calls.OnMagnifyEnd()
		}
	}

	switch {
	case wasPinching && len(in.pointers) < 2:
		if len(in.pointers) > 0 {
			in.phase = InteractPressing
		} else {
			in.phase = InteractIdle
		}
	case len(in.pointers) == 0:
		in.phase = InteractIdle
	}

	// A press that never became anything else is a plain tap.
	if wasPressing && len(in.pointers) == 0 && in.calls.OnTap != nil {
		dx := p.X - ptr.start.X
		dy := p.Y - ptr.start.Y
		if math.Abs(dx) <= longPressJitter && math.Abs(dy) <= longPressJitter {
			in.calls.OnTap(p)
		}
	}
}

// PointerCancel drops a pointer without gesture side effects beyond
// closing an active magnify/pinch.
func (in *Interaction) PointerCancel(id int) {
	if _, ok := in.pointers[id]; !ok {
		return
	}
	in.PointerUp(id, in.pointers[id].pos)
}

// Tick fires the long-press timer when due.
func (in *Interaction) Tick(now time.Time) {
	in.longPress.Fire(now)
}

func (in *Interaction) center() (gallery.Point, bool) {
	if len(in.order) < 2 {
		return gallery.Point{}, false
	}
	a := in.pointers[in.order[0]].pos
	b := in.pointers[in.order[1]].pos
	return gallery.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}, true
}
