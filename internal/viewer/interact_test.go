package viewer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mediapilot/internal/gallery"
)

type gestureLog struct {
	swipes      []SwipeDirection
	longPresses []gallery.Point
	magnifyMove []gallery.Point
	magnifyEnds int
	pinchStarts []gallery.Point
	pinchMoves  []gallery.Point
	taps        []gallery.Point
}

func newLoggedInteraction() (*Interaction, *gestureLog) {
	logBook := &gestureLog{}
	in := NewInteraction(InteractionCallbacks{
		OnSwipe:       func(d SwipeDirection) { logBook.swipes = append(logBook.swipes, d) },
		OnLongPress:   func(p gallery.Point) { logBook.longPresses = append(logBook.longPresses, p) },
		OnMagnifyMove: func(p gallery.Point) { logBook.magnifyMove = append(logBook.magnifyMove, p) },
		OnMagnifyEnd:  func() { logBook.magnifyEnds++ },
		OnPinchStart:  func(p gallery.Point) { logBook.pinchStarts = append(logBook.pinchStarts, p) },
		OnPinchMove:   func(p gallery.Point) { logBook.pinchMoves = append(logBook.pinchMoves, p) },
		OnTap:         func(p gallery.Point) { logBook.taps = append(logBook.taps, p) },
	})
	return in, logBook
}

func TestInteraction_SwipeLeftAndRight(t *testing.T) {
	tests := []struct {
		name string
		dx   float64
		dy   float64
		want []SwipeDirection
	}{
		{"left", -121, 0, []SwipeDirection{SwipeLeft}},
		{"right", 121, 0, []SwipeDirection{SwipeRight}},
		{"below threshold", -120, 0, nil},
		{"too vertical", -200, 120, nil},
		{"diagonal within bounds", 130, 119, []SwipeDirection{SwipeRight}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, logBook := newLoggedInteraction()
			now := time.Now()
			in.PointerDown(1, gallery.Point{X: 300, Y: 300}, now)
			in.PointerMove(1, gallery.Point{X: 300 + tc.dx, Y: 300 + tc.dy})
			in.PointerUp(1, gallery.Point{X: 300 + tc.dx, Y: 300 + tc.dy})

			assert.Equal(t, tc.want, logBook.swipes)
			assert.Equal(t, InteractIdle, in.Phase())
		})
	}
}

func TestInteraction_LongPressBecomesMagnify(t *testing.T) {
	in, logBook := newLoggedInteraction()
	now := time.Now()

	in.PointerDown(1, gallery.Point{X: 50, Y: 60}, now)
	assert.Equal(t, InteractPressing, in.Phase())

	in.Tick(now.Add(LongPressDelay - time.Millisecond))
	assert.Equal(t, InteractPressing, in.Phase())

	in.Tick(now.Add(LongPressDelay))
	assert.Equal(t, InteractMagnifying, in.Phase())
	assert.Len(t, logBook.longPresses, 1)

	in.PointerMove(1, gallery.Point{X: 70, Y: 80})
	assert.Equal(t, []gallery.Point{{X: 70, Y: 80}}, logBook.magnifyMove)

	in.PointerUp(1, gallery.Point{X: 70, Y: 80})
	assert.Equal(t, 1, logBook.magnifyEnds)
	assert.Equal(t, InteractIdle, in.Phase())
	assert.Empty(t, logBook.taps)
}

func TestInteraction_MovementCancelsLongPress(t *testing.T) {
	in, logBook := newLoggedInteraction()
	now := time.Now()

	in.PointerDown(1, gallery.Point{X: 50, Y: 60}, now)
	in.PointerMove(1, gallery.Point{X: 61, Y: 60}) // past the jitter allowance
	in.Tick(now.Add(LongPressDelay * 2))

	assert.Equal(t, InteractPressing, in.Phase())
	assert.Empty(t, logBook.longPresses)
}

func TestInteraction_SecondPointerStartsPinch(t *testing.T) {
	in, logBook := newLoggedInteraction()
	now := time.Now()

	in.PointerDown(1, gallery.Point{X: 100, Y: 100}, now)
	in.PointerDown(2, gallery.Point{X: 200, Y: 200}, now)
	assert.Equal(t, InteractPinching, in.Phase())
	assert.Equal(t, []gallery.Point{{X: 150, Y: 150}}, logBook.pinchStarts)

	// The pending long-press died when the pinch started.
	in.Tick(now.Add(LongPressDelay * 2))
	assert.Empty(t, logBook.longPresses)

	in.PointerMove(2, gallery.Point{X: 300, Y: 200})
	assert.Equal(t, []gallery.Point{{X: 200, Y: 150}}, logBook.pinchMoves)

	// Releasing one finger returns to pressing; releasing the last, idle.
	in.PointerUp(2, gallery.Point{X: 300, Y: 200})
	assert.Equal(t, 1, logBook.magnifyEnds)
	assert.Equal(t, InteractPressing, in.Phase())

	in.PointerUp(1, gallery.Point{X: 100, Y: 100})
	assert.Equal(t, InteractIdle, in.Phase())
}

func TestInteraction_TapWithinJitter(t *testing.T) {
	in, logBook := newLoggedInteraction()
	now := time.Now()

	in.PointerDown(1, gallery.Point{X: 10, Y: 10}, now)
	in.PointerUp(1, gallery.Point{X: 12, Y: 11})

	assert.Equal(t, []gallery.Point{{X: 12, Y: 11}}, logBook.taps)
	assert.Empty(t, logBook.swipes)
}

func TestInteraction_UnknownPointerIgnored(t *testing.T) {
	in, logBook := newLoggedInteraction()

	in.PointerMove(7, gallery.Point{X: 500, Y: 0})
	in.PointerUp(7, gallery.Point{X: 500, Y: 0})

	assert.Equal(t, InteractIdle, in.Phase())
	assert.Empty(t, logBook.taps)
	assert.Empty(t, logBook.swipes)
}
