package gallery

import "time"

// CancelableTimer is a single-owner deadline timer polled from the
// update loop. Starting it again always replaces the previous deadline,
// so a timer can never fire twice for one arming.
type CancelableTimer struct {
	deadline time.Time
	fn       func()
	active   bool
}

// Start arms the timer to fire fn once d has elapsed past now.
func (t *CancelableTimer) Start(now time.Time, d time.Duration, fn func()) {
	t.deadline = now.Add(d)
	t.fn = fn
	t.active = true
}

// Cancel disarms the timer without firing.
func (t *CancelableTimer) Cancel() {
	t.active = false
	t.fn = nil
}

// Active reports whether the timer is armed.
func (t *CancelableTimer) Active() bool { return t.active }

// Fire invokes the callback when the deadline has passed, disarming the
// timer first so the callback may re-arm it. Returns true when it fired.
func (t *CancelableTimer) Fire(now time.Time) bool {
	if !t.active || now.Before(t.deadline) {
		return false
	}
	fn := t.fn
	t.active = false
	t.fn = nil
	if fn != nil {
		fn()
	}
	return true
}
