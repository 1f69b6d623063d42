package ui

import (
	"sync"
	"time"
)

// toastDuration is how long one notification stays on screen.
const toastDuration = 3 * time.Second

// maxToasts bounds the stack; older messages drop first.
const maxToasts = 4

type toast struct {
	message  string
	deadline time.Time
}

// Toasts is the on-screen notification sink. Notify may be called from
// any goroutine; expiry runs on the update tick.
type Toasts struct {
	mu    sync.Mutex
	now   func() time.Time
	items []toast
}

// NewToasts creates a toast stack using now as its clock source.
func NewToasts(now func() time.Time) *Toasts {
	if now == nil {
		now = time.Now
	}
	return &Toasts{now: now}
}

// Notify pushes a message onto the stack.
func (t *Toasts) Notify(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, toast{message: message, deadline: t.now().Add(toastDuration)})
	if len(t.items) > maxToasts {
		t.items = t.items[len(t.items)-maxToasts:]
	}
}

// Tick drops expired messages.
func (t *Toasts) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.deadline) {
			kept = append(kept, item)
		}
	}
	t.items = kept
}

// Messages returns the visible notifications, oldest first.
func (t *Toasts) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.items))
	for i, item := range t.items {
		out[i] = item.message
	}
	return out
}
