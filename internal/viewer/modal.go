package viewer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"mediapilot/internal/api"
	"mediapilot/internal/gallery"
	"mediapilot/internal/models"
)

// gridRowTolerance is how far apart two card tops may be while still
// counting as the same grid row.
const gridRowTolerance = 2.0

// GridColumns derives the gallery column count from card top offsets in
// layout order: every card whose top matches the first card's within
// tolerance shares the first row.
func GridColumns(tops []float64) int {
	if len(tops) == 0 {
		return 1
	}
	cols := 0
	for _, t := range tops {
		if math.Abs(t-tops[0]) <= gridRowTolerance {
			cols++
		} else {
			break
		}
	}
	if cols < 1 {
		cols = 1
	}
	return cols
}

// Modal is the full-screen single-image viewer layered over the gallery.
// It tracks the shown image by filename and navigates through the
// gallery's visible (filter-aware) order, fetching further pages on
// demand when stepping past the loaded window. There is no wraparound
// at either end.
//
// Like the controller, all state is guarded by one mutex: Delete,
// ApplyTag and ToggleLike block on the network and run in their own
// goroutine, while the render side reads Opened/Current/Sliding every
// frame. The lock is never held across a network call.
type Modal struct {
	mu     sync.Mutex
	ctrl   *gallery.Controller
	client *api.Client
	pre    *Preloader

	opened   bool
	current  string
	folder   string
	showMeta bool

	sliding  bool
	slideDir SwipeDirection

	// extending marks an in-flight page fetch triggered by navigating
	// past the loaded window; further edge steps are dropped until the
	// page lands.
	extending bool
}

// NewModal creates a modal over ctrl's gallery state. pre may be nil to
// disable neighbor preloading.
func NewModal(ctrl *gallery.Controller, client *api.Client, pre *Preloader) *Modal {
	return &Modal{ctrl: ctrl, client: client, pre: pre}
}

// Open shows the modal on filename and warms its neighbors.
func (m *Modal) Open(filename string) {
	found := false
	folder := ""
	m.ctrl.Access(func(s *gallery.State) {
		if s.Record(filename) != nil {
			found = true
			folder = s.Query.Folder
		}
	})
	if !found {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	m.current = filename
	m.folder = folder
	m.showMeta = false
	m.preloadNeighbors()
}

// Close dismisses the modal.
func (m *Modal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Modal) closeLocked() {
	m.opened = false
	m.current = ""
	m.sliding = false
}

// Opened reports whether the modal is visible.
func (m *Modal) Opened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Current returns the filename being shown.
func (m *Modal) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentURL returns the full-resolution URL of the shown image.
func (m *Modal) CurrentURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == "" {
		return ""
	}
	return m.client.FullURL(m.current, m.folder)
}

// Record returns a copy of the shown image's gallery record.
func (m *Modal) Record() (models.ImageRecord, bool) {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	var rec models.ImageRecord
	ok := false
	m.ctrl.Access(func(s *gallery.State) {
		if r := s.Record(current); r != nil {
			rec = *r
			ok = true
		}
	})
	return rec, ok
}

// ToggleMetadata flips the metadata overlay.
func (m *Modal) ToggleMetadata() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showMeta = !m.showMeta
}

// MetadataVisible reports whether the overlay is shown.
func (m *Modal) MetadataVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showMeta
}

// Navigate steps delta positions through the visible order. Stepping
// past the loaded window triggers a page fetch in the background and
// finishes the step when the page lands, so the caller never blocks;
// stepping past either end of the full result set is a no-op.
func (m *Modal) Navigate(ctx context.Context, delta int) {
	m.mu.Lock()
	if !m.opened || delta == 0 {
		m.mu.Unlock()
		return
	}
	if m.stepLocked(delta) {
		m.mu.Unlock()
		return
	}
	if m.extending || !m.hasMorePagesLocked() {
		m.mu.Unlock()
		return
	}
	m.extending = true
	m.mu.Unlock()

	go m.extendAndStep(ctx, delta)
}

// stepLocked tries to move delta positions inside the loaded window. It
// reports false only when the target lies past the window, meaning a
// further page is needed before the step can complete.
func (m *Modal) stepLocked(delta int) bool {
	idx, visible := m.visiblePosition()
	if idx < 0 {
		return true
	}
	target := idx + delta
	if target < 0 {
		return true
	}
	if target >= len(visible) {
		return false
	}
	m.current = visible[target]
	m.preloadNeighbors()
	return true
}

// extendAndStep fetches the next page off the caller's goroutine and
// completes the pending navigation once the window has grown.
func (m *Modal) extendAndStep(ctx context.Context, delta int) {
	err := m.ctrl.LoadNextPage(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.extending = false
	if err != nil {
		log.WithError(err).Warn("Failed to extend gallery window for navigation")
		return
	}
	if !m.opened {
		return
	}
	m.stepLocked(delta)
}

// NavigateRow moves one grid row up or down, where columns is the
// gallery's current column count.
func (m *Modal) NavigateRow(ctx context.Context, down bool, columns int) {
	if columns < 1 {
		columns = 1
	}
	if down {
		m.Navigate(ctx, columns)
	} else {
		m.Navigate(ctx, -columns)
	}
}

// BeginSlide starts a swipe transition. The actual navigation is
// deferred until CompleteSlide so the outgoing image stays in place
// while the animation runs.
func (m *Modal) BeginSlide(dir SwipeDirection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened || m.sliding {
		return
	}
	m.sliding = true
	m.slideDir = dir
}

// Sliding reports an in-flight swipe transition and its direction.
func (m *Modal) Sliding() (SwipeDirection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slideDir, m.sliding
}

// CompleteSlide finishes a swipe transition: swiping left advances,
// swiping right goes back.
func (m *Modal) CompleteSlide(ctx context.Context) {
	m.mu.Lock()
	if !m.sliding {
		m.mu.Unlock()
		return
	}
	m.sliding = false
	delta := 1
	if m.slideDir == SwipeRight {
		delta = -1
	}
	m.mu.Unlock()

	m.Navigate(ctx, delta)
}

// ToggleLike flips the like state of the shown image.
func (m *Modal) ToggleLike(ctx context.Context) {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()
	if current == "" {
		return
	}
	m.ctrl.ToggleLike(ctx, current)
}

// Delete removes the shown image and advances to the image now
// occupying its position, clamped to the end of the visible order. The
// modal closes when nothing remains.
func (m *Modal) Delete(ctx context.Context) {
	m.mu.Lock()
	deleted := m.current
	idx, _ := m.visiblePosition()
	m.mu.Unlock()
	if deleted == "" {
		return
	}

	if err := m.ctrl.Delete(ctx, deleted); err != nil {
		return
	}

	m.mu.Lock()
	m.forgetCached(deleted)
	m.mu.Unlock()
	m.advanceFrom(ctx, idx)
}

// ApplyTag moves the shown image into folder, advances the modal, and
// then resyncs the whole gallery against the server. The resync runs
// after advancing so the modal lands on a neighbor that was loaded
// before the window was rebuilt.
func (m *Modal) ApplyTag(ctx context.Context, folder string) {
	m.mu.Lock()
	tagged := m.current
	idx, _ := m.visiblePosition()
	m.mu.Unlock()
	if tagged == "" {
		return
	}

	m.ctrl.ApplyTag(ctx, []string{tagged}, folder)
	still := false
	m.ctrl.Access(func(s *gallery.State) { still = s.Record(tagged) != nil })
	if still {
		// Tagging failed; the record survived, keep showing it.
		return
	}

	m.mu.Lock()
	m.forgetCached(tagged)
	m.mu.Unlock()
	m.advanceFrom(ctx, idx)
	if err := m.ctrl.Reset(ctx); err != nil {
		log.WithError(err).Warn("Failed to refresh gallery after tagging")
	}
}

// advanceFrom moves to the image now occupying idx, clamped to the end
// of the visible order, fetching one more page when the window emptied.
// The modal closes when nothing remains. The lock is released around
// the page fetch.
func (m *Modal) advanceFrom(ctx context.Context, idx int) {
	m.mu.Lock()
	_, visible := m.visiblePosition()
	if len(visible) == 0 && m.hasMorePagesLocked() {
		m.mu.Unlock()
		err := m.ctrl.LoadNextPage(ctx)
		m.mu.Lock()
		if err == nil {
			_, visible = m.visiblePosition()
		}
	}
	defer m.mu.Unlock()

	if len(visible) == 0 {
		m.closeLocked()
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(visible) {
		idx = len(visible) - 1
	}
	m.current = visible[idx]
	m.preloadNeighbors()
}

func (m *Modal) hasMorePagesLocked() bool {
	more := false
	m.ctrl.Access(func(s *gallery.State) { more = !s.IsEnd() })
	return more
}

// visiblePosition reports the shown image's index in the visible order
// along with that order. Callers must hold the lock.
func (m *Modal) visiblePosition() (int, []string) {
	idx := -1
	var names []string
	m.ctrl.Access(func(s *gallery.State) {
		for _, rec := range s.Visible() {
			if rec.Filename == m.current {
				idx = len(names)
			}
			names = append(names, rec.Filename)
		}
	})
	return idx, names
}

func (m *Modal) preloadNeighbors() {
	if m.pre == nil {
		return
	}
	idx, names := m.visiblePosition()
	if idx < 0 {
		return
	}
	urls := make([]string, len(names))
	for i, n := range names {
		urls[i] = m.client.FullURL(n, m.folder)
	}
	m.pre.PreloadAround(urls, idx)
}

func (m *Modal) forgetCached(filename string) {
	if m.pre == nil {
		return
	}
	m.pre.Forget(m.client.FullURL(filename, m.folder))
	m.pre.Forget(m.client.ThumbURL(filename, m.folder))
}

// MetadataText renders the generation metadata overlay for rec, one
// field per line, omitting fields the backend did not supply.
func MetadataText(rec models.ImageRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", rec.Filename)
	if rec.Prompt != nil && *rec.Prompt != "" {
		fmt.Fprintf(&b, "Prompt: %s\n", *rec.Prompt)
	}
	if rec.LoraName != nil && *rec.LoraName != "" {
		if rec.LoraStrength != nil {
			fmt.Fprintf(&b, "LoRA: %s (%.2f)\n", *rec.LoraName, float64(*rec.LoraStrength))
		} else {
			fmt.Fprintf(&b, "LoRA: %s\n", *rec.LoraName)
		}
	}
	if rec.LoraName2 != nil && *rec.LoraName2 != "" {
		if rec.LoraStrength2 != nil {
			fmt.Fprintf(&b, "LoRA 2: %s (%.2f)\n", *rec.LoraName2, float64(*rec.LoraStrength2))
		} else {
			fmt.Fprintf(&b, "LoRA 2: %s\n", *rec.LoraName2)
		}
	}
	if rec.Cfg != nil {
		fmt.Fprintf(&b, "CFG: %g\n", float64(*rec.Cfg))
	}
	if rec.Steps != nil {
		fmt.Fprintf(&b, "Steps: %d\n", *rec.Steps)
	}
	if rec.Sampler != nil && *rec.Sampler != "" {
		fmt.Fprintf(&b, "Sampler: %s\n", *rec.Sampler)
	}
	if rec.Scheduler != nil && *rec.Scheduler != "" {
		fmt.Fprintf(&b, "Scheduler: %s\n", *rec.Scheduler)
	}
	if rec.CreatedAt != "" {
		fmt.Fprintf(&b, "Created: %s\n", rec.CreatedAt)
	}
	return strings.TrimRight(b.String(), "\n")
}
