package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	log "github.com/sirupsen/logrus"

	"mediapilot/internal/gallery"
)

const galleryPointerID = 0

// overlayMode enumerates the input layers stacked above the grid and
// the viewer. At most one overlay captures input at a time.
type overlayMode int

const (
	overlayNone overlayMode = iota
	overlayTags
	overlayFolders
	overlaySort
	overlaySearch
	overlayNewTag
)

// createTagEntry is the synthetic last row of the tag picker that opens
// the create-tag form.
const createTagEntry = "+ New tag"

// sortOptions mirrors the orderings the backend accepts.
var sortOptions = []string{"newest", "oldest", "alphabetically"}

// cursorPoint returns the mouse position as a geometry point.
func cursorPoint() gallery.Point {
	x, y := ebiten.CursorPosition()
	return gallery.Point{X: float64(x), Y: float64(y)}
}

func shiftDown() bool {
	return ebiten.IsKeyPressed(ebiten.KeyShift)
}

// updateGallery handles one tick of grid-mode input.
func (a *App) updateGallery(ctx context.Context, now time.Time) {
	if a.overlay != overlayNone {
		a.updateOverlay(ctx, now)
		return
	}

	a.handleScroll()
	a.handlePointer(now)
	a.handleGalleryKeys(ctx)
}

func (a *App) handleScroll() {
	_, wheelY := ebiten.Wheel()
	if wheelY != 0 {
		a.layout.Scroll -= wheelY * wheelScrollSpeed
		a.layout.ClampScroll(len(a.visibleNames))
	}
}

func (a *App) handlePointer(now time.Time) {
	p := cursorPoint()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		a.drag.PointerDown(galleryPointerID, p, shiftDown(), false, false, now)
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		a.drag.PointerMove(galleryPointerID, p)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		wasDragging := a.drag.Dragging()
		a.drag.PointerUp(galleryPointerID, p)
		if !wasDragging {
			a.handleCardClick(p, now)
		}
	}
}

// handleCardClick resolves a plain click on a card: shift extends the
// selection range, a second tap inside the double-tap window opens the
// viewer, anything else toggles selection.
func (a *App) handleCardClick(p gallery.Point, now time.Time) {
	idx := a.layout.CardAt(p, len(a.visibleNames))
	if idx < 0 {
		return
	}
	name := a.visibleNames[idx]

	if name == a.lastTapName && now.Sub(a.lastTapAt) <= doubleTapWindow {
		a.lastTapName = ""
		a.modal.Open(name)
		return
	}
	a.lastTapName = name
	a.lastTapAt = now

	a.ctrl.Access(func(s *gallery.State) {
		if shiftDown() {
			s.SelectRange(name)
		} else {
			s.ToggleSelect(name)
		}
	})
}

func (a *App) handleGalleryKeys(ctx context.Context) {
	selected := 0
	a.ctrl.Access(func(s *gallery.State) { selected = s.SelectionCount() })

	if selected > 0 {
		switch {
		case inpututil.IsKeyJustPressed(ebiten.KeyDelete),
			inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
			go a.ctrl.BulkDelete(ctx)
		case inpututil.IsKeyJustPressed(ebiten.KeySpace):
			go a.ctrl.BulkLike(ctx)
		case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
			a.openTagMenu()
		case inpututil.IsKeyJustPressed(ebiten.KeyD):
			go func() {
				if err := a.ctrl.BulkDownload(ctx); err != nil {
					log.WithError(err).Debug("Bulk download failed")
				}
			}()
		case inpututil.IsKeyJustPressed(ebiten.KeyU):
			go func() {
				if err := a.ctrl.BulkUpscale(ctx); err != nil {
					log.WithError(err).Debug("Bulk upscale failed")
				}
			}()
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.ctrl.Access(func(s *gallery.State) { s.ClearSelection() })
	}

	switch {
	// Filter cycling: All -> Liked -> Unliked.
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		a.cycleFilter()
	case inpututil.IsKeyJustPressed(ebiten.KeySlash):
		a.openSearch()
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		a.openMenu(overlayFolders)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		a.openMenu(overlaySort)
	}
}

func (a *App) cycleFilter() {
	var current gallery.FilterMode
	a.ctrl.Access(func(s *gallery.State) { current = s.Filter })
	switch current {
	case gallery.FilterAll:
		a.ctrl.SetFilter(gallery.FilterLiked)
	case gallery.FilterLiked:
		a.ctrl.SetFilter(gallery.FilterUnliked)
	default:
		a.ctrl.SetFilter(gallery.FilterAll)
	}
}

func (a *App) openTagMenu() {
	a.openMenu(overlayTags)
}

func (a *App) openMenu(mode overlayMode) {
	a.overlay = mode
	a.menuIndex = 0
}

// openSearch enters the inline search field, prefilled with the active
// query so editing continues where the last search left off.
func (a *App) openSearch() {
	a.overlay = overlaySearch
	a.ctrl.Access(func(s *gallery.State) { a.textEntry = s.Query.Search })
}

func (a *App) updateOverlay(ctx context.Context, now time.Time) {
	switch a.overlay {
	case overlayTags:
		a.updateTagMenu(ctx)
	case overlayFolders:
		a.updateFolderMenu(ctx)
	case overlaySort:
		a.updateSortMenu(ctx)
	case overlaySearch:
		a.updateSearchEntry(ctx, now)
	case overlayNewTag:
		a.updateNewTagEntry(ctx)
	}
}

// menuStep moves the highlight through an n-entry menu and keeps it in
// range when the entry list shrank since the last frame.
func (a *App) menuStep(n int) {
	if a.menuIndex >= n {
		a.menuIndex = n - 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIndex < n-1 {
		a.menuIndex++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIndex > 0 {
		a.menuIndex--
	}
}

// tagMenuEntries is the tag picker contents: every usable tag plus the
// create-tag row at the bottom.
func (a *App) tagMenuEntries() []string {
	return append(a.ctrl.TagOptions(), createTagEntry)
}

// updateTagMenu drives the tag picker overlay: arrows move, Enter
// applies the highlighted tag (or opens the create-tag form on the last
// row), Escape dismisses.
func (a *App) updateTagMenu(ctx context.Context) {
	options := a.tagMenuEntries()
	a.menuStep(len(options))

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.overlay = overlayNone
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		if a.menuIndex == len(options)-1 {
			a.overlay = overlayNewTag
			a.textEntry = ""
			return
		}
		choice := options[a.menuIndex]
		a.overlay = overlayNone
		go a.applyTagChoice(ctx, choice)
	}
}

// applyTagChoice routes a picked tag to the viewer's image when the
// viewer is open, otherwise to the grid selection.
func (a *App) applyTagChoice(ctx context.Context, choice string) {
	if a.modal.Opened() {
		a.modal.ApplyTag(ctx, choice)
	} else {
		a.ctrl.BulkTagSelection(ctx, choice)
	}
}

func (a *App) updateFolderMenu(ctx context.Context) {
	options := a.ctrl.FolderOptions()
	a.menuStep(len(options))

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.overlay = overlayNone
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		choice := options[a.menuIndex]
		a.overlay = overlayNone
		go a.switchFolder(ctx, choice)
	}
}

func (a *App) switchFolder(ctx context.Context, folder string) {
	if err := a.ctrl.SetFolder(ctx, folder); err != nil {
		log.WithError(err).Debug("Folder switch failed")
	}
}

func (a *App) updateSortMenu(ctx context.Context) {
	a.menuStep(len(sortOptions))

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.overlay = overlayNone
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		choice := sortOptions[a.menuIndex]
		a.overlay = overlayNone
		go a.switchSort(ctx, choice)
	}
}

func (a *App) switchSort(ctx context.Context, sortMode string) {
	if err := a.ctrl.SetSort(ctx, sortMode); err != nil {
		log.WithError(err).Debug("Sort switch failed")
	}
}

// updateSearchEntry drives the inline search field. Every edit feeds
// the debounced query, Enter keeps the current text, Escape clears the
// search outright and refetches immediately.
func (a *App) updateSearchEntry(ctx context.Context, now time.Time) {
	if a.editTextEntry() {
		a.ctrl.SetSearchInput(a.textEntry, now)
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		a.overlay = overlayNone
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.overlay = overlayNone
		a.textEntry = ""
		go a.clearSearch(ctx)
	}
}

func (a *App) clearSearch(ctx context.Context) {
	if err := a.ctrl.ClearSearch(ctx); err != nil {
		log.WithError(err).Debug("Search clear failed")
	}
}

// updateNewTagEntry collects a tag name. Enter creates it and returns
// to the tag picker with the new entry listed; Escape abandons it.
func (a *App) updateNewTagEntry(ctx context.Context) {
	a.editTextEntry()

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.textEntry = ""
		a.openMenu(overlayTags)
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		name := a.textEntry
		a.textEntry = ""
		a.openMenu(overlayTags)
		go a.createTag(ctx, name)
	}
}

func (a *App) createTag(ctx context.Context, name string) {
	if err := a.ctrl.CreateTag(ctx, name); err != nil {
		log.WithError(err).Debug("Tag creation failed")
	}
}

// editTextEntry applies this frame's typed characters and backspaces to
// the overlay text field, reporting whether anything changed.
func (a *App) editTextEntry() bool {
	changed := false
	for _, r := range ebiten.AppendInputChars(nil) {
		if r >= ' ' {
			a.textEntry += string(r)
			changed = true
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && a.textEntry != "" {
		runes := []rune(a.textEntry)
		a.textEntry = string(runes[:len(runes)-1])
		changed = true
	}
	return changed
}

// updateModal handles one tick of viewer-mode input.
func (a *App) updateModal(ctx context.Context, now time.Time) {
	if a.overlay != overlayNone {
		a.updateOverlay(ctx, now)
		return
	}

	a.handleModalPointer(now)
	a.handleModalKeys(ctx)

	if _, sliding := a.modal.Sliding(); sliding {
		// Navigation is deferred to the end of the slide animation.
		if a.slideFinished(now) {
			a.modal.CompleteSlide(ctx)
		}
	}
}

func (a *App) handleModalPointer(now time.Time) {
	p := cursorPoint()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		a.interact.PointerDown(galleryPointerID, p, now)
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		a.interact.PointerMove(galleryPointerID, p)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		a.interact.PointerUp(galleryPointerID, p)
	}

	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		a.interact.PointerDown(int(id)+1, gallery.Point{X: float64(x), Y: float64(y)}, now)
	}
	for _, id := range ebiten.AppendTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		a.interact.PointerMove(int(id)+1, gallery.Point{X: float64(x), Y: float64(y)})
	}
	for _, id := range inpututil.AppendJustReleasedTouchIDs(nil) {
		x, y := inpututil.TouchPositionInPreviousTick(id)
		a.interact.PointerUp(int(id)+1, gallery.Point{X: float64(x), Y: float64(y)})
	}

	if a.mag.Active() {
		a.updateMagnifier(p)
	}
}

func (a *App) handleModalKeys(ctx context.Context) {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.modal.Close()
		a.mag.Hide()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		a.modal.Navigate(ctx, 1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		a.modal.Navigate(ctx, -1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		a.modal.NavigateRow(ctx, true, a.layout.Columns)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		a.modal.NavigateRow(ctx, false, a.layout.Columns)
	case inpututil.IsKeyJustPressed(ebiten.KeyDelete),
		inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		go a.modal.Delete(ctx)
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		go a.modal.ToggleLike(ctx)
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		a.openTagMenu()
	case inpututil.IsKeyJustPressed(ebiten.KeyI):
		a.modal.ToggleMetadata()
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		a.copyPrompt()
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		if a.mag.Active() {
			a.mag.Hide()
		} else {
			a.updateMagnifier(cursorPoint())
		}
	}
}

// copyPrompt places the shown image's prompt on the system clipboard.
func (a *App) copyPrompt() {
	rec, ok := a.modal.Record()
	if !ok || rec.Prompt == nil || *rec.Prompt == "" {
		a.toasts.Notify("No prompt to copy")
		return
	}
	if err := clipboard.WriteAll(*rec.Prompt); err != nil {
		log.WithError(err).Warn("Clipboard write failed")
		a.toasts.Notify("Failed to copy prompt")
		return
	}
	a.toasts.Notify("Prompt copied")
}

// slideAnimationDuration paces the swipe transition.
const slideAnimationDuration = 180 * time.Millisecond

func (a *App) slideFinished(now time.Time) bool {
	if a.slideStartedAt.IsZero() {
		a.slideStartedAt = now
		return false
	}
	if now.Sub(a.slideStartedAt) >= slideAnimationDuration {
		a.slideStartedAt = time.Time{}
		return true
	}
	return false
}

// SlideProgress reports how far the active swipe animation has come,
// in [0, 1], for the renderer.
func (a *App) SlideProgress(now time.Time) float64 {
	if a.slideStartedAt.IsZero() {
		return 0
	}
	f := float64(now.Sub(a.slideStartedAt)) / float64(slideAnimationDuration)
	if f > 1 {
		f = 1
	}
	return f
}
