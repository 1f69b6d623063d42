package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	log "github.com/sirupsen/logrus"

	"mediapilot/internal/api"
	"mediapilot/internal/gallery"
	"mediapilot/internal/models"
	"mediapilot/internal/thumbcache"
	"mediapilot/internal/viewer"
)

const (
	defaultCardWidth  = 220.0
	defaultCardHeight = 220.0
	defaultCardGap    = 12.0
	wheelScrollSpeed  = 60.0
	// doubleTapWindow is how quickly a second tap on the same card must
	// land to open the viewer.
	doubleTapWindow = 300 * time.Millisecond
)

// App is the Ebitengine front end: a scrolling thumbnail grid with
// rectangle selection and a full-screen viewer layered on top. All
// shared state mutation happens on the Update goroutine; network work
// runs in goroutines and lands back here through the image store's
// completion channel and the controller's locked accessors.
type App struct {
	cfg    models.Config
	ctrl   *gallery.Controller
	state  *gallery.State
	client *api.Client
	store  *ImageStore
	thumbs *gallery.ThumbLoader
	drag   *gallery.DragSelect
	toasts *Toasts
	layout *GridLayout

	modal    *viewer.Modal
	interact *viewer.Interaction
	mag      *viewer.Magnifier
	pre      *viewer.Preloader

	// thumbOwner routes image-store completions back to the filename
	// whose thumbnail chain requested the URL.
	thumbOwner map[string]string

	lastTapName string
	lastTapAt   time.Time

	overlay   overlayMode
	menuIndex int
	textEntry string

	slideStartedAt time.Time

	visibleNames []string
}

// NewApp wires the full client: controller, caches, loaders and viewer.
func NewApp(cfg models.Config, httpClient *http.Client, disk *thumbcache.Cache) *App {
	client := api.NewClient(cfg.APIBaseURL, httpClient)
	state := gallery.NewState(cfg.Gallery.Folder, cfg.Gallery.Sort)
	toasts := NewToasts(time.Now)
	ctrl := gallery.NewController(client, state, toasts, cfg.Gallery.PageLimit, cfg.DownloadDir)
	store := NewImageStore(httpClient, cfg.Gallery.CacheSize, disk)

	a := &App{
		cfg:        cfg,
		ctrl:       ctrl,
		state:      state,
		client:     client,
		store:      store,
		toasts:     toasts,
		layout:     NewGridLayout(defaultCardWidth, defaultCardHeight, defaultCardGap),
		thumbOwner: make(map[string]string),
	}
	a.thumbs = gallery.NewThumbLoader(a.startThumb)
	a.drag = gallery.NewDragSelect(a.onDragSelect)
	a.pre = viewer.NewPreloader(store.Fetch, cfg.Viewer.PreloadAhead, cfg.Viewer.PreloadBack)
	a.modal = viewer.NewModal(ctrl, client, a.pre)
	a.mag = viewer.NewMagnifier(cfg.Viewer.ZoomFactor)
	a.interact = viewer.NewInteraction(viewer.InteractionCallbacks{
		OnSwipe:       a.modal.BeginSlide,
		OnLongPress:   func(p gallery.Point) { a.updateMagnifier(p) },
		OnMagnifyMove: func(p gallery.Point) { a.updateMagnifier(p) },
		OnMagnifyEnd:  func() { a.mag.Hide() },
		OnPinchStart:  func(p gallery.Point) { a.updateMagnifier(p) },
		OnPinchMove:   func(p gallery.Point) { a.updateMagnifier(p) },
		OnTap:         func(gallery.Point) { a.modal.ToggleMetadata() },
	})

	ctrl.OnRemove = a.onRecordRemoved
	return a
}

// Start fetches the initial page and folder list in the background.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.ctrl.LoadFolders(ctx); err != nil {
			log.WithError(err).Warn("Initial folder load failed")
		}
		if err := a.ctrl.LoadNextPage(ctx); err != nil {
			log.WithError(err).Warn("Initial page load failed")
		}
	}()
}

// Close releases background workers and caches.
func (a *App) Close() {
	a.pre.Close()
}

func (a *App) startThumb(filename, url string) {
	a.thumbOwner[url] = filename
	a.store.Request(url, true)
}

func (a *App) onDragSelect(rect gallery.Rect) {
	a.ctrl.SelectWithin(rect, a.layout.Bounds(a.visibleNames))
}

// onRecordRemoved drops every cached artifact of a removed image.
func (a *App) onRecordRemoved(filename string) {
	folder := ""
	a.ctrl.Access(func(s *gallery.State) { folder = s.Query.Folder })
	thumbURL := a.client.ThumbURL(filename, folder)
	fullURL := a.client.FullURL(filename, folder)
	a.store.Invalidate(thumbURL)
	a.store.Invalidate(fullURL)
	a.pre.Forget(thumbURL)
	a.pre.Forget(fullURL)
	a.thumbs.Forget(filename)
	delete(a.thumbOwner, thumbURL)
	delete(a.thumbOwner, fullURL)
}

// Update advances the whole client by one tick.
func (a *App) Update() error {
	now := time.Now()
	ctx := context.Background()

	a.store.Drain(func(url string, err error) {
		filename, ok := a.thumbOwner[url]
		if !ok {
			return
		}
		if err == nil {
			a.thumbs.Loaded(filename, url)
		} else {
			a.thumbs.Failed(filename, url, now)
		}
	})

	a.ctrl.Tick(now)
	a.thumbs.Tick(now)
	a.drag.Tick(now)
	a.interact.Tick(now)
	a.toasts.Tick(now)

	a.refreshVisible()
	w, h := ebiten.WindowSize()
	a.layout.Reflow(float64(w), float64(h), len(a.visibleNames))

	if a.modal.Opened() {
		a.updateModal(ctx, now)
	} else {
		a.updateGallery(ctx, now)
	}

	a.requestVisibleThumbs()
	a.maybeFetchMore(ctx)
	return nil
}

func (a *App) refreshVisible() {
	names := a.visibleNames[:0]
	a.ctrl.Access(func(s *gallery.State) {
		for _, rec := range s.Visible() {
			names = append(names, rec.Filename)
		}
	})
	a.visibleNames = names
}

// requestVisibleThumbs starts thumbnail chains for every card near the
// viewport.
func (a *App) requestVisibleThumbs() {
	folder := ""
	a.ctrl.Access(func(s *gallery.State) { folder = s.Query.Folder })
	first, last := a.layout.VisibleRange(len(a.visibleNames))
	for i := first; i < last; i++ {
		name := a.visibleNames[i]
		a.thumbs.Request(name, a.client.ThumbURL(name, folder), a.client.FullURL(name, folder))
	}
}

func (a *App) maybeFetchMore(ctx context.Context) {
	ending := false
	a.ctrl.Access(func(s *gallery.State) { ending = s.IsEnd() })
	if ending || a.ctrl.Loading() {
		return
	}
	if a.layout.NeedMore(len(a.visibleNames)) {
		go func() {
			if err := a.ctrl.LoadNextPage(ctx); err != nil {
				log.WithError(err).Debug("Page fetch failed")
			}
		}()
	}
}

func (a *App) updateMagnifier(p gallery.Point) {
	url := a.modal.CurrentURL()
	img, ok := a.store.Get(url)
	if !ok {
		a.mag.Hide()
		return
	}
	bounds := img.Bounds()
	a.mag.Update(p, a.modalContainer(), float64(bounds.Dx()), float64(bounds.Dy()))
}

func (a *App) modalContainer() gallery.Rect {
	w, h := ebiten.WindowSize()
	return gallery.Rect{Left: 0, Top: 0, Width: float64(w), Height: float64(h)}
}

// Layout implements ebiten.Game.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Run opens the window and drives the game loop until exit.
func (a *App) Run() error {
	ebiten.SetWindowTitle("MediaPilot Gallery")
	ebiten.SetWindowSize(1280, 800)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	defer a.Close()
	return ebiten.RunGame(a)
}
