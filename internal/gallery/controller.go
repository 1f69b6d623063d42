package gallery

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"mediapilot/internal/api"
	"mediapilot/internal/paths"

	"github.com/maruel/natural"
	log "github.com/sirupsen/logrus"
)

// Notifier is the single user-visible error channel. Every recoverable
// failure produces exactly one notification; none block interaction.
type Notifier interface {
	Notify(message string)
}

// SearchDebounce delays the reset+refetch after the last keystroke.
const SearchDebounce = 250 * time.Millisecond

// Controller owns the gallery working set and runs every operation
// against the backend. Methods that hit the network block and are meant
// to be called from their own goroutine by the UI layer; all state is
// guarded by one mutex, and Access gives the render side a consistent
// view under the same lock.
type Controller struct {
	mu     sync.Mutex
	client *api.Client
	state  *State
	notify Notifier

	pageLimit  int
	loading    bool
	loadingGen uint64

	folders []string

	searchTimer   CancelableTimer
	pendingSearch string

	downloadDir  string
	downloadBusy bool

	// OnRemove is invoked (outside the lock) whenever a record leaves
	// the working set, so the view layer can drop its handle and caches.
	OnRemove func(filename string)
}

// NewController wires a controller to its API client and notifier.
func NewController(client *api.Client, state *State, notify Notifier, pageLimit int, downloadDir string) *Controller {
	return &Controller{
		client:      client,
		state:       state,
		notify:      notify,
		pageLimit:   pageLimit,
		downloadDir: downloadDir,
	}
}

// Access runs fn with exclusive access to the gallery state. The render
// layer uses this for per-frame reads and for synchronous interactions
// like selection toggles.
func (c *Controller) Access(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.state)
}

// Loading reports whether a page fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Tick fires due timers. Called once per update frame.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchTimer.Fire(now)
}

// LoadNextPage fetches the next page for the current query. A second
// trigger while a load is in flight, or after the last page, is a
// no-op. A response that raced a query change is discarded.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || c.state.IsEnd() {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	gen := c.state.Generation()
	c.loadingGen = gen
	query := api.ImageQuery{
		Page:   c.state.Query.Page + 1,
		Limit:  c.pageLimit,
		Folder: c.state.Query.Folder,
		Sort:   c.state.Query.Sort,
		Search: c.state.Query.Search,
	}
	c.mu.Unlock()

	page, err := c.client.FetchImages(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadingGen == gen {
		c.loading = false
	}
	if gen != c.state.Generation() {
		// A newer query took over while this fetch was in flight.
		log.Debugf("Discarding stale page %d response (generation %d)", query.Page, gen)
		return nil
	}
	if err != nil {
		log.WithError(err).Warnf("Failed to load images page %d", query.Page)
		c.notify.Notify("Failed to load images")
		return err
	}
	c.state.AppendPage(page)
	return nil
}

// Reset discards the working set and refetches page 1 for the current
// query. Any in-flight fetch becomes stale.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.state.Reset()
	c.loading = false
	c.mu.Unlock()
	return c.LoadNextPage(ctx)
}

// SetFolder switches the active folder and refetches from page 1.
func (c *Controller) SetFolder(ctx context.Context, folder string) error {
	c.mu.Lock()
	if c.state.Query.Folder == folder {
		c.mu.Unlock()
		return nil
	}
	c.state.Query.Folder = folder
	c.mu.Unlock()
	return c.Reset(ctx)
}

// SetSort switches the sort mode and refetches from page 1.
func (c *Controller) SetSort(ctx context.Context, sortMode string) error {
	c.mu.Lock()
	if c.state.Query.Sort == sortMode {
		c.mu.Unlock()
		return nil
	}
	c.state.Query.Sort = sortMode
	c.mu.Unlock()
	return c.Reset(ctx)
}

// SetFilter switches the client-side filter. No network call is made;
// the visible view is re-derived from the images already fetched.
func (c *Controller) SetFilter(mode FilterMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Filter = mode
}

// SetSearchInput records a keystroke and (re)arms the debounce timer.
// The refetch happens SearchDebounce after the last keystroke.
func (c *Controller) SetSearchInput(text string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSearch = text
	c.searchTimer.Start(now, SearchDebounce, func() {
		query := c.pendingSearch
		go func() {
			if err := c.commitSearch(context.Background(), query); err != nil {
				log.WithError(err).Debug("Debounced search refetch failed")
			}
		}()
	})
}

// ClearSearch cancels any pending debounce and resets the search
// immediately.
func (c *Controller) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	c.searchTimer.Cancel()
	c.pendingSearch = ""
	c.mu.Unlock()
	return c.commitSearch(ctx, "")
}

func (c *Controller) commitSearch(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state.Query.Search == text {
		c.mu.Unlock()
		return nil
	}
	c.state.Query.Search = text
	c.mu.Unlock()
	return c.Reset(ctx)
}

// LoadFolders refreshes the folder/tag list from the backend.
func (c *Controller) LoadFolders(ctx context.Context) error {
	folders, err := c.client.FetchFolders(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to load folders")
		c.notify.Notify("Failed to load folders")
		return err
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return natural.Less(folders[i], folders[j])
	})
	c.mu.Lock()
	c.folders = folders
	c.mu.Unlock()
	return nil
}

// FolderOptions returns the folder dropdown entries: the two special
// buckets first, then every backend folder that isn't one of them.
func (c *Controller) FolderOptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []string{api.RootFolder, api.InvokeFolder}
	for _, f := range c.folders {
		if !ReservedTagName(f) {
			out = append(out, f)
		}
	}
	return out
}

// TagOptions returns the folders usable as tag targets. The import
// bucket is excluded: images cannot be tagged into it.
func (c *Controller) TagOptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.folders {
		if !ReservedTagName(f) {
			out = append(out, f)
		}
	}
	return out
}

// CreateTag validates and creates a new tag folder. Blank and reserved
// names are rejected before any network call.
func (c *Controller) CreateTag(ctx context.Context, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		c.notify.Notify("Tag name cannot be empty")
		return fmt.Errorf("%w: tag name must not be blank", api.ErrInvalidInput)
	}
	if ReservedTagName(trimmed) {
		c.notify.Notify(fmt.Sprintf("Tag name %q is reserved", trimmed))
		return fmt.Errorf("%w: tag name %q is reserved", api.ErrInvalidInput, trimmed)
	}
	created, err := c.client.CreateTag(ctx, trimmed)
	if err != nil {
		log.WithError(err).Warnf("Failed to create tag %q", trimmed)
		c.notify.Notify("Failed to create tag")
		return err
	}
	c.mu.Lock()
	c.folders = append(c.folders, created.Name)
	sort.SliceStable(c.folders, func(i, j int) bool {
		return natural.Less(c.folders[i], c.folders[j])
	})
	c.mu.Unlock()
	return nil
}

// ToggleLike optimistically flips an image's liked flag and reverts it
// when the backend rejects the change.
func (c *Controller) ToggleLike(ctx context.Context, filename string) {
	c.mu.Lock()
	rec := c.state.Record(filename)
	if rec == nil {
		c.mu.Unlock()
		return
	}
	prev := rec.Liked
	rec.Liked = !prev
	c.mu.Unlock()

	if err := c.client.SendLike(ctx, filename, !prev); err != nil {
		log.WithError(err).Warnf("Like toggle failed for %s, rolling back", filename)
		c.mu.Lock()
		if rec := c.state.Record(filename); rec != nil {
			rec.Liked = prev
		}
		c.mu.Unlock()
		c.notify.Notify("Failed to update like")
	}
}

// BulkLike toggles each selected image in turn with the single-image
// primitive; there is no batch endpoint.
func (c *Controller) BulkLike(ctx context.Context) {
	for _, filename := range c.selectionSnapshot() {
		c.ToggleLike(ctx, filename)
	}
}

// Delete removes one image. Deletion is not optimistic: the record and
// its card stay in place until the backend confirms.
func (c *Controller) Delete(ctx context.Context, filename string) error {
	c.mu.Lock()
	folder := c.state.Query.Folder
	c.mu.Unlock()

	if err := c.client.DeleteImage(ctx, filename, folder); err != nil {
		log.WithError(err).Warnf("Failed to delete %s", filename)
		c.notify.Notify(fmt.Sprintf("Failed to delete %s", filename))
		return err
	}

	c.mu.Lock()
	c.state.MarkDeleted(filename)
	c.state.Remove(filename)
	c.mu.Unlock()
	c.removed(filename)
	return nil
}

// BulkDelete deletes every selected image in turn, then clears the
// selection. Per-item failures leave that item in place and move on.
func (c *Controller) BulkDelete(ctx context.Context) {
	for _, filename := range c.selectionSnapshot() {
		_ = c.Delete(ctx, filename)
	}
	c.mu.Lock()
	c.state.ClearSelection()
	c.mu.Unlock()
}

// ApplyTag moves each filename into newFolder in turn. Successfully
// tagged images leave the working set immediately; a failing item gets
// one notification and does not block the rest.
func (c *Controller) ApplyTag(ctx context.Context, filenames []string, newFolder string) {
	c.mu.Lock()
	oldFolder := c.state.Query.Folder
	c.mu.Unlock()

	for _, filename := range filenames {
		if err := c.client.SendTag(ctx, filename, oldFolder, newFolder); err != nil {
			log.WithError(err).Warnf("Failed to tag %s into %s", filename, newFolder)
			c.notify.Notify(fmt.Sprintf("Failed to tag %s", filename))
			continue
		}
		c.mu.Lock()
		c.state.Remove(filename)
		c.mu.Unlock()
		c.removed(filename)
	}
	c.mu.Lock()
	c.state.ClearSelection()
	c.mu.Unlock()
}

// BulkTagSelection applies a tag to the current selection.
func (c *Controller) BulkTagSelection(ctx context.Context, newFolder string) {
	c.ApplyTag(ctx, c.selectionSnapshot(), newFolder)
}

// BulkDownload requests a zip of the selection and writes it to the
// download directory. The busy flag is always released, success or not.
func (c *Controller) BulkDownload(ctx context.Context) error {
	c.mu.Lock()
	if c.downloadBusy {
		c.mu.Unlock()
		return nil
	}
	c.downloadBusy = true
	folder := c.state.Query.Folder
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.downloadBusy = false
		c.mu.Unlock()
	}()

	filenames := c.selectionSnapshot()
	data, name, err := c.client.DownloadBulk(ctx, folder, filenames)
	if err != nil {
		log.WithError(err).Warn("Bulk download failed")
		c.notify.Notify("Download failed")
		return err
	}

	if err := os.MkdirAll(c.downloadDir, 0750); err != nil {
		c.notify.Notify("Download failed")
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	// The suggested name comes from a response header; sanitize it and
	// avoid clobbering earlier archives.
	target, err := paths.ArchivePath(c.downloadDir, name, api.DefaultDownloadName)
	if err != nil {
		c.notify.Notify("Download failed")
		return err
	}
	if err := os.WriteFile(target, data, 0600); err != nil {
		log.WithError(err).Warnf("Failed to write %s", target)
		c.notify.Notify("Download failed")
		return err
	}
	c.notify.Notify(fmt.Sprintf("Saved %s", target))
	return nil
}

// DownloadBusy reports whether a bulk download is running.
func (c *Controller) DownloadBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadBusy
}

// BulkUpscale queues the selection for upscaling and reports queued and
// failed counts distinctly.
func (c *Controller) BulkUpscale(ctx context.Context) error {
	c.mu.Lock()
	folder := c.state.Query.Folder
	c.mu.Unlock()

	filenames := c.selectionSnapshot()
	result, err := c.client.UpscaleBulk(ctx, folder, filenames)
	if err != nil {
		log.WithError(err).Warn("Bulk upscale failed")
		c.notify.Notify("Upscale failed")
		return err
	}
	switch {
	case len(result.Failed) == 0:
		c.notify.Notify(fmt.Sprintf("Queued %d image(s) for upscaling", result.Queued))
	case result.Queued > 0:
		c.notify.Notify(fmt.Sprintf("Queued %d image(s), %d failed", result.Queued, len(result.Failed)))
	default:
		c.notify.Notify(fmt.Sprintf("Upscale failed for %d image(s)", len(result.Failed)))
	}
	return nil
}

// SelectWithin replaces the selection with every card whose bounds
// intersect the rubber-band rectangle. bounds maps loaded filenames to
// their on-screen card rectangles.
func (c *Controller) SelectWithin(rect Rect, bounds map[string]Rect) {
	var hit []string
	c.mu.Lock()
	for _, img := range c.state.Visible() {
		if b, ok := bounds[img.Filename]; ok && rect.Intersects(b) {
			hit = append(hit, img.Filename)
		}
	}
	c.state.ReplaceSelection(hit)
	c.mu.Unlock()
}

func (c *Controller) selectionSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Selection()
}

func (c *Controller) removed(filename string) {
	if c.OnRemove != nil {
		c.OnRemove(filename)
	}
}
