package gallery

import (
	"strings"

	"mediapilot/internal/models"
)

// FilterMode selects which subset of the fetched images is visible.
// Filtering is purely client-side; it never triggers a fetch.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterLiked
	FilterUnliked
)

func (m FilterMode) matches(img *models.ImageRecord) bool {
	switch m {
	case FilterLiked:
		return img.Liked
	case FilterUnliked:
		return !img.Liked
	default:
		return true
	}
}

// QueryState is the single source of truth for what the next fetch
// requests. Mutating folder, sort or search resets pagination.
type QueryState struct {
	Folder     string
	Sort       string
	Search     string
	Page       int
	TotalPages int
}

// State owns the gallery's canonical working set: the images fetched so
// far for the current query, the selection, and the race guards. The
// visible (filtered) view is always derived, never stored, so the two
// can't drift apart.
type State struct {
	Query  QueryState
	Filter FilterMode

	images []*models.ImageRecord
	byName map[string]*models.ImageRecord

	selection map[string]struct{}
	anchor    string

	// deleted holds filenames confirmed deleted server-side for the
	// lifetime of the process, so a stale in-flight page fetch cannot
	// re-introduce them.
	deleted map[string]struct{}

	// generation increments on every query reset; fetch responses
	// carrying an older generation are discarded.
	generation uint64

	isEnd bool
}

// NewState creates an empty gallery state for the given folder and sort.
func NewState(folder, sort string) *State {
	return &State{
		Query:     QueryState{Folder: folder, Sort: sort, Page: 0},
		byName:    make(map[string]*models.ImageRecord),
		selection: make(map[string]struct{}),
		deleted:   make(map[string]struct{}),
	}
}

// Generation returns the current query generation.
func (s *State) Generation() uint64 { return s.generation }

// IsEnd reports whether the last page of the current query was reached.
func (s *State) IsEnd() bool { return s.isEnd }

// Len returns the number of fetched records (pre-filter).
func (s *State) Len() int { return len(s.images) }

// Reset discards the entire working set and bumps the generation. Called
// whenever folder, sort or search changes, before refetching page 1.
func (s *State) Reset() {
	s.images = s.images[:0]
	s.byName = make(map[string]*models.ImageRecord)
	s.ClearSelection()
	s.Query.Page = 0
	s.Query.TotalPages = 0
	s.isEnd = false
	s.generation++
}

// AppendPage merges one fetched page into the working set. Records whose
// filenames were already loaded or already deleted are skipped, keeping
// the filename-uniqueness invariant intact.
func (s *State) AppendPage(page models.ImagePage) {
	for i := range page.Images {
		rec := page.Images[i]
		if _, dup := s.byName[rec.Filename]; dup {
			continue
		}
		if _, gone := s.deleted[rec.Filename]; gone {
			continue
		}
		copied := rec
		s.images = append(s.images, &copied)
		s.byName[copied.Filename] = &copied
	}
	s.Query.Page = page.Page
	s.Query.TotalPages = page.Pages
	if len(page.Images) == 0 || page.Page >= page.Pages {
		s.isEnd = true
	}
}

// Visible derives the filtered view from the canonical list, preserving
// fetch order. This is the index space used for modal navigation and
// range selection.
func (s *State) Visible() []*models.ImageRecord {
	if s.Filter == FilterAll {
		out := make([]*models.ImageRecord, len(s.images))
		copy(out, s.images)
		return out
	}
	var out []*models.ImageRecord
	for _, img := range s.images {
		if s.Filter.matches(img) {
			out = append(out, img)
		}
	}
	return out
}

// VisibleIndex returns the index of a filename in the visible view, or
// -1 when it is filtered out or not loaded.
func (s *State) VisibleIndex(filename string) int {
	idx := 0
	for _, img := range s.images {
		if !s.Filter.matches(img) {
			continue
		}
		if img.Filename == filename {
			return idx
		}
		idx++
	}
	return -1
}

// Record looks up a loaded record by filename.
func (s *State) Record(filename string) *models.ImageRecord {
	return s.byName[filename]
}

// Remove purges a record from the working set and the selection. The
// anchor is cleared when it pointed at the removed record.
func (s *State) Remove(filename string) {
	if _, ok := s.byName[filename]; !ok {
		return
	}
	delete(s.byName, filename)
	delete(s.selection, filename)
	for i, img := range s.images {
		if img.Filename == filename {
			s.images = append(s.images[:i], s.images[i+1:]...)
			break
		}
	}
	if s.anchor == filename {
		s.anchor = ""
	}
}

// MarkDeleted records a server-confirmed deletion in the race guard.
func (s *State) MarkDeleted(filename string) {
	s.deleted[filename] = struct{}{}
}

// IsDeleted reports whether a filename was confirmed deleted earlier in
// this session.
func (s *State) IsDeleted(filename string) bool {
	_, ok := s.deleted[filename]
	return ok
}

// ToggleSelect flips one filename's selection membership and makes it
// the new range anchor.
func (s *State) ToggleSelect(filename string) {
	if _, ok := s.selection[filename]; ok {
		delete(s.selection, filename)
	} else {
		s.selection[filename] = struct{}{}
	}
	s.anchor = filename
}

// SelectRange adds the inclusive contiguous slice between the current
// anchor and the target (in visible order, either direction) to the
// selection, then moves the anchor to the target. When either end is
// missing from the visible view it degrades to a plain toggle.
func (s *State) SelectRange(target string) {
	anchorIdx := s.VisibleIndex(s.anchor)
	targetIdx := s.VisibleIndex(target)
	if anchorIdx == -1 || targetIdx == -1 {
		s.ToggleSelect(target)
		return
	}
	start, end := anchorIdx, targetIdx
	if start > end {
		start, end = end, start
	}
	visible := s.Visible()
	for i := start; i <= end; i++ {
		s.selection[visible[i].Filename] = struct{}{}
	}
	s.anchor = target
}

// ReplaceSelection replaces the whole selection, used by rubber-band
// drags which always select exactly what the rectangle covers.
func (s *State) ReplaceSelection(filenames []string) {
	s.selection = make(map[string]struct{}, len(filenames))
	for _, f := range filenames {
		s.selection[f] = struct{}{}
	}
}

// ClearSelection empties the selection and invalidates the anchor.
func (s *State) ClearSelection() {
	s.selection = make(map[string]struct{})
	s.anchor = ""
}

// Selected reports whether a filename is currently selected.
func (s *State) Selected(filename string) bool {
	_, ok := s.selection[filename]
	return ok
}

// SelectionCount returns the number of selected images.
func (s *State) SelectionCount() int { return len(s.selection) }

// Selection returns the selected filenames in visible order. Stale
// entries whose records are gone are skipped.
func (s *State) Selection() []string {
	var out []string
	for _, img := range s.images {
		if _, ok := s.selection[img.Filename]; ok {
			out = append(out, img.Filename)
		}
	}
	return out
}

// Anchor returns the current range-selection anchor filename.
func (s *State) Anchor() string { return s.anchor }

// ReservedTagName reports whether a tag name collides with one of the
// folder tokens the backend treats specially. Matching is
// case-insensitive so "InvokeAI" and "invokeai" are both rejected.
func ReservedTagName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "untagged", "invokeai", "_root":
		return true
	}
	return false
}
