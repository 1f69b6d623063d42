package ui

import (
	"math"

	"mediapilot/internal/gallery"
)

const (
	// scrollSentinelMargin triggers the next page fetch when the content
	// bottom comes within this distance of the viewport bottom.
	scrollSentinelMargin = 400.0
	// visibilityMargin extends the viewport for thumbnail loading so
	// cards just off screen are already decoded when scrolled in.
	visibilityMargin = 200.0
)

// GridLayout positions gallery cards in a fixed-size grid and answers
// the geometry questions the rest of the UI asks: which cards are near
// the viewport, where a card sits on screen, and whether the scroll
// position warrants fetching another page.
type GridLayout struct {
	CardWidth  float64
	CardHeight float64
	Gap        float64

	Columns   int
	ViewportW float64
	ViewportH float64
	Scroll    float64
}

// NewGridLayout builds a layout for the given card size and gap.
func NewGridLayout(cardW, cardH, gap float64) *GridLayout {
	return &GridLayout{CardWidth: cardW, CardHeight: cardH, Gap: gap, Columns: 1}
}

// Reflow recomputes the column count for a viewport size and clamps the
// scroll position against the content laid out with n cards.
func (g *GridLayout) Reflow(viewportW, viewportH float64, n int) {
	g.ViewportW = viewportW
	g.ViewportH = viewportH
	cols := int((viewportW + g.Gap) / (g.CardWidth + g.Gap))
	if cols < 1 {
		cols = 1
	}
	g.Columns = cols
	g.ClampScroll(n)
}

// ContentHeight is the total laid-out height for n cards.
func (g *GridLayout) ContentHeight(n int) float64 {
	if n <= 0 {
		return 0
	}
	rows := (n + g.Columns - 1) / g.Columns
	return float64(rows)*(g.CardHeight+g.Gap) - g.Gap
}

// ClampScroll keeps the scroll offset inside the content for n cards.
func (g *GridLayout) ClampScroll(n int) {
	max := g.ContentHeight(n) - g.ViewportH
	if max < 0 {
		max = 0
	}
	if g.Scroll > max {
		g.Scroll = max
	}
	if g.Scroll < 0 {
		g.Scroll = 0
	}
}

// CardRect returns the on-screen rectangle of card i.
func (g *GridLayout) CardRect(i int) gallery.Rect {
	row := i / g.Columns
	col := i % g.Columns
	return gallery.Rect{
		Left:   float64(col) * (g.CardWidth + g.Gap),
		Top:    float64(row)*(g.CardHeight+g.Gap) - g.Scroll,
		Width:  g.CardWidth,
		Height: g.CardHeight,
	}
}

// Bounds maps each filename to its card rectangle, the explicit
// view-handle table used for rectangle selection.
func (g *GridLayout) Bounds(filenames []string) map[string]gallery.Rect {
	out := make(map[string]gallery.Rect, len(filenames))
	for i, name := range filenames {
		out[name] = g.CardRect(i)
	}
	return out
}

// VisibleRange returns the half-open card index range whose rows fall
// within the viewport extended by the thumbnail loading margin.
func (g *GridLayout) VisibleRange(n int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	rowH := g.CardHeight + g.Gap
	firstRow := int(math.Floor((g.Scroll - visibilityMargin) / rowH))
	if firstRow < 0 {
		firstRow = 0
	}
	lastRow := int(math.Floor((g.Scroll + g.ViewportH + visibilityMargin) / rowH))

	first := firstRow * g.Columns
	last := (lastRow + 1) * g.Columns
	if first > n {
		first = n
	}
	if last > n {
		last = n
	}
	return first, last
}

// NeedMore reports whether the scroll position has come close enough to
// the content bottom to fetch the next page.
func (g *GridLayout) NeedMore(n int) bool {
	return g.Scroll+g.ViewportH+scrollSentinelMargin >= g.ContentHeight(n)
}

// CardAt returns the index of the card containing the point, or -1.
func (g *GridLayout) CardAt(p gallery.Point, n int) int {
	if p.X < 0 || p.X >= g.ViewportW {
		return -1
	}
	col := int(p.X / (g.CardWidth + g.Gap))
	if col >= g.Columns {
		return -1
	}
	// Reject clicks in the gap to the right of a card.
	if p.X-float64(col)*(g.CardWidth+g.Gap) > g.CardWidth {
		return -1
	}
	y := p.Y + g.Scroll
	if y < 0 {
		return -1
	}
	row := int(y / (g.CardHeight + g.Gap))
	if y-float64(row)*(g.CardHeight+g.Gap) > g.CardHeight {
		return -1
	}
	i := row*g.Columns + col
	if i < 0 || i >= n {
		return -1
	}
	return i
}
