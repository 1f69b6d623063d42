package viewer

import "mediapilot/internal/gallery"

const (
	// MagSize is the square lens dimension in pixels.
	MagSize = 160.0
	// DefaultMagZoom is used when the configured zoom factor is unset.
	DefaultMagZoom = 4.0
)

// RenderedImageBounds computes where the image pixels actually sit inside
// a letterboxed container. A wider-than-container image fits the width
// and centers vertically; otherwise it fits the height and centers
// horizontally. False is returned for degenerate dimensions.
func RenderedImageBounds(container gallery.Rect, naturalW, naturalH float64) (gallery.Rect, bool) {
	if naturalW <= 0 || naturalH <= 0 || container.Width <= 0 || container.Height <= 0 {
		return gallery.Rect{}, false
	}
	imgRatio := naturalW / naturalH
	boxRatio := container.Width / container.Height

	var r gallery.Rect
	if imgRatio > boxRatio {
		r.Width = container.Width
		r.Height = container.Width / imgRatio
		r.Left = container.Left
		r.Top = container.Top + (container.Height-r.Height)/2
	} else {
		r.Height = container.Height
		r.Width = container.Height * imgRatio
		r.Top = container.Top
		r.Left = container.Left + (container.Width-r.Width)/2
	}
	return r, true
}

// Lens is a magnifier placement: where to draw the lens and which offset
// of the zoomed source image sits at its top-left corner.
type Lens struct {
	Rect gallery.Rect
	BgX  float64
	BgY  float64
}

// Magnifier positions a fixed-size zoom lens over the rendered portion
// of a letterboxed image. The lens hides whenever the pointer leaves the
// rendered bounds.
type Magnifier struct {
	Size   float64
	Zoom   float64
	active bool
	lens   Lens
}

// NewMagnifier builds a magnifier with the given zoom factor, falling
// back to the default when zoom is not positive.
func NewMagnifier(zoom float64) *Magnifier {
	if zoom <= 0 {
		zoom = DefaultMagZoom
	}
	return &Magnifier{Size: MagSize, Zoom: zoom}
}

// Active reports whether the lens is currently shown.
func (m *Magnifier) Active() bool { return m.active }

// CurrentLens returns the last computed placement.
func (m *Magnifier) CurrentLens() Lens { return m.lens }

// Hide deactivates the lens.
func (m *Magnifier) Hide() { m.active = false }

// Update moves the lens to follow the pointer at p over an image with
// the given natural dimensions rendered inside container. It returns
// false, hiding the lens, when the pointer is outside the rendered
// image area.
func (m *Magnifier) Update(p gallery.Point, container gallery.Rect, naturalW, naturalH float64) bool {
	rendered, ok := RenderedImageBounds(container, naturalW, naturalH)
	if !ok || !containsPoint(rendered, p) {
		m.active = false
		return false
	}

	rx := clamp01((p.X - rendered.Left) / rendered.Width)
	ry := clamp01((p.Y - rendered.Top) / rendered.Height)

	m.lens = Lens{
		Rect: gallery.Rect{
			Left:   p.X - m.Size/2,
			Top:    p.Y - m.Size/2,
			Width:  m.Size,
			Height: m.Size,
		},
		BgX: rx*naturalW*m.Zoom - m.Size/2,
		BgY: ry*naturalH*m.Zoom - m.Size/2,
	}
	m.active = true
	return true
}

func containsPoint(r gallery.Rect, p gallery.Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
