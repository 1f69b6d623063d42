package gallery

// Point is a position in window coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in window coordinates.
type Rect struct {
	Left, Top, Width, Height float64
}

// RectFromPoints builds the min/max rectangle spanned by two points.
func RectFromPoints(a, b Point) Rect {
	left, right := a.X, b.X
	if left > right {
		left, right = right, left
	}
	top, bottom := a.Y, b.Y
	if top > bottom {
		top, bottom = bottom, top
	}
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Intersects reports whether two rectangles overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Left+o.Width &&
		o.Left < r.Left+r.Width &&
		r.Top < o.Top+o.Height &&
		o.Top < r.Top+r.Height
}
