package ui

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/goregular"

	"mediapilot/internal/gallery"
	"mediapilot/internal/viewer"
)

var (
	colorBackground = color.RGBA{24, 24, 28, 255}
	colorCard       = color.RGBA{44, 44, 52, 255}
	colorCardFailed = color.RGBA{80, 36, 36, 255}
	colorSelection  = color.RGBA{90, 160, 255, 255}
	colorDragFill   = color.RGBA{90, 160, 255, 48}
	colorLiked      = color.RGBA{255, 110, 140, 255}
	colorText       = color.RGBA{230, 230, 235, 255}
	colorDim        = color.RGBA{150, 150, 160, 255}
	colorOverlay    = color.RGBA{0, 0, 0, 190}
	colorToastBg    = color.RGBA{0, 0, 0, 160}
)

var fontSource *text.GoTextFaceSource

func init() {
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		log.WithError(err).Fatal("Failed to load embedded font")
	}
	fontSource = s
}

func uiFont(size float64) *text.GoTextFace {
	return &text.GoTextFace{Source: fontSource, Size: size}
}

func drawText(screen *ebiten.Image, s string, size, x, y float64, clr color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, uiFont(size), op)
}

func fillRect(screen *ebiten.Image, r gallery.Rect, clr color.RGBA) {
	vector.DrawFilledRect(screen, float32(r.Left), float32(r.Top), float32(r.Width), float32(r.Height), clr, false)
}

func strokeRect(screen *ebiten.Image, r gallery.Rect, width float32, clr color.RGBA) {
	vector.StrokeRect(screen, float32(r.Left), float32(r.Top), float32(r.Width), float32(r.Height), width, clr, false)
}

// Draw implements ebiten.Game.
func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	if a.modal.Opened() {
		a.drawModal(screen)
	} else {
		a.drawGrid(screen)
	}

	a.drawOverlay(screen)
	a.drawToasts(screen)
}

func (a *App) drawGrid(screen *ebiten.Image) {
	selected := make(map[string]bool)
	liked := make(map[string]bool)
	a.ctrl.Access(func(s *gallery.State) {
		for _, name := range s.Selection() {
			selected[name] = true
		}
		for _, rec := range s.Visible() {
			if rec.Liked {
				liked[rec.Filename] = true
			}
		}
	})

	first, last := a.layout.VisibleRange(len(a.visibleNames))
	for i := first; i < last; i++ {
		name := a.visibleNames[i]
		rect := a.layout.CardRect(i)
		a.drawCard(screen, name, rect, selected[name], liked[name])
	}

	if rect, ok := a.drag.ActiveRect(); ok {
		fillRect(screen, rect, colorDragFill)
		strokeRect(screen, rect, 1, colorSelection)
	}

	if a.ctrl.Loading() {
		drawText(screen, "Loading...", 14, 12, a.layout.ViewportH-24, colorDim)
	}
}

func (a *App) drawCard(screen *ebiten.Image, name string, rect gallery.Rect, selected, liked bool) {
	phase, known := a.thumbs.Phase(name)
	switch {
	case known && phase == gallery.ThumbFailed:
		fillRect(screen, rect, colorCardFailed)
		drawText(screen, "unavailable", 12, rect.Left+8, rect.Top+rect.Height/2, colorDim)
	default:
		if img, ok := a.store.Get(a.thumbs.CurrentURL(name)); ok {
			a.drawImageInRect(screen, img, rect)
		} else {
			fillRect(screen, rect, colorCard)
		}
	}

	if liked {
		drawText(screen, "♥", 16, rect.Left+rect.Width-22, rect.Top+6, colorLiked)
	}
	if selected {
		strokeRect(screen, rect, 3, colorSelection)
	}
}

// drawImageInRect fits img into rect preserving aspect ratio.
func (a *App) drawImageInRect(screen *ebiten.Image, img *ebiten.Image, rect gallery.Rect) {
	b := img.Bounds()
	target, ok := viewer.RenderedImageBounds(rect, float64(b.Dx()), float64(b.Dy()))
	if !ok {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterLinear
	op.GeoM.Scale(target.Width/float64(b.Dx()), target.Height/float64(b.Dy()))
	op.GeoM.Translate(target.Left, target.Top)
	screen.DrawImage(img, op)
}

func (a *App) drawModal(screen *ebiten.Image) {
	container := a.modalContainer()
	url := a.modal.CurrentURL()
	img, ok := a.store.Get(url)
	if !ok {
		a.store.Request(url, false)
		drawText(screen, "Loading...", 16, container.Width/2-36, container.Height/2, colorDim)
		return
	}

	// Slide the outgoing image during a swipe transition.
	offset := 0.0
	if dir, sliding := a.modal.Sliding(); sliding {
		progress := a.SlideProgress(time.Now())
		offset = progress * container.Width
		if dir == viewer.SwipeLeft {
			offset = -offset
		}
	}
	shifted := container
	shifted.Left += offset
	a.drawImageInRect(screen, img, shifted)

	if a.mag.Active() {
		a.drawMagnifier(screen, img)
	}
	if a.modal.MetadataVisible() {
		a.drawMetadata(screen, container)
	}
}

func (a *App) drawMagnifier(screen *ebiten.Image, img *ebiten.Image) {
	lens := a.mag.CurrentLens()
	clipRect := toImageRect(lens.Rect)
	clip, ok := screen.SubImage(clipRect).(*ebiten.Image)
	if !ok {
		return
	}
	clip.Fill(colorBackground)

	op := &ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterLinear
	op.GeoM.Scale(a.mag.Zoom, a.mag.Zoom)
	op.GeoM.Translate(lens.Rect.Left-lens.BgX, lens.Rect.Top-lens.BgY)
	clip.DrawImage(img, op)

	strokeRect(screen, lens.Rect, 2, colorText)
}

func (a *App) drawMetadata(screen *ebiten.Image, container gallery.Rect) {
	rec, ok := a.modal.Record()
	if !ok {
		return
	}
	lines := strings.Split(viewer.MetadataText(rec), "\n")

	boxH := float64(len(lines))*18 + 24
	box := gallery.Rect{Left: 0, Top: container.Height - boxH, Width: container.Width, Height: boxH}
	fillRect(screen, box, colorOverlay)
	for i, line := range lines {
		drawText(screen, line, 13, 16, box.Top+12+float64(i)*18, colorText)
	}
}

func (a *App) drawOverlay(screen *ebiten.Image) {
	switch a.overlay {
	case overlayTags:
		a.drawMenu(screen, "Move to tag:", a.tagMenuEntries())
	case overlayFolders:
		a.drawMenu(screen, "Folder:", a.ctrl.FolderOptions())
	case overlaySort:
		a.drawMenu(screen, "Sort by:", sortOptions)
	case overlaySearch:
		a.drawTextEntry(screen, "Search:")
	case overlayNewTag:
		a.drawTextEntry(screen, "New tag:")
	}
}

func (a *App) drawMenu(screen *ebiten.Image, title string, options []string) {
	if len(options) == 0 {
		return
	}
	boxW := 280.0
	boxH := float64(len(options))*22 + 40
	box := gallery.Rect{
		Left:   (a.layout.ViewportW - boxW) / 2,
		Top:    (a.layout.ViewportH - boxH) / 2,
		Width:  boxW,
		Height: boxH,
	}
	fillRect(screen, box, colorOverlay)
	strokeRect(screen, box, 1, colorDim)
	drawText(screen, title, 14, box.Left+14, box.Top+10, colorText)
	for i, option := range options {
		clr := colorDim
		if i == a.menuIndex {
			clr = colorSelection
		}
		drawText(screen, option, 13, box.Left+22, box.Top+34+float64(i)*22, clr)
	}
}

func (a *App) drawTextEntry(screen *ebiten.Image, label string) {
	boxW := 420.0
	boxH := 58.0
	box := gallery.Rect{
		Left:   (a.layout.ViewportW - boxW) / 2,
		Top:    (a.layout.ViewportH - boxH) / 2,
		Width:  boxW,
		Height: boxH,
	}
	fillRect(screen, box, colorOverlay)
	strokeRect(screen, box, 1, colorDim)
	drawText(screen, label, 14, box.Left+14, box.Top+8, colorText)
	drawText(screen, a.textEntry+"_", 14, box.Left+14, box.Top+32, colorSelection)
}

func (a *App) drawToasts(screen *ebiten.Image) {
	messages := a.toasts.Messages()
	y := a.layout.ViewportH - 40
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		w := float64(len(msg))*8 + 24
		box := gallery.Rect{Left: (a.layout.ViewportW - w) / 2, Top: y, Width: w, Height: 26}
		fillRect(screen, box, colorToastBg)
		drawText(screen, msg, 13, box.Left+12, box.Top+5, colorText)
		y -= 32
	}
}

func toImageRect(r gallery.Rect) image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Left+r.Width), int(r.Top+r.Height))
}
