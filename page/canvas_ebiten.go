package page

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenCanvas is the GPU-backed Canvas implementation, grounded on the
// teacher's own tile-drawing idiom (map.go: drawTile, lines.go:
// DrawLines) of a *ebiten.Image plus ebiten.DrawImageOptions.GeoM for
// positioning and scaling.
type EbitenCanvas struct {
	img *ebiten.Image
}

// NewEbitenCanvas constructs an empty canvas. Pass it as a
// page.CanvasFactory: func() page.Canvas { return page.NewEbitenCanvas() }.
func NewEbitenCanvas() *EbitenCanvas {
	return &EbitenCanvas{}
}

func (c *EbitenCanvas) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		if c.img != nil {
			c.img.Dispose()
			c.img = nil
		}
		return
	}
	if c.img != nil && c.img.Bounds().Dx() == w && c.img.Bounds().Dy() == h {
		return
	}
	old := c.img
	c.img = ebiten.NewImage(w, h)
	if old != nil {
		op := &ebiten.DrawImageOptions{}
		c.img.DrawImage(old, op)
		old.Dispose()
	}
}

func (c *EbitenCanvas) Width() int {
	if c.img == nil {
		return 0
	}
	return c.img.Bounds().Dx()
}

func (c *EbitenCanvas) Height() int {
	if c.img == nil {
		return 0
	}
	return c.img.Bounds().Dy()
}

// DrawImage composites img into the destination rectangle, scaling via
// GeoM when the source and destination sizes differ (the cssStretch
// case: a fallback bitmap drawn at a size other than its native one).
func (c *EbitenCanvas) DrawImage(img image.Image, dstX, dstY, dstW, dstH float64) {
	if c.img == nil {
		return
	}
	src := ebiten.NewImageFromImage(img)
	defer src.Dispose()
	sb := src.Bounds()
	op := &ebiten.DrawImageOptions{}
	if sb.Dx() > 0 && sb.Dy() > 0 {
		op.GeoM.Scale(dstW/float64(sb.Dx()), dstH/float64(sb.Dy()))
	}
	op.GeoM.Translate(dstX, dstY)
	c.img.DrawImage(src, op)
}

func (c *EbitenCanvas) Clear() {
	if c.img != nil {
		c.img.Clear()
	}
}

func (c *EbitenCanvas) Close() {
	if c.img != nil {
		c.img.Dispose()
		c.img = nil
	}
}

// Image returns the canvas's current content as a standard image.Image,
// supporting the optional canvasReader capability used by
// Element.CaptureSnapshot.
func (c *EbitenCanvas) Image() image.Image {
	if c.img == nil {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	return c.img
}
