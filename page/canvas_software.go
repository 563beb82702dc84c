package page

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// SoftwareCanvas is the CPU-backed Canvas implementation, used when no
// GPU context is available (headless rendering, tests, thumbnail
// generation). It composites with golang.org/x/image/draw, which
// performs the cssStretch scaling the GPU backend does via GeoM.Scale.
type SoftwareCanvas struct {
	img *image.RGBA
}

// NewSoftwareCanvas constructs an empty canvas.
func NewSoftwareCanvas() *SoftwareCanvas {
	return &SoftwareCanvas{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

func (c *SoftwareCanvas) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		c.img = image.NewRGBA(image.Rect(0, 0, 0, 0))
		return
	}
	if c.img.Bounds().Dx() == w && c.img.Bounds().Dy() == h {
		return
	}
	fresh := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(fresh, c.img.Bounds(), c.img, image.Point{}, draw.Src)
	c.img = fresh
}

func (c *SoftwareCanvas) Width() int  { return c.img.Bounds().Dx() }
func (c *SoftwareCanvas) Height() int { return c.img.Bounds().Dy() }

// DrawImage composites img into the destination rectangle, using
// bilinear scaling when source and destination sizes differ.
func (c *SoftwareCanvas) DrawImage(img image.Image, dstX, dstY, dstW, dstH float64) {
	dst := image.Rect(int(dstX), int(dstY), int(dstX+dstW), int(dstY+dstH))
	xdraw.BiLinear.Scale(c.img, dst, img, img.Bounds(), xdraw.Over, nil)
}

func (c *SoftwareCanvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (c *SoftwareCanvas) Close() {
	c.img = image.NewRGBA(image.Rect(0, 0, 0, 0))
}

// Image returns the canvas's current content, supporting the optional
// canvasReader capability used by Element.CaptureSnapshot.
func (c *SoftwareCanvas) Image() image.Image {
	return c.img
}
