// Package page implements the page element described in spec §4.6: a
// per-page canvas owner that renders full-page images or composes
// tiles, and that never shows a blank canvas during a mode transition.
package page

import (
	"image"

	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/tile"
)

// Drawable is a cached bitmap that also exposes its pixels for
// compositing. cache.Bitmap stays opaque (Width/Height/Close only) so
// the cache package has no image dependency; concrete backends (GPU or
// software) implement Drawable so page can actually draw what the cache
// hands back.
type Drawable interface {
	cache.Bitmap
	Image() image.Image
}

// Canvas abstracts over the GPU (ebiten) and software backing surfaces
// a PageElement draws into. Two concrete implementations exist:
// canvas_ebiten.go (ebiten.Image + GeoM) and canvas_software.go
// (golang.org/x/image/draw).
type Canvas interface {
	Resize(w, h int)
	Width() int
	Height() int
	// DrawImage composites img into the destination rectangle, scaling
	// if the source and destination sizes differ (cssStretch).
	DrawImage(img image.Image, dstX, dstY, dstW, dstH float64)
	Clear()
	Close()
}

// Tile is one decoded tile bitmap positioned in element-local
// coordinates (spec §4.6: renderTiles/addTilesToExistingCanvas).
type Tile struct {
	Bitmap Drawable
	X, Y   float64
	W, H   float64
}

// TransformSnapshot is captured at render-request time (spec §4.6).
// RenderTiles reads only ContainerW/ContainerH and Epoch from it, for the
// coverage check; tile positions come from each Tile's own X/Y/W/H.
type TransformSnapshot struct {
	ContainerW, ContainerH float64
	PDFToElementScale      float64
	ExpectedTileBounds     tile.Rect
	Epoch                  int64
}

// MinCoverageFraction is the minimum fraction of viewport-tile area an
// additive composite must cover before it is drawn at all (spec §4.6:
// "Coverage policy").
const MinCoverageFraction = 0.25

// CanvasFactory allocates a fresh Canvas, used to lazily create the
// snapshot and overlay canvases only when a mode transition needs them.
type CanvasFactory func() Canvas

// Element is one page's canvas owner (spec §4.6: PageElement).
type Element struct {
	Page int

	newCanvas CanvasFactory
	main      Canvas
	snapshot  Canvas
	overlay   Canvas

	width, height float64
	zoom          float64

	isRendered    bool
	renderedEpoch int64
}

// New constructs an Element with its main canvas allocated eagerly and
// snapshot/overlay left nil until a mode transition needs them.
func New(pageNum int, factory CanvasFactory) *Element {
	return &Element{
		Page:      pageNum,
		newCanvas: factory,
		main:      factory(),
	}
}

// SetDimensions configures the wrapper and backing canvas logical size
// (spec §4.6: setDimensions(w, h)).
func (e *Element) SetDimensions(w, h float64) {
	e.width, e.height = w, h
	e.main.Resize(int(w), int(h))
}

// SetFinalDimensions configures final logical size, incorporating zoom
// when unified is true (spec §4.6: setFinalDimensions(w, h, zoom); in
// unified mode, final dimensions incorporate zoom).
func (e *Element) SetFinalDimensions(w, h, zoom float64, unified bool) {
	e.zoom = zoom
	if unified {
		w *= zoom
		h *= zoom
	}
	e.SetDimensions(w, h)
}

// Render decodes a full-page bitmap and draws it to the main canvas,
// marking the element rendered at epoch (spec §4.6: render(data,
// zoomAwareScale)).
func (e *Element) Render(bmp Drawable, epoch int64) {
	e.main.Clear()
	e.main.DrawImage(bmp.Image(), 0, 0, e.width, e.height)
	e.isRendered = true
	e.renderedEpoch = epoch
}

// RenderTiles composes tiles onto the main canvas at each Tile's own
// X/Y/W/H; the snapshot does not reposition them. The coverage check
// uses the snapshot's container size, or the element's current
// dimensions if currentEpoch exceeds the snapshot's epoch (spec §4.6:
// renderTiles). Returns false (and closes every
// tile's bitmap) if the composite fails the coverage policy or
// forceFullPage is set, since additive tiles are pointless in that
// case.
func (e *Element) RenderTiles(tiles []Tile, snapshot TransformSnapshot, currentEpoch int64, forceFullPage bool) bool {
	if forceFullPage {
		closeAll(tiles)
		return false
	}
	if !e.coverageOK(tiles, snapshot, currentEpoch) {
		closeAll(tiles)
		return false
	}
	e.main.Resize(int(e.width), int(e.height))
	for _, t := range tiles {
		e.main.DrawImage(t.Bitmap.Image(), t.X, t.Y, t.W, t.H)
	}
	e.isRendered = true
	e.renderedEpoch = currentEpoch
	return true
}

// AddTilesToExistingCanvas additively composites newly arrived tiles
// onto an already-rendered canvas. Returns false and closes every tile
// if tileEpoch is incompatible with the element's rendered epoch, or if
// coverage falls below MinCoverageFraction (spec §4.6).
func (e *Element) AddTilesToExistingCanvas(tiles []Tile, tileEpoch int64) bool {
	if tileEpoch != e.renderedEpoch {
		closeAll(tiles)
		return false
	}
	if coverageFraction(tiles, e.width, e.height) < MinCoverageFraction {
		closeAll(tiles)
		return false
	}
	for _, t := range tiles {
		e.main.DrawImage(t.Bitmap.Image(), t.X, t.Y, t.W, t.H)
	}
	return true
}

// coverageOK applies the 25% coverage policy, falling back to current
// element dimensions when the snapshot is stale relative to
// currentEpoch.
func (e *Element) coverageOK(tiles []Tile, snapshot TransformSnapshot, currentEpoch int64) bool {
	w, h := snapshot.ContainerW, snapshot.ContainerH
	if currentEpoch > snapshot.Epoch {
		w, h = e.width, e.height
	}
	return coverageFraction(tiles, w, h) >= MinCoverageFraction
}

func coverageFraction(tiles []Tile, containerW, containerH float64) float64 {
	if containerW <= 0 || containerH <= 0 {
		return 0
	}
	var covered float64
	for _, t := range tiles {
		covered += t.W * t.H
	}
	return covered / (containerW * containerH)
}

func closeAll(tiles []Tile) {
	for _, t := range tiles {
		t.Bitmap.Close()
	}
}

// canvasReader is an optional capability a Canvas backend may support,
// letting the page package read back current pixels to copy them into
// another canvas. Both concrete backends (canvas_ebiten.go,
// canvas_software.go) implement it.
type canvasReader interface {
	Image() image.Image
}

// CaptureSnapshot copies the main canvas's current content into the
// snapshot canvas, so it can be restored if a fresh render is aborted
// before it commits anything (spec §4.6: PageElement owns a snapshot
// canvas that "holds last-known-good content during transitions").
func (e *Element) CaptureSnapshot() {
	reader, ok := e.main.(canvasReader)
	if !ok {
		return
	}
	if e.snapshot != nil {
		e.snapshot.Close()
	}
	e.snapshot = e.newCanvas()
	e.snapshot.Resize(e.main.Width(), e.main.Height())
	e.snapshot.DrawImage(reader.Image(), 0, 0, float64(e.main.Width()), float64(e.main.Height()))
}

// RestoreFromSnapshot draws the snapshot canvas's content back onto
// main. Used to preserve the never-blank invariant (spec §9) when a
// render path that hid or cleared the main canvas fails or is
// rejected. Reports false if no snapshot is available.
func (e *Element) RestoreFromSnapshot() bool {
	if e.snapshot == nil {
		return false
	}
	reader, ok := e.snapshot.(canvasReader)
	if !ok {
		return false
	}
	e.main.DrawImage(reader.Image(), 0, 0, float64(e.snapshot.Width()), float64(e.snapshot.Height()))
	return true
}

// PrepareForFullPageRender resizes the main canvas to the element's
// current size (spec §4.6: prepareForFullPageRender()). It does not hide
// the canvas while decoding: Canvas has no visibility state, so there is
// no matching show call.
func (e *Element) PrepareForFullPageRender() {
	e.main.Resize(int(e.width), int(e.height))
}

// PrepareForFullPageRenderWithOverlay allocates an overlay canvas for an
// atomic swap: the main canvas keeps showing old content while the
// overlay renders, then CommitOverlay swaps it in (spec §4.6:
// prepareForFullPageRenderWithOverlay(epoch)).
func (e *Element) PrepareForFullPageRenderWithOverlay(epoch int64) {
	if e.overlay != nil {
		e.overlay.Close()
	}
	e.overlay = e.newCanvas()
	e.overlay.Resize(int(e.width), int(e.height))
}

// CommitOverlay atomically replaces the main canvas with the overlay's
// content (spec §4.6: "one-frame-atomic replace"). bmp is the decoded
// full-page bitmap drawn to the overlay and then promoted to main.
func (e *Element) CommitOverlay(bmp Drawable, epoch int64) {
	if e.overlay == nil {
		e.Render(bmp, epoch)
		return
	}
	e.overlay.DrawImage(bmp.Image(), 0, 0, e.width, e.height)
	old := e.main
	e.main = e.overlay
	e.overlay = nil
	old.Close()
	e.isRendered = true
	e.renderedEpoch = epoch
}

// PrepareForTiledRender readies the main canvas for a sparse tile draw,
// retaining prior pixels as a base layer (spec §4.6:
// prepareForTiledRender()). Pixels are left untouched; only a logical
// resize is applied if dimensions changed.
func (e *Element) PrepareForTiledRender() {
	e.main.Resize(int(e.width), int(e.height))
}

// ResetCSSForZoomChange clears stale translate offsets so CSS
// positioning matches a fresh viewport without touching pixels (spec
// §4.6: resetCssForZoomChange()). The Canvas abstraction here has no
// separate CSS-offset state to clear; positioning is expressed entirely
// through DrawImage's destination rectangle, so this is a documented
// no-op retained for API symmetry with the spec.
func (e *Element) ResetCSSForZoomChange() {}

// HasRenderedContent reports whether the element has rendered content
// with non-zero dimensions (spec §4.6: hasRenderedContent()).
func (e *Element) HasRenderedContent() bool {
	return e.isRendered && e.main.Width() > 0 && e.main.Height() > 0
}

// ClearRendered marks the element as not holding valid rendered content,
// without destroying the canvas itself (spec §4.6: clearRendered()).
func (e *Element) ClearRendered() {
	e.isRendered = false
	e.renderedEpoch = 0
}

// Destroy releases every canvas the element owns (spec §4.6: destroy()).
func (e *Element) Destroy() {
	if e.main != nil {
		e.main.Close()
		e.main = nil
	}
	if e.snapshot != nil {
		e.snapshot.Close()
		e.snapshot = nil
	}
	if e.overlay != nil {
		e.overlay.Close()
		e.overlay = nil
	}
}

// RenderedEpoch returns the epoch of the content currently displayed.
func (e *Element) RenderedEpoch() int64 { return e.renderedEpoch }

// Dimensions returns the element's current logical width and height, as
// last set by SetDimensions/SetFinalDimensions, so a caller positioning
// incoming tiles can compute the PDF-to-element scale factor.
func (e *Element) Dimensions() (w, h float64) { return e.width, e.height }

// MainCanvas exposes the backing canvas for a host renderer that needs
// to draw it to screen directly (e.g. type-asserting to *EbitenCanvas
// and drawing its *ebiten.Image), rather than through the Canvas
// abstraction's DrawImage, which composites into the canvas, not out of
// it.
func (e *Element) MainCanvas() Canvas { return e.main }

// ShouldSkipFullPageRender reports whether, at the given zoom, the
// full-page render should be skipped entirely in favor of going direct
// to tiled, because full-page's scale cap would under-resolve the
// target tile scale (spec §4.6: "At very high zoom (> 8x), skip the
// intermediate full-page render").
func ShouldSkipFullPageRender(zoom float64) bool {
	return zoom > 8
}
