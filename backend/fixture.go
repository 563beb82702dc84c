package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/infinitepdf/viewer-core/coordinator"
	"github.com/infinitepdf/viewer-core/tile"
)

// PageSize is one page's dimensions in PDF points, the same unit
// backend/pdfinfo reads off a real document's MediaBox.
type PageSize struct {
	Width, Height float64
}

// FixtureProvider is a reference PageDataProvider that rasterizes a
// flat, page-numbered placeholder instead of talking to a real PDF
// renderer. It exists for tests and cmd/viewerdemo, where no actual
// rasterization backend is available; every method still honors the
// contract's shapes and capability-discovery semantics.
type FixtureProvider struct {
	mu         sync.Mutex
	documentID string
	sizes      []PageSize
	suspended  bool
	coord      *coordinator.Coordinator
}

// NewFixtureProvider constructs a FixtureProvider over sizes (one entry
// per page, 0-indexed).
func NewFixtureProvider(documentID string, sizes []PageSize) *FixtureProvider {
	return &FixtureProvider{documentID: documentID, sizes: sizes}
}

// AttachCoordinator lets a caller wire its own coordinator in so
// RenderCoordinator can hand it back out, matching real providers that
// own a rasterization worker pool behind the same interface.
func (f *FixtureProvider) AttachCoordinator(c *coordinator.Coordinator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coord = c
}

func (f *FixtureProvider) pageSize(page int) (PageSize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page < 0 || page >= len(f.sizes) {
		return PageSize{}, fmt.Errorf("backend: page %d out of range", page)
	}
	return f.sizes[page], nil
}

func (f *FixtureProvider) GetPageImage(ctx context.Context, page int, opts PageImageOptions) (Blob, error) {
	size, err := f.pageSize(page)
	if err != nil {
		return Blob{}, err
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := int(size.Width*scale), int(size.Height*scale)
	return encodePlaceholder(page, w, h)
}

func (f *FixtureProvider) GetPageImageDualRes(ctx context.Context, page int, opts PageImageOptions) (*DualResResult, error) {
	return nil, nil
}

func (f *FixtureProvider) GetPageTextLayer(ctx context.Context, page int) (*TextLayer, error) {
	return nil, nil
}

func (f *FixtureProvider) RenderTile(ctx context.Context, coord tile.Coordinate) (Blob, error) {
	if _, err := f.pageSize(coord.Page); err != nil {
		return Blob{}, err
	}
	size := coord.TileSize
	if size <= 0 {
		size = tile.TileSizeForZoom(1, true)
	}
	return encodePlaceholder(coord.Page, int(size), int(size))
}

func (f *FixtureProvider) RenderCoordinator() (*coordinator.Coordinator, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coord, f.coord != nil
}

func (f *FixtureProvider) IsTileRenderingAvailable() bool { return true }

func (f *FixtureProvider) SuspendThumbnailGeneration() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = true
}

func (f *FixtureProvider) ResumeThumbnailGeneration() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = false
}

// ThumbnailsSuspended reports the cooperative-throttling state, mainly
// for tests asserting the controller calls suspend/resume correctly.
func (f *FixtureProvider) ThumbnailsSuspended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suspended
}

func (f *FixtureProvider) DocumentID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.documentID == "" {
		return "", false
	}
	return f.documentID, true
}

// placeholderPalette assigns each page a distinct, deterministic color
// so fixture renders are visually distinguishable page to page.
var placeholderPalette = []color.RGBA{
	{R: 66, G: 133, B: 244, A: 255},
	{R: 219, G: 68, B: 55, A: 255},
	{R: 244, G: 180, B: 0, A: 255},
	{R: 15, G: 157, B: 88, A: 255},
	{R: 171, G: 71, B: 188, A: 255},
}

func encodePlaceholder(page, w, h int) (Blob, error) {
	if w <= 0 || h <= 0 {
		return Blob{}, errors.New("backend: non-positive placeholder dimensions")
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := placeholderPalette[page%len(placeholderPalette)]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Blob{}, fmt.Errorf("backend: encode placeholder: %w", err)
	}
	return Blob{Data: buf.Bytes(), Format: "png"}, nil
}

var _ PageDataProvider = (*FixtureProvider)(nil)
