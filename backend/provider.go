// Package backend defines the external collaborator contracts the core
// consumes but never implements (spec §6: "Backend contract (page data
// provider). Consumed, not implemented."), plus a decoded-bitmap
// adapter bridging those contracts to the coordinator and page
// packages, and a small reference provider used by tests and the demo
// command.
package backend

import (
	"context"

	"github.com/infinitepdf/viewer-core/coordinator"
	"github.com/infinitepdf/viewer-core/tile"
)

// Blob is an opaque rasterized image as the backend returns it: encoded
// bytes plus the format they're encoded in. Decoding happens in
// DecodeBitmap, out of the provider's concern (spec §1: rasterization
// itself is out of scope).
type Blob struct {
	Data   []byte
	Format string // "png", "jpeg"
}

// PageImageOptions parametrizes GetPageImage/GetPageImageDualRes (spec
// §6: "{scale, dpi, format}").
type PageImageOptions struct {
	Scale  float64
	DPI    float64
	Format string
}

// TextSpan is one run of extracted text positioned in page-local
// coordinates.
type TextSpan struct {
	Text                string
	X, Y, Width, Height float64
}

// TextLayer is the optional per-page text layer (spec §6:
// "getPageTextLayer(page) → TextLayer — optional; failure tolerated").
type TextLayer struct {
	Spans []TextSpan
}

// DualResUpgrade is delivered on DualResResult.Upgrade once the
// higher-quality render finishes, or never if the provider has no
// upgrade to offer.
type DualResUpgrade struct {
	Blob Blob
	Err  error
}

// DualResResult is GetPageImageDualRes's return shape (spec §6:
// "{initial: Blob, initialScale, isFullQuality, upgradePromise?}"). A
// promise doesn't translate to Go; an optional channel serves the same
// "deliver later, maybe never" purpose.
type DualResResult struct {
	Initial       Blob
	InitialScale  float64
	IsFullQuality bool
	Upgrade       <-chan DualResUpgrade
}

// PageDataProvider is the backend contract (spec §6). The core only
// calls it; every method's real implementation lives in the host
// environment, outside this module.
type PageDataProvider interface {
	// GetPageImage returns a fully rasterized page at the requested
	// scale. The backend may silently cap the scale, so callers must
	// not assume the returned Blob matches the requested pixel count
	// exactly.
	GetPageImage(ctx context.Context, page int, opts PageImageOptions) (Blob, error)

	// GetPageImageDualRes optionally returns a cheap initial image plus
	// an upgrade channel for a higher-quality render. A provider that
	// doesn't support this returns (nil, nil).
	GetPageImageDualRes(ctx context.Context, page int, opts PageImageOptions) (*DualResResult, error)

	// GetPageTextLayer optionally returns extracted text for a page.
	// Callers tolerate both a nil result and an error.
	GetPageTextLayer(ctx context.Context, page int) (*TextLayer, error)

	// RenderTile rasterizes a single tile at the coordinate's scale.
	RenderTile(ctx context.Context, coord tile.Coordinate) (Blob, error)

	// RenderCoordinator exposes the provider's own coordinator, when it
	// runs one, for capability discovery (spec §6:
	// "getRenderCoordinator() / isTileRenderingAvailable()").
	RenderCoordinator() (*coordinator.Coordinator, bool)

	// IsTileRenderingAvailable reports whether RenderTile is usable at
	// all; a provider lacking tile-level rasterization forces
	// full-page-only rendering.
	IsTileRenderingAvailable() bool

	// SuspendThumbnailGeneration and ResumeThumbnailGeneration
	// cooperatively throttle background thumbnail work during active
	// interaction (spec §6).
	SuspendThumbnailGeneration()
	ResumeThumbnailGeneration()

	// DocumentID returns an opaque identity used for cache and queue
	// isolation. ok is false when the provider has no document loaded.
	DocumentID() (id string, ok bool)
}
