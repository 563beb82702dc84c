package backend

import (
	"context"
	"fmt"

	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/coordinator"
	"github.com/infinitepdf/viewer-core/tile"
)

// ProviderBackend adapts a PageDataProvider into coordinator.Backend,
// translating coordinator.Request into the matching provider call and
// decoding the returned Blob into a cache.Bitmap.
type ProviderBackend struct {
	Provider PageDataProvider
}

// NewProviderBackend constructs a ProviderBackend.
func NewProviderBackend(p PageDataProvider) *ProviderBackend {
	return &ProviderBackend{Provider: p}
}

// Render implements coordinator.Backend.
func (b *ProviderBackend) Render(ctx context.Context, req coordinator.Request) (cache.Bitmap, error) {
	switch req.Kind {
	case coordinator.TileKind:
		if !b.Provider.IsTileRenderingAvailable() {
			return nil, fmt.Errorf("backend: tile rendering unavailable")
		}
		coord := tile.Coordinate{
			Page:  req.Identity.Page,
			TileX: req.Identity.TileX,
			TileY: req.Identity.TileY,
			Scale: req.Identity.Scale,
		}
		blob, err := b.Provider.RenderTile(ctx, coord)
		if err != nil {
			return nil, fmt.Errorf("backend: render tile: %w", err)
		}
		return DecodeBitmap(blob)
	case coordinator.PageKind:
		blob, err := b.Provider.GetPageImage(ctx, req.Identity.Page, PageImageOptions{Scale: float64(req.Identity.Scale)})
		if err != nil {
			return nil, fmt.Errorf("backend: render page: %w", err)
		}
		return DecodeBitmap(blob)
	default:
		return nil, fmt.Errorf("backend: unknown request kind %d", req.Kind)
	}
}

var _ coordinator.Backend = (*ProviderBackend)(nil)
