// Package tile implements the tile coordinate engine and scale-tier
// quantization policy described in spec §3 and §4.3: enumerating which
// tiles intersect a viewport, mapping tile indices to PDF-space regions,
// and quantizing an arbitrary requested scale to a fixed set of tiers so
// cache keys stay grid-aligned.
package tile

import (
	"math"
	"sort"
)

// MaxTilePixels bounds tileSize*scale (spec §3: TileCoordinate).
const MaxTilePixels = 4096

// Tiers is the fixed set of valid scale tiers (spec §3: ScaleTier).
var Tiers = []int{2, 3, 4, 6, 8, 12, 16, 24, 32}

// PageLayout places one page in content coordinates (spec §3).
type PageLayout struct {
	Page                int
	X, Y, Width, Height float64
}

// Coordinate identifies a tile: (page, tileX, tileY, scale) is the cache
// key; TileSize is derived and cache-key-bearing only insofar as it must
// agree with the scale it was enumerated under (spec §3: TileCoordinate).
type Coordinate struct {
	Page         int
	TileX, TileY int
	Scale        int
	TileSize     float64
}

// TierResult is the result of quantizing a requested scale.
type TierResult struct {
	Tier       int
	CSSStretch float64
}

// GetTargetScaleTier returns the smallest tier >= zoom*dpr, capped so
// that tileSize(zoom)*tier <= MaxTilePixels, along with the residual
// cssStretch = (zoom*dpr)/tier (spec §3, §4.3). adaptive selects
// between TileSizeForZoom's zoom-tiered sizing and a fixed size (spec
// §6: useAdaptiveTileSize).
func GetTargetScaleTier(zoom, dpr float64, maxZoom float64, adaptive bool) TierResult {
	ideal := zoom * dpr
	ts := TileSizeForZoom(zoom, adaptive)
	pixelCap := int(math.Floor(MaxTilePixels / ts))

	best := Tiers[0]
	for _, t := range Tiers {
		if t > pixelCap {
			break
		}
		best = t
		if float64(t) >= ideal {
			break
		}
	}
	if best > pixelCap {
		best = pixelCap
		if best < 1 {
			best = 1
		}
	}
	return TierResult{Tier: best, CSSStretch: ideal / float64(best)}
}

// TileSizeForZoom chooses a CSS-pixel tile size. When adaptive is true
// it shrinks at extreme zoom (wider at low zoom, narrower at extreme
// zoom) so that tileSize*tier stays under the pixel cap (spec §3:
// TileCoordinate, "tileSize is a CSS-pixel size chosen adaptively by
// zoom"); when false (spec §6: useAdaptiveTileSize disabled) it always
// returns the mid-zoom size, matching the pre-flag fixed tile size a
// non-adaptive embedder expects regardless of zoom.
func TileSizeForZoom(zoom float64, adaptive bool) float64 {
	if !adaptive {
		return 256
	}
	switch {
	case zoom >= 32:
		return 128
	case zoom >= 16:
		return 192
	case zoom >= 8:
		return 256
	case zoom >= 4:
		return 384
	default:
		return 512
	}
}

// Rect is a simple axis-aligned rectangle in whichever coordinate space
// the caller is working in (content or screen).
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) intersects(o Rect) bool {
	return r.X < o.X+o.Width && r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height && r.Y+r.Height > o.Y
}

// GetPageTileGrid enumerates the full tile grid for one page at the given
// grid scale (spec §4.3). Tile coordinates are always enumerated at the
// quantized grid scale, never at an arbitrary exact scale — mixing the
// two corrupts cache keys on pan (spec §4.3, "Grid-scale rule").
func GetPageTileGrid(layout PageLayout, gridScale int, zoom float64, adaptive bool) []Coordinate {
	tileSize := TileSizeForZoom(zoom, adaptive)
	if tileSize <= 0 || gridScale <= 0 {
		return nil
	}
	cols := int(math.Ceil(layout.Width / tileSize))
	rows := int(math.Ceil(layout.Height / tileSize))
	out := make([]Coordinate, 0, cols*rows)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			out = append(out, Coordinate{
				Page: layout.Page, TileX: tx, TileY: ty,
				Scale: gridScale, TileSize: tileSize,
			})
		}
	}
	return out
}

// GetVisibleTiles enumerates, for each layout intersecting viewport
// (expanded by bufferPx), the tiles whose PDF-space footprint intersects
// the viewport, attaching scale and the tileSize-for-zoom (spec §4.3).
func GetVisibleTiles(viewport Rect, layouts []PageLayout, zoom float64, gridScale int, bufferPx float64, adaptive bool) []Coordinate {
	tileSize := TileSizeForZoom(zoom, adaptive)
	if tileSize <= 0 || gridScale <= 0 {
		return nil
	}
	expanded := Rect{
		X: viewport.X - bufferPx, Y: viewport.Y - bufferPx,
		Width: viewport.Width + 2*bufferPx, Height: viewport.Height + 2*bufferPx,
	}

	var out []Coordinate
	for _, layout := range layouts {
		pageRect := Rect{X: layout.X, Y: layout.Y, Width: layout.Width, Height: layout.Height}
		if !pageRect.intersects(expanded) {
			continue
		}
		// viewport rect relative to the page origin, in page-local units.
		localX := expanded.X - layout.X
		localY := expanded.Y - layout.Y

		minTX := int(math.Floor(localX / tileSize))
		minTY := int(math.Floor(localY / tileSize))
		maxTX := int(math.Floor((localX + expanded.Width) / tileSize))
		maxTY := int(math.Floor((localY + expanded.Height) / tileSize))

		cols := int(math.Ceil(layout.Width / tileSize))
		rows := int(math.Ceil(layout.Height / tileSize))

		minTX = clampInt(minTX, 0, cols-1)
		maxTX = clampInt(maxTX, 0, cols-1)
		minTY = clampInt(minTY, 0, rows-1)
		maxTY = clampInt(maxTY, 0, rows-1)

		for ty := minTY; ty <= maxTY; ty++ {
			for tx := minTX; tx <= maxTX; tx++ {
				out = append(out, Coordinate{
					Page: layout.Page, TileX: tx, TileY: ty,
					Scale: gridScale, TileSize: tileSize,
				})
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TileBounds returns the PDF-space rectangle a tile coordinate covers,
// given its page layout.
func TileBounds(c Coordinate, layout PageLayout) Rect {
	return Rect{
		X:      layout.X + float64(c.TileX)*c.TileSize,
		Y:      layout.Y + float64(c.TileY)*c.TileSize,
		Width:  c.TileSize,
		Height: c.TileSize,
	}
}

// PerPageTileCap returns the maximum number of tiles permitted for one
// page at the given zoom (spec §4.3, "Per-page tile cap").
func PerPageTileCap(zoom float64) int {
	switch {
	case zoom >= 32:
		return 50
	case zoom >= 16:
		return 100
	case zoom >= 8:
		return 150
	default:
		return 300
	}
}

// TruncateByDistance sorts tiles by distance from the viewport center (in
// tile-grid units, using TileX/TileY as a proxy) and truncates to cap,
// keeping the closest (spec §4.3: "sorted by distance from viewport
// center and truncated to the cap").
func TruncateByDistance(coords []Coordinate, centerTX, centerTY float64, maxTiles int) []Coordinate {
	if maxTiles <= 0 || len(coords) <= maxTiles {
		return coords
	}
	sorted := make([]Coordinate, len(coords))
	copy(sorted, coords)
	sort.Slice(sorted, func(i, j int) bool {
		return distSq(sorted[i], centerTX, centerTY) < distSq(sorted[j], centerTX, centerTY)
	})
	return sorted[:maxTiles]
}

func distSq(c Coordinate, cx, cy float64) float64 {
	dx := float64(c.TileX) - cx
	dy := float64(c.TileY) - cy
	return dx*dx + dy*dy
}
