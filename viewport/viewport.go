// Package viewport implements the viewport tracker described in spec
// §4.7: three concentric page buffers (render/element/keep), O(1)
// bounds-to-pages via a precomputed cell grid, a memory-pressure cap on
// live page elements, and cold-page recovery when a page re-enters the
// keep buffer.
package viewport

import (
	"math"
	"sort"
)

// LayoutMode mirrors the display mode's page arrangement, just enough
// to do O(1) bounds-to-pages math; the display-mode policies themselves
// (initial fit, constraint behavior) are out of scope (spec §1).
type LayoutMode int

const (
	Vertical LayoutMode = iota
	Horizontal
	Grid
)

// Rect is a content-space rectangle (matches camera.Rect / tile.Rect's
// shape; duplicated here to keep this package import-light).
type Rect struct {
	X, Y, Width, Height float64
}

// Config describes the page grid geometry needed for O(1) bounds
// lookups (spec §4.7: "from layoutMode, pagesPerRow, and pre-computed
// cellWidth/cellHeight").
type Config struct {
	LayoutMode  LayoutMode
	PageCount   int
	PagesPerRow int // only meaningful in Grid mode
	CellWidth   float64
	CellHeight  float64

	// RenderBufferBase/Floor etc. parametrize max(floor, base/zoom) for
	// each of the three concentric buffers (spec §4.7).
	RenderBufferBase, RenderBufferFloor   float64
	ElementBufferBase, ElementBufferFloor float64
	KeepBufferBase, KeepBufferFloor       float64
}

// DefaultConfig returns buffer constants sized in multiples of a
// nominal 512px tile (spec §4.7: "floors aligned to one/two/three
// complete tile sizes").
func DefaultConfig(layoutMode LayoutMode, pageCount, pagesPerRow int, cellW, cellH float64) Config {
	const tile = 512.0
	return Config{
		LayoutMode:        layoutMode,
		PageCount:         pageCount,
		PagesPerRow:       pagesPerRow,
		CellWidth:         cellW,
		CellHeight:        cellH,
		RenderBufferBase:   tile * 2,
		RenderBufferFloor:  tile,
		ElementBufferBase:  tile * 4,
		ElementBufferFloor: tile * 2,
		KeepBufferBase:     tile * 8,
		KeepBufferFloor:    tile * 3,
	}
}

// MaxElementsForZoom returns the memory-pressure cap on live page
// elements (spec §4.7: "≈12 at zoom <= 8, ≈6 at <= 16, ≈3 at > 16").
func MaxElementsForZoom(zoom float64) int {
	switch {
	case zoom <= 8:
		return 12
	case zoom <= 16:
		return 6
	default:
		return 3
	}
}

func bufferSize(base, floor, zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	b := base / zoom
	if b < floor {
		return floor
	}
	return b
}

// Update is the result of one UpdateVisiblePages call.
type Update struct {
	RenderPages  []int
	ElementPages []int
	KeepPages    []int
	// ColdPages are pages that just re-entered the keep buffer and must
	// be force-re-rendered regardless of isRendered (spec §4.7:
	// "Cold-page recovery").
	ColdPages []int
	// DestroyedPages are pages evicted by the memory-pressure cap.
	DestroyedPages []int
}

type pageState struct {
	inKeep    bool
	destroyed bool
}

// Tracker holds per-page membership state across calls so it can detect
// cold-page re-entry and apply the memory cap consistently.
type Tracker struct {
	cfg   Config
	pages map[int]*pageState
}

// New constructs a Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, pages: make(map[int]*pageState)}
}

// boundsToPages computes the set of page indices intersecting rect in
// O(1 + result size) — never by iterating every page (spec §4.7).
func boundsToPages(cfg Config, rect Rect) []int {
	clamp := func(p int) int {
		if p < 0 {
			return 0
		}
		if cfg.PageCount > 0 && p >= cfg.PageCount {
			return cfg.PageCount - 1
		}
		return p
	}

	var pages []int
	switch cfg.LayoutMode {
	case Vertical:
		if cfg.CellHeight <= 0 {
			return nil
		}
		start := clamp(int(math.Floor(rect.Y / cfg.CellHeight)))
		end := clamp(int(math.Floor((rect.Y + rect.Height) / cfg.CellHeight)))
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	case Horizontal:
		if cfg.CellWidth <= 0 {
			return nil
		}
		start := clamp(int(math.Floor(rect.X / cfg.CellWidth)))
		end := clamp(int(math.Floor((rect.X + rect.Width) / cfg.CellWidth)))
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	case Grid:
		if cfg.CellWidth <= 0 || cfg.CellHeight <= 0 || cfg.PagesPerRow <= 0 {
			return nil
		}
		rowStart := int(math.Floor(rect.Y / cfg.CellHeight))
		rowEnd := int(math.Floor((rect.Y + rect.Height) / cfg.CellHeight))
		colStart := int(math.Floor(rect.X / cfg.CellWidth))
		colEnd := int(math.Floor((rect.X + rect.Width) / cfg.CellWidth))
		if colStart < 0 {
			colStart = 0
		}
		if colEnd >= cfg.PagesPerRow {
			colEnd = cfg.PagesPerRow - 1
		}
		for row := rowStart; row <= rowEnd; row++ {
			for col := colStart; col <= colEnd; col++ {
				p := row*cfg.PagesPerRow + col
				pages = append(pages, clamp(p))
			}
		}
	}
	return dedup(pages)
}

func dedup(pages []int) []int {
	if len(pages) < 2 {
		return pages
	}
	seen := make(map[int]struct{}, len(pages))
	out := pages[:0]
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func expand(r Rect, buffer float64) Rect {
	return Rect{
		X:      r.X - buffer,
		Y:      r.Y - buffer,
		Width:  r.Width + 2*buffer,
		Height: r.Height + 2*buffer,
	}
}

// UpdateVisiblePages computes the render/element/keep page sets for the
// given viewport and zoom, applies the memory-pressure cap, and reports
// cold-page re-entries (spec §4.7: updateVisiblePages(), "guarded by
// canRender()"). Callers must only invoke this when canRender() is
// true; the guard itself lives in the caller (controller), since it
// depends on zoomstate which this package does not import.
func (t *Tracker) UpdateVisiblePages(viewport Rect, zoom, centerX, centerY float64) Update {
	renderRect := expand(viewport, bufferSize(t.cfg.RenderBufferBase, t.cfg.RenderBufferFloor, zoom))
	elementRect := expand(viewport, bufferSize(t.cfg.ElementBufferBase, t.cfg.ElementBufferFloor, zoom))
	keepRect := expand(viewport, bufferSize(t.cfg.KeepBufferBase, t.cfg.KeepBufferFloor, zoom))

	renderPages := boundsToPages(t.cfg, renderRect)
	elementPages := boundsToPages(t.cfg, elementRect)
	keepPages := boundsToPages(t.cfg, keepRect)

	keepSet := make(map[int]struct{}, len(keepPages))
	for _, p := range keepPages {
		keepSet[p] = struct{}{}
	}

	var cold []int
	for _, p := range keepPages {
		st := t.pages[p]
		if st == nil {
			st = &pageState{}
			t.pages[p] = st
		}
		if !st.inKeep || st.destroyed {
			cold = append(cold, p)
		}
		st.inKeep = true
		st.destroyed = false
	}
	for p, st := range t.pages {
		if _, ok := keepSet[p]; !ok {
			st.inKeep = false
		}
	}

	// Memory-pressure cap: pages in the render set (actually visible)
	// are never destroyed; remaining budget goes to the candidates
	// closest to the viewport center, furthest-from-center candidates
	// are destroyed first (spec §4.7: "the furthest-from-center
	// elements outside the visible set are destroyed").
	var destroyed []int
	maxElements := MaxElementsForZoom(zoom)
	if len(elementPages) > maxElements {
		renderSet := make(map[int]struct{}, len(renderPages))
		for _, p := range renderPages {
			renderSet[p] = struct{}{}
		}
		var mustKeep, candidates []int
		for _, p := range elementPages {
			if _, ok := renderSet[p]; ok {
				mustKeep = append(mustKeep, p)
			} else {
				candidates = append(candidates, p)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return distance(candidates[i], centerX, centerY, t.cfg) < distance(candidates[j], centerX, centerY, t.cfg)
		})
		budget := maxElements - len(mustKeep)
		if budget < 0 {
			budget = 0
		}
		if budget > len(candidates) {
			budget = len(candidates)
		}
		kept := append([]int(nil), mustKeep...)
		kept = append(kept, candidates[:budget]...)
		pruned := candidates[budget:]
		for _, p := range pruned {
			if st, ok := t.pages[p]; ok {
				st.destroyed = true
			}
			destroyed = append(destroyed, p)
		}
		elementPages = kept
	}

	return Update{
		RenderPages:    renderPages,
		ElementPages:   elementPages,
		KeepPages:      keepPages,
		ColdPages:      cold,
		DestroyedPages: destroyed,
	}
}

// distance approximates a page's distance from the viewport center in
// content-space units, used only to rank eviction order under the
// memory cap, not for correctness.
func distance(page int, centerX, centerY float64, cfg Config) float64 {
	var px, py float64
	switch cfg.LayoutMode {
	case Vertical:
		px, py = 0, float64(page)*cfg.CellHeight
	case Horizontal:
		px, py = float64(page)*cfg.CellWidth, 0
	case Grid:
		if cfg.PagesPerRow <= 0 {
			break
		}
		row := page / cfg.PagesPerRow
		col := page % cfg.PagesPerRow
		px, py = float64(col)*cfg.CellWidth, float64(row)*cfg.CellHeight
	}
	dx, dy := px-centerX, py-centerY
	return math.Hypot(dx, dy)
}

// SweepForBlankPages inspects every page in pages and returns those for
// which isContentMissing reports true, for the caller to force
// re-render (spec §4.7: "A periodic blank-page sweep after gesture end
// inspects visible elements and rerenders any claiming rendered but
// lacking content").
func SweepForBlankPages(pages []int, isContentMissing func(page int) bool) []int {
	var blank []int
	for _, p := range pages {
		if isContentMissing(p) {
			blank = append(blank, p)
		}
	}
	return blank
}
