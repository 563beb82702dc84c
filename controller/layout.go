package controller

import (
	"math"

	"github.com/infinitepdf/viewer-core/backend"
	"github.com/infinitepdf/viewer-core/tile"
	"github.com/infinitepdf/viewer-core/viewport"
)

// computeLayouts places every page in content coordinates according to
// mode (spec §6: each display mode "defines layout mode, constraint
// policy, and initial fit").
func computeLayouts(sizes []backend.PageSize, mode DisplayMode, pagesPerRow int, gap float64) []tile.PageLayout {
	switch mode {
	case HorizontalScroll:
		return horizontalLayout(sizes, gap)
	case AutoGrid, Canvas:
		return gridLayout(sizes, resolvePagesPerRow(len(sizes), pagesPerRow), gap)
	default: // VerticalScroll, Paginated
		return verticalLayout(sizes, gap)
	}
}

func resolvePagesPerRow(pageCount, configured int) int {
	if configured > 0 {
		return configured
	}
	n := int(math.Ceil(math.Sqrt(float64(pageCount))))
	if n < 1 {
		n = 1
	}
	return n
}

func verticalLayout(sizes []backend.PageSize, gap float64) []tile.PageLayout {
	out := make([]tile.PageLayout, len(sizes))
	maxW := maxWidth(sizes)
	y := 0.0
	for i, s := range sizes {
		out[i] = tile.PageLayout{Page: i, X: (maxW - s.Width) / 2, Y: y, Width: s.Width, Height: s.Height}
		y += s.Height + gap
	}
	return out
}

func horizontalLayout(sizes []backend.PageSize, gap float64) []tile.PageLayout {
	out := make([]tile.PageLayout, len(sizes))
	maxH := maxHeight(sizes)
	x := 0.0
	for i, s := range sizes {
		out[i] = tile.PageLayout{Page: i, X: x, Y: (maxH - s.Height) / 2, Width: s.Width, Height: s.Height}
		x += s.Width + gap
	}
	return out
}

func gridLayout(sizes []backend.PageSize, pagesPerRow int, gap float64) []tile.PageLayout {
	cellW, cellH := maxWidth(sizes)+gap, maxHeight(sizes)+gap
	out := make([]tile.PageLayout, len(sizes))
	for i, s := range sizes {
		row, col := i/pagesPerRow, i%pagesPerRow
		out[i] = tile.PageLayout{Page: i, X: float64(col) * cellW, Y: float64(row) * cellH, Width: s.Width, Height: s.Height}
	}
	return out
}

func maxWidth(sizes []backend.PageSize) float64 {
	var m float64
	for _, s := range sizes {
		if s.Width > m {
			m = s.Width
		}
	}
	return m
}

func maxHeight(sizes []backend.PageSize) float64 {
	var m float64
	for _, s := range sizes {
		if s.Height > m {
			m = s.Height
		}
	}
	return m
}

// viewportConfig derives the viewport package's O(1) grid-cell config
// from the same geometry computeLayouts used. Cell size is the
// largest-page-plus-gap bound for every mode: viewport.Tracker's
// bounds-to-pages math assumes uniform cells (spec §4.7), which is an
// approximation when pages vary in size — acceptable since it only
// widens the render/element/keep buffers slightly, never narrows them.
func viewportConfig(sizes []backend.PageSize, mode DisplayMode, pagesPerRow int, gap float64) viewport.Config {
	cellW, cellH := maxWidth(sizes)+gap, maxHeight(sizes)+gap
	switch mode {
	case HorizontalScroll:
		return viewport.DefaultConfig(viewport.Horizontal, len(sizes), 0, cellW, cellH)
	case AutoGrid, Canvas:
		return viewport.DefaultConfig(viewport.Grid, len(sizes), resolvePagesPerRow(len(sizes), pagesPerRow), cellW, cellH)
	default:
		return viewport.DefaultConfig(viewport.Vertical, len(sizes), 0, cellW, cellH)
	}
}

func layoutIndex(layouts []tile.PageLayout) map[int]tile.PageLayout {
	idx := make(map[int]tile.PageLayout, len(layouts))
	for _, l := range layouts {
		idx[l.Page] = l
	}
	return idx
}
