// Package controller wires camera, zoomstate, tile, cache, coordinator,
// viewport, and prefetch into the top-level infinite-canvas controller
// described in spec §4.8 and §6: it owns the camera and page-element
// lifecycle, schedules renders on scroll and on zoom settling, and
// exposes the display-mode and feature-flag surface external callers
// configure at construction.
package controller

import (
	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/camera"
	"github.com/infinitepdf/viewer-core/coordinator"
	"github.com/infinitepdf/viewer-core/zoomstate"
)

// DisplayMode selects page layout and constraint policy (spec §6:
// "paginated | horizontal-scroll | vertical-scroll | auto-grid |
// canvas").
type DisplayMode int

const (
	VerticalScroll DisplayMode = iota
	HorizontalScroll
	Paginated
	AutoGrid
	Canvas
)

// FeatureFlags are the options recognized at construction (spec §6).
type FeatureFlags struct {
	// UseMultiResZoom makes the controller issue the settled-scale
	// render (a Refresh) as soon as zoom settling completes. No
	// speculative renders are issued during the settling phase.
	UseMultiResZoom bool
	// UseExactScaleRendering requests exact-scale tiles while keeping
	// the grid quantized.
	UseExactScaleRendering bool
	// UseAdaptiveTileSize shrinks tile CSS size at extreme zoom to
	// keep the pixel budget under cap.
	UseAdaptiveTileSize bool
	// UseUnifiedCoordinateSpace selects camera.Unified over
	// camera.Legacy.
	UseUnifiedCoordinateSpace bool
}

// Config is every tunable the controller needs at construction. No
// package-level globals/defaults hidden inside the controller itself —
// every timing and threshold traces back to one of the sub-package
// configs (spec §9: "Global mutable state" is an open question this
// module resolves by requiring explicit Config at every layer).
type Config struct {
	DisplayMode DisplayMode
	Features    FeatureFlags

	CameraConstraints camera.Constraints
	ZoomConfig        zoomstate.Config
	CoordinatorConfig coordinator.Config
	CacheConfig       cache.Config

	// DPR is the device pixel ratio combined with zoom to pick a scale
	// tier (spec §3: TileCoordinate, §4.3).
	DPR float64
	// PagesPerRow applies only in AutoGrid/Canvas display modes; 0
	// means "choose automatically" (ceil(sqrt(pageCount))).
	PagesPerRow int
	// PageGap is the content-space space between pages in the layout.
	PageGap float64
	// KeepRecentSessions is the keepRecent value Refresh passes to
	// AbortStaleSessions on every call. It is used as given; it is not
	// scaled by tile scale.
	KeepRecentSessions int
}

// DefaultConfig returns the defaults spec §3/§4.2/§4.3/§4.4 name,
// composed from each sub-package's own DefaultConfig.
func DefaultConfig() Config {
	return Config{
		DisplayMode: VerticalScroll,
		Features: FeatureFlags{
			UseMultiResZoom:     true,
			UseAdaptiveTileSize: true,
		},
		CameraConstraints: camera.Constraints{MinZoom: 1, MaxZoom: 32},
		ZoomConfig:        zoomstate.DefaultConfig(),
		CoordinatorConfig: coordinator.DefaultConfig(4),
		CacheConfig:       cache.DefaultConfig(),
		DPR:               1,
		PageGap:           16,
		KeepRecentSessions: 2,
	}
}
