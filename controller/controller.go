package controller

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/infinitepdf/viewer-core/backend"
	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/camera"
	"github.com/infinitepdf/viewer-core/coordinator"
	"github.com/infinitepdf/viewer-core/page"
	"github.com/infinitepdf/viewer-core/prefetch"
	"github.com/infinitepdf/viewer-core/session"
	"github.com/infinitepdf/viewer-core/tile"
	"github.com/infinitepdf/viewer-core/viewport"
	"github.com/infinitepdf/viewer-core/zoomstate"
)

// Controller is the top-level infinite-canvas controller (spec §4.8):
// it owns the camera and the live set of page.Element canvases, and
// schedules render requests into the coordinator in response to scroll
// and zoom-settling events.
type Controller struct {
	provider  backend.PageDataProvider
	newCanvas page.CanvasFactory

	mu        sync.Mutex
	cfg       Config
	cam       camera.Camera
	zoom      *zoomstate.Machine
	sess      *session.Manager
	cacheC    *cache.Cache
	coord     *coordinator.Coordinator
	vp        *viewport.Tracker
	predictor *prefetch.Predictor

	sizes   []backend.PageSize
	layouts []tile.PageLayout
	layoutI map[int]tile.PageLayout
	pages   map[int]*page.Element

	viewportW, viewportH float64
	gridScale            int

	// now is injected so tests can supply a deterministic clock;
	// production callers get time.Now (mirrors zoomstate's own
	// injected-clock idiom).
	now func() time.Time

	// panAccumDist tracks cumulative pan distance in content units
	// since the last reset, used by the queue-clearing rule (spec
	// §4.4: "on cumulative pan distance >= 1/2 viewport at high zoom,
	// abort all pending").
	panAccumDist float64
}

// New constructs a Controller over sizes (one PageSize per page, in
// document order) and immediately computes the initial layout for
// cfg.DisplayMode, but issues no renders until SetViewportSize is
// called. The camera starts at the origin at MinZoom; neither New nor
// SetViewportSize applies a per-display-mode initial fit.
func New(cfg Config, provider backend.PageDataProvider, canvasFactory page.CanvasFactory, sizes []backend.PageSize) *Controller {
	if cfg.DPR <= 0 {
		cfg.DPR = 1
	}
	c := &Controller{
		provider:  provider,
		newCanvas: canvasFactory,
		cfg:       cfg,
		sess:      session.New(),
		cacheC:    cache.New(cfg.CacheConfig),
		predictor: prefetch.New(prefetch.DefaultConfig()),
		pages:     make(map[int]*page.Element),
		gridScale: tile.Tiers[0],
		now:       time.Now,
	}
	c.setLayoutsLocked(sizes)
	c.cam = camera.New(cameraMode(cfg.Features), 0, 0, cfg.CameraConstraints.MinZoom, cfg.CameraConstraints)
	c.zoom = zoomstate.New(cfg.ZoomConfig, c.callbacks())

	pb := backend.NewProviderBackend(provider)
	c.coord = coordinator.New(cfg.CoordinatorConfig, pb, c.cacheC, c.sess, c.isGestureActive, nil)
	return c
}

func cameraMode(f FeatureFlags) camera.Mode {
	if f.UseUnifiedCoordinateSpace {
		return camera.Unified
	}
	return camera.Legacy
}

func (c *Controller) callbacks() zoomstate.Callbacks {
	return zoomstate.Callbacks{
		OnGestureStart:     c.onGestureStart,
		OnSettlingComplete: c.onSettlingComplete,
	}
}

// setLayoutsLocked recomputes layouts/viewport tracker for sizes under
// the controller's current display mode. Caller must hold c.mu, or
// call this only before c is shared (construction / SetDisplayMode).
func (c *Controller) setLayoutsLocked(sizes []backend.PageSize) {
	c.sizes = sizes
	c.layouts = computeLayouts(sizes, c.cfg.DisplayMode, c.cfg.PagesPerRow, c.cfg.PageGap)
	c.layoutI = layoutIndex(c.layouts)
	c.vp = viewport.New(viewportConfig(sizes, c.cfg.DisplayMode, c.cfg.PagesPerRow, c.cfg.PageGap))
}

func (c *Controller) isGestureActive() bool {
	return c.zoom.GetGesturePhase() == zoomstate.Active
}

// Close tears down the coordinator's dispatch loop and releases every
// live page element's canvases.
func (c *Controller) Close() {
	c.coord.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.pages {
		el.Destroy()
	}
	c.pages = make(map[int]*page.Element)
}

// Camera returns the current camera snapshot.
func (c *Controller) Camera() camera.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam
}

// DisplayMode returns the active display mode.
func (c *Controller) DisplayMode() DisplayMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.DisplayMode
}

// Layouts returns the current content-space page layout list.
func (c *Controller) Layouts() []tile.PageLayout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tile.PageLayout(nil), c.layouts...)
}

// VisiblePages returns every page number with a live element, for a
// host renderer to draw. Order is unspecified.
func (c *Controller) VisiblePages() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.pages))
	for p := range c.pages {
		out = append(out, p)
	}
	return out
}

// Element returns the live page.Element for p, if any, so a host
// renderer can draw its backing canvas to screen.
func (c *Controller) Element(p int) (*page.Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.pages[p]
	return el, ok
}

// LayoutFor returns page p's content-space layout, if known.
func (c *Controller) LayoutFor(p int) (tile.PageLayout, bool) {
	return c.layoutFor(p)
}

// SetViewportSize records the screen-pixel viewport size and reissues
// visibility from it.
func (c *Controller) SetViewportSize(w, h float64) {
	c.mu.Lock()
	c.viewportW, c.viewportH = w, h
	c.mu.Unlock()
	c.Refresh()
}

// Pan translates the camera by screen-pixel deltas and reschedules
// visibility (spec §4.1 Pan, §4.8 scroll-path scheduling). Cumulative
// pan distance (in content units) is tracked against the queue-clearing
// rule (spec §4.4: "on cumulative pan distance >= 1/2 viewport at high
// zoom, abort all pending").
func (c *Controller) Pan(dx, dy float64) {
	c.mu.Lock()
	oldCam := c.cam
	c.cam = camera.Pan(c.cam, dx, dy)
	cam := c.cam
	clearQueue := c.accumulatePanLocked(oldCam, dx, dy)
	c.mu.Unlock()

	c.zoom.SignalOngoingActivity()
	c.zoom.SyncFromCamera(zoomstate.CameraSnapshot{X: cam.X, Y: cam.Y, Z: cam.Z})
	c.predictor.Observe(prefetch.Sample{X: cam.X, Y: cam.Y, Zoom: cam.Z, At: c.now()})
	if clearQueue {
		c.coord.AbortAllPending()
	}
	c.Refresh()
}

// accumulatePanLocked adds the content-unit distance of a dx,dy pan
// (measured against oldCam, since zoom is unaffected by a pan) to the
// running total and reports whether the queue-clearing threshold was
// crossed, resetting the accumulator when it is. Caller must hold c.mu.
func (c *Controller) accumulatePanLocked(oldCam camera.Camera, dx, dy float64) bool {
	dist := math.Hypot(dx, dy)
	if oldCam.Mode != camera.Unified && oldCam.Z > 0 {
		dist /= oldCam.Z
	}
	c.panAccumDist += dist

	highZoom := oldCam.Z >= c.cfg.ZoomConfig.ModeThreshold
	bounds := camera.VisibleBounds(oldCam, c.viewportW, c.viewportH)
	viewportDiag := math.Hypot(bounds.Width, bounds.Height)
	if !highZoom || viewportDiag <= 0 || c.panAccumDist < 0.5*viewportDiag {
		return false
	}
	c.panAccumDist = 0
	return true
}

// ZoomAt applies a wheel/pinch zoom delta pivoting on focal (screen
// coordinates) and reschedules visibility (spec §4.1 ZoomToPoint, §4.2
// OnZoomGesture, §4.8 zoom-path scheduling). A zoom change with ratio
// >= 2 in either direction triggers the queue-clearing rule (spec §4.4).
func (c *Controller) ZoomAt(focal camera.Point, delta float64) {
	c.mu.Lock()
	oldZ := c.cam.Z
	newCam := camera.ZoomToPoint(c.cam, focal, delta, c.cfg.CameraConstraints)
	c.cam = newCam
	c.panAccumDist = 0
	clearQueue := zoomRatioCrossed(oldZ, newCam.Z)
	c.mu.Unlock()

	c.zoom.OnZoomGesture(newCam.Z, zoomstate.Point{X: focal.X, Y: focal.Y}, zoomstate.CameraSnapshot{X: newCam.X, Y: newCam.Y, Z: newCam.Z})
	c.predictor.Observe(prefetch.Sample{X: newCam.X, Y: newCam.Y, Zoom: newCam.Z, At: c.now()})
	if clearQueue {
		c.coord.AbortAllPending()
	}
	c.Refresh()
}

// zoomRatioCrossed reports whether newZ/oldZ (or its reciprocal) is at
// least 2, i.e. the zoom at least doubled or halved (spec §4.4:
// "zoom change with ratio >= 2 (either direction)").
func zoomRatioCrossed(oldZ, newZ float64) bool {
	if oldZ <= 0 || newZ <= 0 || oldZ == newZ {
		return false
	}
	ratio := newZ / oldZ
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio >= 2
}

// SetDisplayMode switches layout/constraint policy. Per spec §6, a mode
// switch destroys every existing page element, resets the epoch (by
// replacing the zoom machine), and reissues visibility from scratch.
func (c *Controller) SetDisplayMode(mode DisplayMode) {
	c.coord.AbortAllPending()

	c.mu.Lock()
	for _, el := range c.pages {
		el.Destroy()
	}
	c.pages = make(map[int]*page.Element)
	c.cfg.DisplayMode = mode
	c.setLayoutsLocked(c.sizes)
	c.sess.AbortAll()
	c.cam = camera.New(cameraMode(c.cfg.Features), 0, 0, c.cfg.CameraConstraints.MinZoom, c.cfg.CameraConstraints)
	c.zoom = zoomstate.New(c.cfg.ZoomConfig, c.callbacks())
	c.mu.Unlock()

	c.Refresh()
}

func (c *Controller) onGestureStart() {
	c.provider.SuspendThumbnailGeneration()
}

// onSettlingComplete fires once a zoom gesture's settling delay has
// elapsed (spec §4.2). When UseMultiResZoom is enabled this issues the
// settled-scale render immediately instead of waiting for the next
// scroll tick (spec §6: "multi-res zoom").
func (c *Controller) onSettlingComplete(scale, zoom float64) {
	c.provider.ResumeThumbnailGeneration()
	if c.cfg.Features.UseMultiResZoom {
		c.Refresh()
	}
	c.zoom.CompleteRenderPhase()
	c.sweepBlankPages()
}

// sweepBlankPages implements the periodic blank-page sweep after
// gesture end (spec §4.7: "A periodic blank-page sweep after gesture
// end inspects visible elements and rerenders any claiming rendered but
// lacking content"). Every visible element whose HasRenderedContent is
// false is swept, whether it was never rendered, was cleared, or has a
// zero-size main canvas.
func (c *Controller) sweepBlankPages() {
	visible := c.VisiblePages()
	blank := viewport.SweepForBlankPages(visible, func(p int) bool {
		el := c.elementFor(p)
		return el != nil && !el.HasRenderedContent()
	})
	if len(blank) == 0 {
		return
	}
	c.mu.Lock()
	cam := c.cam
	c.mu.Unlock()
	if !cam.Valid() {
		return
	}
	tier := tile.GetTargetScaleTier(cam.Z, c.cfg.DPR, c.cfg.ZoomConfig.MaxZoom, c.cfg.Features.UseAdaptiveTileSize)
	sid := c.sess.Next()
	epoch := c.zoom.GetEpoch()
	c.scheduleColdRecovery(blank, cam.Z, tier.Tier, sid, epoch)
}

func (c *Controller) documentID() string {
	id, _ := c.provider.DocumentID()
	return id
}

// currentScale picks the Identity.Scale a page-kind (not tile-kind)
// request uses: the exact requested scale when UseExactScaleRendering
// is set, otherwise the same quantized tier tiles use. Tile requests
// always use the quantized tier regardless of this flag — tile.go's
// grid-scale rule (spec §4.3) forbids mixing exact and quantized scales
// within the tile grid, but a full-page request is not grid-keyed so an
// exact scale is safe there.
func (c *Controller) currentScale(zoom float64, tier int) int {
	if !c.cfg.Features.UseExactScaleRendering {
		return tier
	}
	exact := int(zoom * c.cfg.DPR)
	if exact < 1 {
		return tier
	}
	return exact
}

// Refresh recomputes visible pages and tiles and schedules render
// requests for them (spec §4.7 updateVisiblePages, §4.8 scheduling).
// Guarded by zoomstate.CanRender, per the viewport package's own
// contract that it must only be driven when rendering is permitted.
func (c *Controller) Refresh() {
	c.mu.Lock()
	cam := c.cam
	vw, vh := c.viewportW, c.viewportH
	layouts := c.layouts
	c.mu.Unlock()

	if vw <= 0 || vh <= 0 || len(layouts) == 0 || !cam.Valid() {
		return
	}
	if !c.zoom.CanRender() {
		return
	}

	visible := camera.VisibleBounds(cam, vw, vh)
	vpRect := tile.Rect(visible)
	centerX, centerY := visible.X+visible.Width/2, visible.Y+visible.Height/2

	upd := c.vp.UpdateVisiblePages(viewport.Rect(vpRect), cam.Z, centerX, centerY)

	c.destroyPages(upd.DestroyedPages)
	c.ensureElements(upd.ElementPages)
	c.positionElements(upd.ElementPages, cam)

	tier := tile.GetTargetScaleTier(cam.Z, c.cfg.DPR, c.cfg.ZoomConfig.MaxZoom, c.cfg.Features.UseAdaptiveTileSize)
	c.mu.Lock()
	prevScale := c.gridScale
	c.gridScale = tier.Tier
	c.mu.Unlock()
	if prevScale != tier.Tier {
		c.coord.AbortStaleScaleTiles(tier.Tier, prevScale)
	}

	sid := c.sess.Next()
	epoch := c.zoom.GetEpoch()
	mode := c.zoom.GetRenderMode()

	if mode == zoomstate.Tiled {
		c.scheduleTileRenders(vpRect, upd.RenderPages, cam.Z, tier.Tier, sid, epoch)
	} else {
		c.schedulePageRenders(upd.RenderPages, cam.Z, tier.Tier, sid, epoch, coordinator.High)
	}
	c.scheduleColdRecovery(upd.ColdPages, cam.Z, tier.Tier, sid, epoch)
	c.scheduleWarming(vpRect, upd.RenderPages, cam, tier.Tier)

	c.coord.AbortStaleSessions(c.cfg.KeepRecentSessions)
}

func (c *Controller) destroyPages(pages []int) {
	if len(pages) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pages {
		if el, ok := c.pages[p]; ok {
			el.Destroy()
			delete(c.pages, p)
		}
	}
}

func (c *Controller) ensureElements(pages []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pages {
		if _, ok := c.pages[p]; ok {
			continue
		}
		c.pages[p] = page.New(p, c.newCanvas)
	}
}

func (c *Controller) positionElements(pages []int, cam camera.Camera) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unified := cam.Mode == camera.Unified
	for _, p := range pages {
		el, ok := c.pages[p]
		if !ok {
			continue
		}
		lay, ok := c.layoutI[p]
		if !ok {
			continue
		}
		el.SetFinalDimensions(lay.Width, lay.Height, cam.Z, unified)
	}
}

func (c *Controller) elementFor(p int) *page.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[p]
}

func (c *Controller) layoutFor(p int) (tile.PageLayout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.layoutI[p]
	return l, ok
}

func (c *Controller) schedulePageRenders(pages []int, zoom float64, tier int, sid session.ID, epoch int64, priority coordinator.Priority) {
	docID := c.documentID()
	scale := c.currentScale(zoom, tier)
	for _, p := range pages {
		el := c.elementFor(p)
		if el == nil {
			continue
		}
		req := coordinator.Request{
			Kind:       coordinator.PageKind,
			Identity:   coordinator.Identity{DocumentID: docID, Page: p, Scale: scale},
			Priority:   priority,
			SessionID:  sid,
			ScaleEpoch: epoch,
			Zoom:       zoom,
		}
		go c.dispatchPage(req, p, epoch)
	}
}

func (c *Controller) scheduleColdRecovery(pages []int, zoom float64, tier int, sid session.ID, epoch int64) {
	if len(pages) == 0 {
		return
	}
	for _, p := range pages {
		el := c.elementFor(p)
		if el == nil {
			continue
		}
		el.ClearRendered()
	}
	c.schedulePageRenders(pages, zoom, tier, sid, epoch, coordinator.Medium)
}

func (c *Controller) dispatchPage(req coordinator.Request, p int, epoch int64) {
	res := c.coord.RequestRender(context.Background(), req)
	if !res.Success {
		return
	}
	drawable, ok := res.Data.(page.Drawable)
	if !ok {
		res.Data.Close()
		return
	}
	el := c.elementFor(p)
	if el == nil {
		drawable.Close()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el.Render(drawable, res.ScaleEpoch)
}

func (c *Controller) bufferPx() float64 { return 0 }

func (c *Controller) scheduleTileRenders(viewportRect tile.Rect, pages []int, zoom float64, gridScale int, sid session.ID, epoch int64) {
	var relevant []tile.PageLayout
	for _, p := range pages {
		if l, ok := c.layoutFor(p); ok {
			relevant = append(relevant, l)
		}
	}
	if len(relevant) == 0 {
		return
	}
	coords := tile.GetVisibleTiles(viewportRect, relevant, zoom, gridScale, c.bufferPx(), c.cfg.Features.UseAdaptiveTileSize)
	byPage := groupTilesByPage(coords)
	maxTiles := tile.PerPageTileCap(zoom)
	for p, coords := range byPage {
		layout, ok := c.layoutFor(p)
		if !ok {
			continue
		}
		cx, cy := centerTileForPage(viewportRect, layout, zoom, c.cfg.Features.UseAdaptiveTileSize)
		coords = tile.TruncateByDistance(coords, cx, cy, maxTiles)
		for _, coord := range coords {
			c.submitTile(p, coord, layout, coordinator.High, sid, epoch, zoom)
		}
	}
}

func (c *Controller) scheduleWarming(viewportRect tile.Rect, pages []int, cam camera.Camera, gridScale int) {
	predictedRect, ok := c.predictor.PredictedViewport(viewportRect)
	if !ok {
		return
	}
	var relevant []tile.PageLayout
	for _, p := range pages {
		if l, ok := c.layoutFor(p); ok {
			relevant = append(relevant, l)
		}
	}
	if len(relevant) == 0 {
		return
	}
	current := tile.GetVisibleTiles(viewportRect, relevant, cam.Z, gridScale, c.bufferPx(), c.cfg.Features.UseAdaptiveTileSize)
	predicted := tile.GetVisibleTiles(predictedRect, relevant, cam.Z, gridScale, c.bufferPx(), c.cfg.Features.UseAdaptiveTileSize)
	warm := prefetch.SelectTilesToWarm(current, predicted)
	if len(warm) == 0 {
		return
	}
	sid := c.sess.Next()
	epoch := c.zoom.GetEpoch()
	for _, coord := range warm {
		layout, ok := c.layoutFor(coord.Page)
		if !ok {
			continue
		}
		c.submitTile(coord.Page, coord, layout, coordinator.Low, sid, epoch, cam.Z)
	}
}

func (c *Controller) submitTile(p int, coord tile.Coordinate, layout tile.PageLayout, priority coordinator.Priority, sid session.ID, epoch int64, zoom float64) {
	el := c.elementFor(p)
	if el == nil {
		return
	}
	docID := c.documentID()
	req := coordinator.Request{
		Kind:       coordinator.TileKind,
		Identity:   coordinator.Identity{DocumentID: docID, Page: coord.Page, TileX: coord.TileX, TileY: coord.TileY, Scale: coord.Scale},
		Priority:   priority,
		SessionID:  sid,
		ScaleEpoch: epoch,
		Zoom:       zoom,
	}
	elW, elH := el.Dimensions()
	bounds := tile.TileBounds(coord, layout)
	snap := page.TransformSnapshot{
		ContainerW:         elW,
		ContainerH:         elH,
		PDFToElementScale:  elementScale(elW, layout.Width),
		ExpectedTileBounds: bounds,
		Epoch:              epoch,
	}
	go c.dispatchTile(req, p, coord, layout, snap, epoch)
}

func (c *Controller) dispatchTile(req coordinator.Request, p int, coord tile.Coordinate, layout tile.PageLayout, snap page.TransformSnapshot, epoch int64) {
	res := c.coord.RequestRender(context.Background(), req)
	if !res.Success {
		return
	}
	drawable, ok := res.Data.(page.Drawable)
	if !ok {
		res.Data.Close()
		return
	}
	el := c.elementFor(p)
	if el == nil {
		drawable.Close()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	elW, elH := el.Dimensions()
	bounds := tile.TileBounds(coord, layout)
	x, y, w, h := elementLocalTileRect(bounds, layout, elW, elH)
	t := page.Tile{Bitmap: drawable, X: x, Y: y, W: w, H: h}

	if el.HasRenderedContent() {
		el.AddTilesToExistingCanvas([]page.Tile{t}, epoch)
		return
	}
	el.RenderTiles([]page.Tile{t}, snap, epoch, false)
}

func elementScale(elementWidth, layoutWidth float64) float64 {
	if layoutWidth <= 0 {
		return 1
	}
	return elementWidth / layoutWidth
}

func elementLocalTileRect(bounds tile.Rect, layout tile.PageLayout, elW, elH float64) (x, y, w, h float64) {
	sx := elementScale(elW, layout.Width)
	sy := elementScale(elH, layout.Height)
	x = (bounds.X - layout.X) * sx
	y = (bounds.Y - layout.Y) * sy
	w = bounds.Width * sx
	h = bounds.Height * sy
	return
}

func centerTileForPage(viewportRect tile.Rect, layout tile.PageLayout, zoom float64, adaptive bool) (float64, float64) {
	tileSize := tile.TileSizeForZoom(zoom, adaptive)
	if tileSize <= 0 {
		return 0, 0
	}
	cx := viewportRect.X + viewportRect.Width/2 - layout.X
	cy := viewportRect.Y + viewportRect.Height/2 - layout.Y
	return cx / tileSize, cy / tileSize
}

func groupTilesByPage(coords []tile.Coordinate) map[int][]tile.Coordinate {
	out := make(map[int][]tile.Coordinate)
	for _, c := range coords {
		out[c.Page] = append(out[c.Page], c)
	}
	return out
}
