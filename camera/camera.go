// Package camera implements the pan/zoom camera model shared by every
// rendering stage. All functions are pure: inputs are immutable snapshots,
// outputs are new values. No function in this package touches a clock,
// a DOM, or any mutable package state.
package camera

import "math"

// Mode selects which of the two coordinate-space conventions a Camera
// uses. The two are externally equivalent for visibility queries via
// VisibleBounds, but callers must not mix raw x/y across modes.
type Mode int

const (
	// Legacy cameras store x,y in content coordinates (scale-invariant).
	// The CSS-equivalent transform is scale(z) translate(-x,-y).
	Legacy Mode = iota
	// Unified cameras store x,y in screen pixels; content is pre-scaled
	// in its own DOM dimensions. The CSS-equivalent transform is
	// translate-only.
	Unified
)

// Camera is the (x, y, z) triple describing pan and zoom. Zero value is
// not valid; use New.
type Camera struct {
	X, Y, Z float64
	Mode    Mode
}

// Constraints bounds zoom to [Min, Max], both finite and positive, with
// Min <= Max.
type Constraints struct {
	MinZoom, MaxZoom float64
}

// New returns a camera at the given position and zoom, clamped into
// constraints. If z is non-finite or non-positive, constraints.MinZoom is
// used in its place; x and y are kept as given.
func New(mode Mode, x, y, z float64, c Constraints) Camera {
	if !isFinitePositive(z) {
		z = c.MinZoom
	}
	return Camera{X: x, Y: y, Z: clamp(z, c.MinZoom, c.MaxZoom), Mode: mode}
}

// Valid reports whether z is finite and positive and x, y are finite. It
// does not check z against any Constraints.
// Used as the guard referenced throughout spec §4.1 and §7 (InvalidState).
func (c Camera) Valid() bool {
	return isFinitePositive(c.Z) && isFinite(c.X) && isFinite(c.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFinitePositive(v float64) bool {
	return isFinite(v) && v > 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rect is an axis-aligned rectangle, used both for content-space page
// layouts and for screen-space viewport bounds depending on context.
type Rect struct {
	X, Y, Width, Height float64
}

// Point is a 2D point, used for both screen and content coordinates
// depending on context; callers track which is which.
type Point struct {
	X, Y float64
}

// Pan returns a new camera translated by the given screen-pixel deltas.
// In Legacy mode content coordinates are scale-invariant, so the
// translation is divided by zoom; in Unified mode it is applied directly
// in screen pixels. An invalid camera is returned unchanged (spec §4.1:
// "Guard: invalid z returns c unchanged").
func Pan(c Camera, dx, dy float64) Camera {
	if !c.Valid() {
		return c
	}
	switch c.Mode {
	case Unified:
		return Camera{X: c.X + dx, Y: c.Y + dy, Z: c.Z, Mode: c.Mode}
	default:
		return Camera{X: c.X + dx/c.Z, Y: c.Y + dy/c.Z, Z: c.Z, Mode: c.Mode}
	}
}

// ZoomToPoint computes the camera after a zoom gesture of the given delta
// pivoting on focalScreen, the screen point that must remain fixed.
// delta follows wheel-event convention: positive deltaY zooms out,
// negative zooms in, scaled by the caller. newZ = clamp(c.Z*(1-delta),
// min, max).
//
// The focal-point-preservation equation is the only zoom equation in this
// package; there is deliberately no separate centering pass (spec §4.1,
// §9 "Focal-point preservation": every alternative produces drift).
func ZoomToPoint(c Camera, focalScreen Point, delta float64, constraints Constraints) Camera {
	if !c.Valid() {
		return c
	}
	newZ := clamp(c.Z*(1-delta), constraints.MinZoom, constraints.MaxZoom)
	if newZ == c.Z {
		return c
	}

	switch c.Mode {
	case Unified:
		// content point under focal: (focalScreen - c) in screen pixels
		// is invariant under zoom (content is pre-scaled in DOM, so the
		// camera itself only ever stores a screen-pixel pan offset that
		// must be rescaled to keep the same content pixel under focal).
		scale := newZ / c.Z
		cx := focalScreen.X - (focalScreen.X-c.X)*scale
		cy := focalScreen.Y - (focalScreen.Y-c.Y)*scale
		return Camera{X: cx, Y: cy, Z: newZ, Mode: c.Mode}
	default:
		// content point under focal in Legacy mode:
		//   contentX = c.X + focalScreen.X/c.Z
		// must equal newX + focalScreen.X/newZ.
		contentX := c.X + focalScreen.X/c.Z
		contentY := c.Y + focalScreen.Y/c.Z
		newX := contentX - focalScreen.X/newZ
		newY := contentY - focalScreen.Y/newZ
		return Camera{X: newX, Y: newY, Z: newZ, Mode: c.Mode}
	}
}

// Bounds describes the valid pan range in the camera's own coordinate
// convention: content-space extents in Legacy mode, screen-space virtual
// extents in Unified mode.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// rubberBandFactor is the resistance applied to out-of-bounds pan during
// an active gesture (spec §4.1: "rubber-band resistance (30%)").
const rubberBandFactor = 0.30

// Constrain applies a single clamp formula to x and y derived from bounds
// and the viewport size. When soft is true (an active gesture) an
// out-of-range position is pulled back by rubberBandFactor instead of
// being hard-clamped; when soft is false (gesture end) the clamp is
// strict. The same formula applies whether content exceeds or fits the
// viewport — the valid range simply inverts (spec §4.1).
func Constrain(c Camera, bounds Bounds, viewportW, viewportH float64, soft bool) Camera {
	if !c.Valid() {
		return c
	}
	lo, hi := rangeFor(bounds.MinX, bounds.MaxX, viewportW, c.Z, c.Mode)
	x := constrainAxis(c.X, lo, hi, soft)
	lo, hi = rangeFor(bounds.MinY, bounds.MaxY, viewportH, c.Z, c.Mode)
	y := constrainAxis(c.Y, lo, hi, soft)
	return Camera{X: x, Y: y, Z: c.Z, Mode: c.Mode}
}

// rangeFor computes the valid [lo, hi] range for one axis. In Legacy mode
// content coordinates are scale-invariant so the viewport extent in
// content units is viewportSize/zoom; in Unified mode the camera already
// stores screen pixels so no rescale is applied.
func rangeFor(minB, maxB, viewportSize, zoom float64, mode Mode) (lo, hi float64) {
	extent := viewportSize
	if mode != Unified {
		extent = viewportSize / zoom
	}
	contentSize := maxB - minB
	if contentSize <= extent {
		// content fits: center it, valid range collapses to a point
		// range whose midpoint keeps content centered in the viewport.
		center := minB + contentSize/2 - extent/2
		return center, center
	}
	// content exceeds viewport: valid camera positions keep some part
	// of [minB, maxB] in view.
	return minB, maxB - extent
}

func constrainAxis(v, lo, hi float64, soft bool) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		if !soft {
			return lo
		}
		return lo - (lo-v)*(1-rubberBandFactor)
	}
	if v > hi {
		if !soft {
			return hi
		}
		return hi + (v-hi)*(1-rubberBandFactor)
	}
	return v
}

// VisibleBounds returns the visible rectangle for the given camera and
// viewport size. In Legacy mode the result is in content coordinates; in
// Unified mode it is in screen coordinates. Downstream code that mixes
// the two must go through this helper rather than reading c.X/c.Y
// directly (spec §4.1).
func VisibleBounds(c Camera, viewportW, viewportH float64) Rect {
	if c.Mode == Unified {
		return Rect{X: c.X, Y: c.Y, Width: viewportW, Height: viewportH}
	}
	return Rect{X: -c.X, Y: -c.Y, Width: viewportW / c.Z, Height: viewportH / c.Z}
}

// Transform emits the CSS transform string for the camera's mode. Legacy
// cameras combine scale and translate; Unified cameras are translate-only
// because content is pre-scaled in its own DOM dimensions.
func Transform(c Camera) string {
	if c.Mode == Unified {
		return cssTranslate(c.X, c.Y)
	}
	return cssScaleTranslate(c.Z, -c.X, -c.Y)
}

func cssTranslate(x, y float64) string {
	return "translate(" + formatPx(x) + "px, " + formatPx(y) + "px)"
}

func cssScaleTranslate(z, x, y float64) string {
	return "scale(" + formatNum(z) + ") translate(" + formatPx(x) + "px, " + formatPx(y) + "px)"
}

// ScreenToContent converts a screen-space point to content coordinates
// for the given camera. Its inverse is ContentToScreen; composing the two
// is the identity round-trip required by spec §8.
func ScreenToContent(c Camera, p Point) Point {
	if c.Mode == Unified {
		return Point{X: c.X + p.X, Y: c.Y + p.Y}
	}
	return Point{X: c.X + p.X/c.Z, Y: c.Y + p.Y/c.Z}
}

// ContentToScreen converts a content-space point to screen coordinates
// for the given camera.
func ContentToScreen(c Camera, p Point) Point {
	if c.Mode == Unified {
		return Point{X: p.X - c.X, Y: p.Y - c.Y}
	}
	return Point{X: (p.X - c.X) * c.Z, Y: (p.Y - c.Y) * c.Z}
}

// FitInView returns a camera zoomed and panned so that content occupies
// the viewport, preferring to fit width and letting height overflow (the
// common "fit page width" behavior for document viewers). No centering
// is applied: the camera places content's top-left corner at the
// viewport origin.
func FitInView(mode Mode, content Rect, viewportW, viewportH float64, c Constraints) Camera {
	if content.Width <= 0 || viewportW <= 0 {
		return New(mode, 0, 0, c.MinZoom, c)
	}
	z := clamp(viewportW/content.Width, c.MinZoom, c.MaxZoom)
	switch mode {
	case Unified:
		// content is pre-scaled by z in its own DOM dimensions already;
		// camera stores the screen-pixel pan needed to place content's
		// top-left at the viewport origin.
		return Camera{X: content.X * z, Y: content.Y * z, Z: z, Mode: mode}
	default:
		return Camera{X: content.X, Y: content.Y, Z: z, Mode: mode}
	}
}
