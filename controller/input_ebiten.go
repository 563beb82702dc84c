package controller

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/infinitepdf/viewer-core/camera"
)

// EbitenInput adapts ebiten's per-frame input state into Controller
// calls: mouse-drag and single-touch panning, wheel and pinch zoom
// pivoting on the cursor/midpoint, and arrow-key panning. Grounded on
// the teacher's touch.go (single/double-touch dispatch,
// distance-ratio pinch threshold) and main.go's Update (mouse-drag
// panning, wheel-zoom-at-cursor, arrow-key panning), adapted from the
// teacher's lat/lon map model to this package's camera.Camera.
type EbitenInput struct {
	c *Controller

	dragging           bool
	dragLastX, dragLastY int

	touchLastX, touchLastY map[ebiten.TouchID]float64

	// ZoomStep is the ZoomToPoint delta applied per wheel tick (spec
	// §4.1: ZoomToPoint's delta follows wheel-event convention).
	ZoomStep float64
	// PanKeySpeed is screen pixels per frame for arrow-key panning.
	PanKeySpeed float64
	// PinchThreshold mirrors touch.go's 10%/ -10% distance-ratio gate
	// separating a pinch event from finger jitter.
	PinchThreshold float64
}

// NewEbitenInput constructs an adapter driving c.
func NewEbitenInput(c *Controller) *EbitenInput {
	return &EbitenInput{
		c:                c,
		touchLastX:       make(map[ebiten.TouchID]float64),
		touchLastY:       make(map[ebiten.TouchID]float64),
		ZoomStep:         0.1,
		PanKeySpeed:      12,
		PinchThreshold:   0.1,
	}
}

// Update should be called once per ebiten frame (typically from
// ebiten.Game.Update).
func (in *EbitenInput) Update() {
	in.handleMouse()
	in.handleWheel()
	in.handleArrowKeys()
	in.handleTouch()
}

func (in *EbitenInput) handleMouse() {
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) ||
		ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if !pressed {
		in.dragging = false
		return
	}
	x, y := ebiten.CursorPosition()
	if !in.dragging {
		in.dragging = true
		in.dragLastX, in.dragLastY = x, y
		return
	}
	dx, dy := x-in.dragLastX, y-in.dragLastY
	in.dragLastX, in.dragLastY = x, y
	if dx != 0 || dy != 0 {
		in.c.Pan(float64(dx), float64(dy))
	}
}

func (in *EbitenInput) handleWheel() {
	_, scrollY := ebiten.Wheel()
	if scrollY == 0 {
		return
	}
	x, y := ebiten.CursorPosition()
	delta := in.ZoomStep
	if scrollY > 0 {
		delta = -in.ZoomStep
	}
	in.c.ZoomAt(camera.Point{X: float64(x), Y: float64(y)}, delta)
}

func (in *EbitenInput) handleArrowKeys() {
	var dx, dy float64
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		dx -= in.PanKeySpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		dx += in.PanKeySpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		dy -= in.PanKeySpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		dy += in.PanKeySpeed
	}
	if dx != 0 || dy != 0 {
		in.c.Pan(dx, dy)
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	if !ctrl {
		return
	}
	cam := in.c.Camera()
	center := camera.Point{X: in.c.viewportCenterX(), Y: in.c.viewportCenterY()}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		in.c.ZoomAt(center, -in.ZoomStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		in.c.ZoomAt(center, in.ZoomStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.Key0) {
		in.c.ZoomAt(center, 1-in.c.cfg.CameraConstraints.MinZoom/cam.Z)
	}
}

func (in *EbitenInput) handleTouch() {
	touches := ebiten.AppendTouchIDs(nil)
	for id := range in.touchLastX {
		if !containsTouch(touches, id) {
			delete(in.touchLastX, id)
			delete(in.touchLastY, id)
		}
	}
	for _, id := range touches {
		if _, ok := in.touchLastX[id]; !ok {
			x, y := ebiten.TouchPosition(id)
			in.touchLastX[id] = float64(x)
			in.touchLastY[id] = float64(y)
		}
	}

	switch len(touches) {
	case 1:
		id := touches[0]
		x, y := ebiten.TouchPosition(id)
		lx, ly := in.touchLastX[id], in.touchLastY[id]
		dx, dy := float64(x)-lx, float64(y)-ly
		if dx != 0 || dy != 0 {
			in.c.Pan(dx, dy)
		}
		in.touchLastX[id], in.touchLastY[id] = float64(x), float64(y)

	case 2:
		id1, id2 := touches[0], touches[1]
		x1, y1 := ebiten.TouchPosition(id1)
		x2, y2 := ebiten.TouchPosition(id2)
		currentDist := hypot(float64(x1)-float64(x2), float64(y1)-float64(y2))
		prevDist := hypot(in.touchLastX[id1]-in.touchLastX[id2], in.touchLastY[id1]-in.touchLastY[id2])
		midX, midY := (float64(x1)+float64(x2))/2, (float64(y1)+float64(y2))/2

		if prevDist > 0 {
			if currentDist > prevDist*(1+in.PinchThreshold) {
				in.c.ZoomAt(camera.Point{X: midX, Y: midY}, -in.ZoomStep)
			} else if currentDist < prevDist*(1-in.PinchThreshold) {
				in.c.ZoomAt(camera.Point{X: midX, Y: midY}, in.ZoomStep)
			}
		}

		in.touchLastX[id1], in.touchLastY[id1] = float64(x1), float64(y1)
		in.touchLastX[id2], in.touchLastY[id2] = float64(x2), float64(y2)
	}
}

func containsTouch(ids []ebiten.TouchID, id ebiten.TouchID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func hypot(dx, dy float64) float64 {
	return math.Hypot(dx, dy)
}

func (c *Controller) viewportCenterX() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewportW / 2
}

func (c *Controller) viewportCenterY() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewportH / 2
}
