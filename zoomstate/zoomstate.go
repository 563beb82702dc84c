// Package zoomstate implements the zoom gesture state machine described
// in spec §4.2: gesture phase transitions, the monotonic epoch counter,
// render-mode hysteresis, focal-point retention, and trackpad-rebound
// suppression.
package zoomstate

import (
	"sync"
	"time"
)

// Phase is one of the four gesture phases (spec §3: GesturePhase).
type Phase int

const (
	Idle Phase = iota
	Active
	Settling
	Rendering
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Settling:
		return "settling"
	case Rendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// Mode is a render mode (spec §3: RenderMode).
type Mode int

const (
	FullPage Mode = iota
	Adaptive
	Tiled
)

func (m Mode) String() string {
	switch m {
	case FullPage:
		return "full-page"
	case Adaptive:
		return "adaptive"
	case Tiled:
		return "tiled"
	default:
		return "unknown"
	}
}

// FocalKind distinguishes why a focal point was recorded.
type FocalKind int

const (
	FocalZoom FocalKind = iota
	FocalPan
)

// CameraSnapshot is the minimal camera shape this package needs: just the zoom
// scalar plus whatever position fields a caller's camera type carries,
// passed through opaquely via CameraSnapshot.
type CameraSnapshot struct {
	X, Y, Z float64
}

// Point is a 2D point in whatever space the caller uses for focal
// points (typically screen pixels).
type Point struct {
	X, Y float64
}

// Snapshot is an immutable capture of camera, focal point, epoch, and
// render scale, bound to a render request so its calculations stay
// stable across later changes (spec §3: ZoomSnapshot).
type Snapshot struct {
	Camera      CameraSnapshot
	Focal       Point
	Epoch       int64
	RenderScale float64
}

// Config holds the tunable timings and thresholds (spec §4.2, §9 "Open
// questions"). No package-level globals: every tunable lives here and is
// supplied at construction (spec §9 "Global mutable state").
type Config struct {
	// GestureEndDelay is the inactivity window after the last zoom
	// event before active -> settling (≈300ms).
	GestureEndDelay time.Duration
	// SettlingDelay is the time spent in settling before ->
	// rendering (≈200ms).
	SettlingDelay time.Duration
	// SettlingTickInterval is how often onSettlingProgress fires
	// during settling (≈50ms).
	SettlingTickInterval time.Duration
	// ReboundWindow is how long after a gesture ends at a zoom bound
	// an opposite-direction event is suppressed (≈600ms). Open
	// question in spec §9: "exact rebound window is empirical;
	// 600ms is reasonable."
	ReboundWindow time.Duration
	// ModeThreshold is the zoom value mode hysteresis pivots around
	// (≈4.0).
	ModeThreshold float64
	// ModeHysteresisBand is the multiplicative band around
	// ModeThreshold (0.10 = 10%).
	ModeHysteresisBand float64
	// MaxTiledZoom forces full-page above this zoom regardless of
	// hysteresis (≈64). Open question in spec §9: "conservative;
	// some backends could sustain higher."
	MaxTiledZoom float64
	MinZoom      float64
	MaxZoom      float64
}

// DefaultConfig returns the values named throughout spec §3/§4.2/§9.
func DefaultConfig() Config {
	return Config{
		GestureEndDelay:      300 * time.Millisecond,
		SettlingDelay:        200 * time.Millisecond,
		SettlingTickInterval: 50 * time.Millisecond,
		ReboundWindow:        600 * time.Millisecond,
		ModeThreshold:        4.0,
		ModeHysteresisBand:   0.10,
		MaxTiledZoom:         64,
		MinZoom:              1,
		MaxZoom:              32,
	}
}

// Callbacks lets a consumer observe state transitions without the
// machine depending on any specific controller type (spec §9: break
// cyclic references via callbacks passed at call time, not closed-over
// controller state held long-term).
type Callbacks struct {
	OnGestureStart     func()
	OnSettlingProgress func(elapsedMs int64, atBoundary bool)
	OnSettlingComplete func(scale, zoom float64)
	ReboundSuppressed  func(direction string)
}

// Machine is the zoom gesture state machine. Safe for concurrent use.
type Machine struct {
	cfg   Config
	cb    Callbacks
	now   func() time.Time
	timer func(d time.Duration, f func()) stoppable

	mu           sync.Mutex
	phase        Phase
	epoch        int64
	mode         Mode
	committedAt  Mode // mode committed at gesture start, held through Active
	camera       CameraSnapshot
	focal        Point
	focalKind    FocalKind
	lastEventAt  time.Time
	gestureTimer stoppable
	settleTimer  stoppable
	tickTimer    stoppable
	settleStart  time.Time

	reboundAt        time.Time
	reboundDirection int // -1 zoomed out to min, +1 zoomed in to max, 0 none
	freshGestureSeen bool
}

type stoppable interface{ Stop() bool }

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

func realTimerFunc(d time.Duration, f func()) stoppable {
	return realTimer{t: time.AfterFunc(d, f)}
}

// New constructs a Machine in the Idle phase at epoch 0.
func New(cfg Config, cb Callbacks) *Machine {
	return &Machine{
		cfg:   cfg,
		cb:    cb,
		now:   time.Now,
		timer: realTimerFunc,
		phase: Idle,
		mode:  FullPage,
	}
}

// GetGesturePhase returns the current phase.
func (m *Machine) GetGesturePhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// GetEpoch returns the current epoch.
func (m *Machine) GetEpoch() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// GetRenderMode returns the currently committed render mode.
func (m *Machine) GetRenderMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committedAt
}

// CanRender reports whether new render work may be dispatched: only in
// Idle and Rendering (spec §4.2).
func (m *Machine) CanRender() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == Idle || m.phase == Rendering
}

// CaptureSnapshot captures the current camera/focal/epoch/render scale
// as an immutable Snapshot for a render request to bind to.
func (m *Machine) CaptureSnapshot(renderScale float64) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Camera: m.camera, Focal: m.focal, Epoch: m.epoch, RenderScale: renderScale}
}

// SyncFromCamera updates the tracked camera snapshot without affecting
// phase or epoch; used to keep CaptureSnapshot current between explicit
// gesture events (spec §4.2 API: syncFromCamera(c)).
func (m *Machine) SyncFromCamera(c CameraSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = c
}

// SetFocalPoint records the focal point and its kind (spec §4.2 API).
func (m *Machine) SetFocalPoint(p Point, kind FocalKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focal = p
	m.focalKind = kind
}

// SignalOngoingActivity marks activity without a specific zoom delta
// (e.g. a pan tick during a zoom gesture), resetting the inactivity
// timer if already Active, or starting a fresh gesture if Idle. A fresh
// gesture started this way bypasses rebound suppression so the user can
// immediately reverse direction after a gesture ends at a bound (spec
// §4.2: "Rebound detection").
func (m *Machine) SignalOngoingActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Idle {
		m.transitionToActiveLocked()
		m.freshGestureSeen = true
	}
	m.resetGestureTimerLocked()
}

// OnZoomGesture records a zoom event: newZ is the camera's zoom after
// the gesture's delta has been applied by the caller (this package does
// not itself mutate a camera; camera math lives in package camera).
// The direction (+1 zoom-in, -1 zoom-out) is derived by comparing newZ
// with the last recorded zoom and is used only for rebound detection.
func (m *Machine) OnZoomGesture(newZ float64, focal Point, cam CameraSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	direction := 0
	if newZ > m.camera.Z {
		direction = 1
	} else if newZ < m.camera.Z {
		direction = -1
	}

	if m.isReboundLocked(direction) {
		if m.cb.ReboundSuppressed != nil {
			dir := "out"
			if direction > 0 {
				dir = "in"
			}
			m.cb.ReboundSuppressed(dir)
		}
		return
	}

	wasIdle := m.phase == Idle
	if wasIdle {
		m.transitionToActiveLocked()
	}

	m.camera = cam
	m.camera.Z = newZ
	m.focal = focal
	m.focalKind = FocalZoom
	m.lastEventAt = m.now()

	m.resetGestureTimerLocked()

	// record whether this gesture ended (so far) at a zoom bound, for
	// rebound detection on the *next* gesture.
	if newZ >= m.cfg.MaxZoom {
		m.reboundDirection = 1
		m.reboundAt = m.lastEventAt
	} else if newZ <= m.cfg.MinZoom {
		m.reboundDirection = -1
		m.reboundAt = m.lastEventAt
	} else {
		m.reboundDirection = 0
	}
}

// isReboundLocked reports whether an event in the given direction should
// be suppressed as rebound. Caller must hold m.mu.
func (m *Machine) isReboundLocked(direction int) bool {
	if m.freshGestureSeen {
		return false
	}
	if m.reboundDirection == 0 || direction == 0 {
		return false
	}
	// opposite direction: reboundDirection=1 means gesture ended at
	// max zoom, so an opposite event is a zoom-out (direction=-1).
	opposite := direction == -m.reboundDirection
	if !opposite {
		return false
	}
	return m.now().Sub(m.reboundAt) < m.cfg.ReboundWindow
}

// IsReboundZoomIn reports whether a hypothetical zoom-in event right now
// would be suppressed as rebound (i.e. the last gesture ended at
// MinZoom within windowMs).
func (m *Machine) IsReboundZoomIn(windowMs int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reboundDirection == -1 && m.now().Sub(m.reboundAt) < time.Duration(windowMs)*time.Millisecond
}

// IsReboundZoomOut reports whether a hypothetical zoom-out event right
// now would be suppressed as rebound.
func (m *Machine) IsReboundZoomOut(windowMs int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reboundDirection == 1 && m.now().Sub(m.reboundAt) < time.Duration(windowMs)*time.Millisecond
}

// transitionToActiveLocked moves Idle -> Active, bumping the epoch and
// committing the render mode for the duration of the gesture (spec
// §4.2). Caller must hold m.mu.
func (m *Machine) transitionToActiveLocked() {
	m.phase = Active
	m.epoch++
	m.committedAt = m.mode
	m.freshGestureSeen = false
	if m.cb.OnGestureStart != nil {
		cb := m.cb.OnGestureStart
		go cb()
	}
}

// resetGestureTimerLocked (re)starts the inactivity timer that fires the
// Active -> Settling transition. Caller must hold m.mu.
func (m *Machine) resetGestureTimerLocked() {
	if m.gestureTimer != nil {
		m.gestureTimer.Stop()
	}
	m.gestureTimer = m.timer(m.cfg.GestureEndDelay, m.onGestureEndTimer)
}

// onGestureEndTimer fires on the timer goroutine when no zoom event has
// arrived for GestureEndDelay; transitions Active -> Settling.
func (m *Machine) onGestureEndTimer() {
	m.mu.Lock()
	if m.phase != Active {
		m.mu.Unlock()
		return
	}
	m.phase = Settling
	m.settleStart = m.now()
	m.recomputeModeLocked()
	m.startSettlingTicksLocked()
	m.settleTimer = m.timer(m.cfg.SettlingDelay, m.onSettlingTimer)
	m.mu.Unlock()
}

// startSettlingTicksLocked schedules the first speculative settling
// tick. Caller must hold m.mu.
func (m *Machine) startSettlingTicksLocked() {
	if m.cfg.SettlingTickInterval <= 0 {
		return
	}
	m.tickTimer = m.timer(m.cfg.SettlingTickInterval, m.onSettlingTick)
}

// onSettlingTick fires periodically during Settling, emitting
// onSettlingProgress and rescheduling itself until Settling ends.
func (m *Machine) onSettlingTick() {
	m.mu.Lock()
	if m.phase != Settling {
		m.mu.Unlock()
		return
	}
	elapsed := m.now().Sub(m.settleStart)
	atBoundary := elapsed+m.cfg.SettlingTickInterval >= m.cfg.SettlingDelay
	cb := m.cb.OnSettlingProgress
	m.mu.Unlock()

	if cb != nil {
		cb(elapsed.Milliseconds(), atBoundary)
	}

	m.mu.Lock()
	if m.phase == Settling && !atBoundary {
		m.tickTimer = m.timer(m.cfg.SettlingTickInterval, m.onSettlingTick)
	}
	m.mu.Unlock()
}

// onSettlingTimer fires when SettlingDelay has elapsed; transitions
// Settling -> Rendering.
func (m *Machine) onSettlingTimer() {
	m.mu.Lock()
	if m.phase != Settling {
		m.mu.Unlock()
		return
	}
	m.phase = Rendering
	z := m.camera.Z
	scale := m.committedRenderScaleLocked()
	cb := m.cb.OnSettlingComplete
	m.mu.Unlock()

	if cb != nil {
		cb(scale, z)
	}
}

// committedRenderScaleLocked is a placeholder scale derivation; callers
// that need the actual scale tier combine this machine's zoom with their
// own DPR via the tile package. Caller must hold m.mu.
func (m *Machine) committedRenderScaleLocked() float64 {
	return m.camera.Z
}

// CompleteRenderPhase transitions Rendering -> Idle (spec §4.2 API).
func (m *Machine) CompleteRenderPhase() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Rendering {
		m.phase = Idle
	}
}

// OnScaleRendered accepts notice that a tier finished rendering. The
// machine keeps no per-tier state and ignores the value; the decision
// whether an upgrade render is still needed lives in the coordinator.
func (m *Machine) OnScaleRendered(tier int) {
	// Tier acceptance is the coordinator's responsibility (spec §4.4).
	_ = tier
}

// recomputeModeLocked applies the hysteresis rule in spec §4.2 and
// updates m.mode (the *next* mode to commit at the next gesture start).
// During Active the previously committed mode is retained; this is only
// called at Active -> Settling, i.e. once the gesture itself has
// finished, so recomputing here does not violate the
// commit-at-gesture-start rule — it prepares the mode that will be
// committed next time. Caller must hold m.mu.
func (m *Machine) recomputeModeLocked() {
	z := m.camera.Z
	threshold := m.cfg.ModeThreshold
	band := m.cfg.ModeHysteresisBand

	next := m.mode
	switch m.mode {
	case FullPage, Adaptive:
		if z > threshold*(1+band) {
			next = Tiled
		}
	case Tiled:
		if z < threshold*(1-band) {
			next = FullPage
		}
	}
	if z > m.cfg.MaxTiledZoom {
		next = FullPage
	}
	if next != m.mode {
		m.mode = next
		m.epoch++
	}
}
