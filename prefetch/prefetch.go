// Package prefetch implements the focal/pan prefetcher described in the
// spec's component table: a placeholder linear (constant-velocity)
// predictor, not a learned model, used to warm off-viewport tiles ahead
// of where the user is likely to pan or zoom next.
package prefetch

import (
	"time"

	"github.com/infinitepdf/viewer-core/tile"
)

// Sample is one observed camera position, used to estimate velocity.
type Sample struct {
	At   time.Time
	X, Y float64
	Zoom float64
}

// Config tunes the predictor.
type Config struct {
	// Horizon is how far ahead in time the predictor extrapolates.
	Horizon time.Duration
	// HistorySize bounds how many recent samples are kept; only the
	// oldest and newest are used for the velocity estimate, so this
	// mainly bounds memory, not prediction quality.
	HistorySize int
}

// DefaultConfig predicts 150ms ahead, a tradeoff between warming tiles
// early enough to matter and not diverging from a constant-velocity
// assumption over a longer window.
func DefaultConfig() Config {
	return Config{Horizon: 150 * time.Millisecond, HistorySize: 8}
}

// Predictor is a constant-velocity linear predictor over recent camera
// samples (spec: "a placeholder linear predictor suffices" — explicitly
// not a learned model).
type Predictor struct {
	cfg     Config
	history []Sample
}

// New constructs a Predictor.
func New(cfg Config) *Predictor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 8
	}
	return &Predictor{cfg: cfg}
}

// Observe records a new camera sample, dropping the oldest once
// HistorySize is exceeded.
func (p *Predictor) Observe(s Sample) {
	p.history = append(p.history, s)
	if len(p.history) > p.cfg.HistorySize {
		p.history = p.history[len(p.history)-p.cfg.HistorySize:]
	}
}

// Reset clears accumulated history, used when a gesture ends or a
// display-mode change makes prior velocity meaningless.
func (p *Predictor) Reset() {
	p.history = nil
}

// PredictedCenter extrapolates the focal point Horizon into the future
// from the oldest and newest recorded samples' velocity. ok is false
// with fewer than two samples or a non-positive elapsed time between
// them.
func (p *Predictor) PredictedCenter() (x, y float64, ok bool) {
	if len(p.history) < 2 {
		return 0, 0, false
	}
	first := p.history[0]
	last := p.history[len(p.history)-1]
	dt := last.At.Sub(first.At)
	if dt <= 0 {
		return 0, 0, false
	}
	vx := (last.X - first.X) / dt.Seconds()
	vy := (last.Y - first.Y) / dt.Seconds()
	ahead := p.cfg.Horizon.Seconds()
	return last.X + vx*ahead, last.Y + vy*ahead, true
}

// PredictedViewport shifts current by the predicted center's delta from
// the latest observed position, keeping its width/height fixed (spec:
// "chooses off-viewport tiles to warm based on velocity and focal
// point").
func (p *Predictor) PredictedViewport(current tile.Rect) (tile.Rect, bool) {
	if len(p.history) == 0 {
		return current, false
	}
	px, py, ok := p.PredictedCenter()
	if !ok {
		return current, false
	}
	last := p.history[len(p.history)-1]
	dx, dy := px-last.X, py-last.Y
	return tile.Rect{X: current.X + dx, Y: current.Y + dy, Width: current.Width, Height: current.Height}, true
}

// SelectTilesToWarm returns the tiles present in predicted but absent
// from current, i.e. the off-viewport tiles worth warming ahead of an
// anticipated pan (spec component table: "Focal/pan prefetcher").
func SelectTilesToWarm(current, predicted []tile.Coordinate) []tile.Coordinate {
	seen := make(map[tile.Coordinate]struct{}, len(current))
	for _, c := range current {
		seen[c] = struct{}{}
	}
	var extra []tile.Coordinate
	for _, c := range predicted {
		if _, ok := seen[c]; !ok {
			extra = append(extra, c)
		}
	}
	return extra
}
