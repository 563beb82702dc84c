package prefetch

import (
	"testing"
	"time"

	"github.com/infinitepdf/viewer-core/tile"
)

func TestPredictedCenterRequiresTwoSamples(t *testing.T) {
	p := New(DefaultConfig())
	if _, _, ok := p.PredictedCenter(); ok {
		t.Fatal("expected no prediction with zero samples")
	}
	p.Observe(Sample{At: time.Unix(0, 0), X: 0, Y: 0})
	if _, _, ok := p.PredictedCenter(); ok {
		t.Fatal("expected no prediction with one sample")
	}
}

func TestPredictedCenterExtrapolatesConstantVelocity(t *testing.T) {
	p := New(Config{Horizon: 100 * time.Millisecond, HistorySize: 8})
	base := time.Unix(0, 0)
	p.Observe(Sample{At: base, X: 0, Y: 0})
	p.Observe(Sample{At: base.Add(100 * time.Millisecond), X: 10, Y: 20})
	// velocity is 100px/s in x, 200px/s in y; the 100ms horizon ahead of
	// the last sample (10, 20) adds 10px in x and 20px in y.
	x, y, ok := p.PredictedCenter()
	if !ok {
		t.Fatal("expected a prediction with two samples")
	}
	wantX, wantY := 20.0, 40.0
	if x != wantX || y != wantY {
		t.Fatalf("expected (%v, %v), got (%v, %v)", wantX, wantY, x, y)
	}
}

func TestPredictedCenterRejectsNonPositiveElapsed(t *testing.T) {
	p := New(DefaultConfig())
	same := time.Unix(5, 0)
	p.Observe(Sample{At: same, X: 0, Y: 0})
	p.Observe(Sample{At: same, X: 10, Y: 10})
	if _, _, ok := p.PredictedCenter(); ok {
		t.Fatal("expected no prediction when samples share a timestamp")
	}
}

func TestObserveBoundsHistoryToConfiguredSize(t *testing.T) {
	p := New(Config{Horizon: time.Second, HistorySize: 2})
	base := time.Unix(0, 0)
	p.Observe(Sample{At: base, X: 0, Y: 0})
	p.Observe(Sample{At: base.Add(time.Second), X: 100, Y: 0})
	p.Observe(Sample{At: base.Add(2 * time.Second), X: 200, Y: 0})
	if len(p.history) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(p.history))
	}
	if p.history[0].X != 100 {
		t.Fatalf("expected oldest sample dropped, got history %v", p.history)
	}
}

func TestResetClearsHistory(t *testing.T) {
	p := New(DefaultConfig())
	p.Observe(Sample{At: time.Unix(0, 0), X: 0, Y: 0})
	p.Observe(Sample{At: time.Unix(1, 0), X: 10, Y: 0})
	p.Reset()
	if len(p.history) != 0 {
		t.Fatal("expected history cleared after Reset")
	}
	if _, _, ok := p.PredictedCenter(); ok {
		t.Fatal("expected no prediction after Reset")
	}
}

func TestPredictedViewportShiftsByVelocityKeepingSize(t *testing.T) {
	p := New(Config{Horizon: 100 * time.Millisecond, HistorySize: 8})
	base := time.Unix(0, 0)
	p.Observe(Sample{At: base, X: 0, Y: 0})
	p.Observe(Sample{At: base.Add(100 * time.Millisecond), X: 10, Y: 0})
	current := tile.Rect{X: 0, Y: 0, Width: 200, Height: 200}
	pv, ok := p.PredictedViewport(current)
	if !ok {
		t.Fatal("expected a predicted viewport with two samples")
	}
	if pv.Width != current.Width || pv.Height != current.Height {
		t.Fatalf("expected size preserved, got %+v", pv)
	}
	if pv.X <= current.X {
		t.Fatalf("expected viewport to shift forward in x, got %+v", pv)
	}
}

func TestPredictedViewportFallsBackWithoutHistory(t *testing.T) {
	p := New(DefaultConfig())
	current := tile.Rect{X: 5, Y: 5, Width: 50, Height: 50}
	pv, ok := p.PredictedViewport(current)
	if ok {
		t.Fatal("expected no prediction without any samples")
	}
	if pv != current {
		t.Fatalf("expected fallback to current rect, got %+v", pv)
	}
}

func TestSelectTilesToWarmReturnsOnlyNewTiles(t *testing.T) {
	current := []tile.Coordinate{
		{Page: 0, TileX: 0, TileY: 0, Scale: 1},
		{Page: 0, TileX: 1, TileY: 0, Scale: 1},
	}
	predicted := []tile.Coordinate{
		{Page: 0, TileX: 1, TileY: 0, Scale: 1},
		{Page: 0, TileX: 2, TileY: 0, Scale: 1},
		{Page: 1, TileX: 0, TileY: 0, Scale: 1},
	}
	got := SelectTilesToWarm(current, predicted)
	want := []tile.Coordinate{
		{Page: 0, TileX: 2, TileY: 0, Scale: 1},
		{Page: 1, TileX: 0, TileY: 0, Scale: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d tiles to warm, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v at index %d, got %v", want[i], i, got[i])
		}
	}
}

func TestSelectTilesToWarmEmptyWhenNoNewTiles(t *testing.T) {
	current := []tile.Coordinate{{Page: 0, TileX: 0, TileY: 0, Scale: 1}}
	got := SelectTilesToWarm(current, current)
	if len(got) != 0 {
		t.Fatalf("expected no extra tiles, got %v", got)
	}
}
