package page

import (
	"image"
	"image/color"
	"testing"

	"github.com/infinitepdf/viewer-core/tile"
)

type fakeDrawable struct {
	img image.Image
}

func newFakeDrawable(w, h int) *fakeDrawable {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRGBA(img, color.RGBA{R: 255, A: 255})
	return &fakeDrawable{img: img}
}

func fillRGBA(img *image.RGBA, c color.RGBA) {
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func (f *fakeDrawable) Close()      {}
func (f *fakeDrawable) Width() int  { return f.img.Bounds().Dx() }
func (f *fakeDrawable) Height() int { return f.img.Bounds().Dy() }
func (f *fakeDrawable) Image() image.Image {
	return f.img
}

func softwareFactory() Canvas { return NewSoftwareCanvas() }

func TestSetDimensionsResizesMainCanvas(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(100, 200)
	if e.main.Width() != 100 || e.main.Height() != 200 {
		t.Fatalf("expected main canvas 100x200, got %dx%d", e.main.Width(), e.main.Height())
	}
}

func TestSetFinalDimensionsIncorporatesZoomInUnifiedMode(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetFinalDimensions(100, 200, 2, true)
	if e.main.Width() != 200 || e.main.Height() != 400 {
		t.Fatalf("expected doubled dims in unified mode, got %dx%d", e.main.Width(), e.main.Height())
	}
}

func TestSetFinalDimensionsIgnoresZoomInLegacyMode(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetFinalDimensions(100, 200, 2, false)
	if e.main.Width() != 100 || e.main.Height() != 200 {
		t.Fatalf("expected unscaled dims in legacy mode, got %dx%d", e.main.Width(), e.main.Height())
	}
}

func TestRenderMarksRenderedAtEpoch(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	if e.HasRenderedContent() {
		t.Fatal("expected no rendered content before Render")
	}
	e.Render(newFakeDrawable(10, 10), 5)
	if !e.HasRenderedContent() {
		t.Fatal("expected rendered content after Render")
	}
	if e.RenderedEpoch() != 5 {
		t.Fatalf("expected epoch 5, got %d", e.RenderedEpoch())
	}
}

func TestRenderTilesRejectsBelowCoveragePolicy(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(100, 100)
	tiles := []Tile{{Bitmap: newFakeDrawable(10, 10), X: 0, Y: 0, W: 10, H: 10}} // 1% coverage
	snap := TransformSnapshot{ContainerW: 100, ContainerH: 100, Epoch: 1}
	ok := e.RenderTiles(tiles, snap, 1, false)
	if ok {
		t.Fatal("expected sparse composite to be rejected by coverage policy")
	}
	if e.HasRenderedContent() {
		t.Fatal("expected no rendered content after rejected composite")
	}
}

func TestRenderTilesAcceptsAboveCoveragePolicy(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	tiles := []Tile{{Bitmap: newFakeDrawable(10, 10), X: 0, Y: 0, W: 10, H: 10}} // 100% coverage
	snap := TransformSnapshot{ContainerW: 10, ContainerH: 10, Epoch: 1}
	ok := e.RenderTiles(tiles, snap, 1, false)
	if !ok {
		t.Fatal("expected full-coverage composite to be accepted")
	}
	if !e.HasRenderedContent() {
		t.Fatal("expected rendered content after accepted composite")
	}
}

func TestRenderTilesForceFullPageAlwaysRejects(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	tiles := []Tile{{Bitmap: newFakeDrawable(10, 10), X: 0, Y: 0, W: 10, H: 10}}
	snap := TransformSnapshot{ContainerW: 10, ContainerH: 10, Epoch: 1}
	ok := e.RenderTiles(tiles, snap, 1, true)
	if ok {
		t.Fatal("expected forceFullPage to reject the tile composite")
	}
}

func TestRenderTilesFallsBackToCurrentDimensionsWhenSnapshotStale(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	// snapshot claims a huge container, which alone would fail coverage,
	// but currentEpoch > snapshot.Epoch means current (small) dims apply.
	snap := TransformSnapshot{ContainerW: 10000, ContainerH: 10000, Epoch: 1}
	tiles := []Tile{{Bitmap: newFakeDrawable(10, 10), X: 0, Y: 0, W: 10, H: 10}}
	ok := e.RenderTiles(tiles, snap, 2, false)
	if !ok {
		t.Fatal("expected fallback to current dimensions to pass coverage")
	}
}

func TestAddTilesToExistingCanvasRejectsIncompatibleEpoch(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 1)
	ok := e.AddTilesToExistingCanvas([]Tile{{Bitmap: newFakeDrawable(10, 10), W: 10, H: 10}}, 2)
	if ok {
		t.Fatal("expected incompatible tileEpoch to be rejected")
	}
}

func TestAddTilesToExistingCanvasAcceptsMatchingEpoch(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 1)
	ok := e.AddTilesToExistingCanvas([]Tile{{Bitmap: newFakeDrawable(10, 10), W: 10, H: 10}}, 1)
	if !ok {
		t.Fatal("expected matching tileEpoch composite to be accepted")
	}
}

func TestOverlaySwapPreservesMainUntilCommit(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 1)
	oldMain := e.main

	e.PrepareForFullPageRenderWithOverlay(2)
	if e.main != oldMain {
		t.Fatal("expected main canvas to remain unchanged until CommitOverlay")
	}
	if e.overlay == nil {
		t.Fatal("expected an overlay canvas to be allocated")
	}

	e.CommitOverlay(newFakeDrawable(10, 10), 2)
	if e.main == oldMain {
		t.Fatal("expected main canvas to be replaced after CommitOverlay")
	}
	if e.overlay != nil {
		t.Fatal("expected overlay to be cleared after commit")
	}
	if e.RenderedEpoch() != 2 {
		t.Fatalf("expected epoch 2 after commit, got %d", e.RenderedEpoch())
	}
}

func TestCaptureAndRestoreSnapshot(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 1)
	e.CaptureSnapshot()
	if e.snapshot == nil {
		t.Fatal("expected snapshot canvas to be captured")
	}
	e.main.Clear()
	if !e.RestoreFromSnapshot() {
		t.Fatal("expected RestoreFromSnapshot to succeed")
	}
}

func TestClearRenderedResetsState(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 3)
	e.ClearRendered()
	if e.HasRenderedContent() {
		t.Fatal("expected HasRenderedContent false after ClearRendered")
	}
	if e.RenderedEpoch() != 0 {
		t.Fatalf("expected epoch reset to 0, got %d", e.RenderedEpoch())
	}
}

func TestDestroyReleasesAllCanvases(t *testing.T) {
	e := New(1, softwareFactory)
	e.SetDimensions(10, 10)
	e.Render(newFakeDrawable(10, 10), 1)
	e.CaptureSnapshot()
	e.PrepareForFullPageRenderWithOverlay(2)
	e.Destroy()
	if e.main != nil || e.snapshot != nil || e.overlay != nil {
		t.Fatal("expected every canvas reference cleared after Destroy")
	}
}

func TestShouldSkipFullPageRenderAboveEightX(t *testing.T) {
	if ShouldSkipFullPageRender(8) {
		t.Fatal("expected exactly 8x to still use full-page render")
	}
	if !ShouldSkipFullPageRender(8.01) {
		t.Fatal("expected above 8x to skip full-page render")
	}
}

func TestTransformSnapshotHoldsExpectedTileBounds(t *testing.T) {
	snap := TransformSnapshot{ExpectedTileBounds: tile.Rect{X: 0, Y: 0, Width: 10, Height: 10}}
	if snap.ExpectedTileBounds.Width != 10 {
		t.Fatal("unexpected ExpectedTileBounds value")
	}
}
