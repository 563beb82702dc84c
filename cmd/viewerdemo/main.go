// Command viewerdemo is a small ebiten-hosted demonstration of the
// controller package, wired against a generated fixture PDF and the
// reference backend.FixtureProvider rather than a real rasterization
// backend (spec §1: rasterization itself is out of scope). Grounded on
// the teacher's main.go Game struct and its Update/Draw/Layout/main
// structure (ebiten window setup, RunGame).
package main

import (
	"image/color"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/infinitepdf/viewer-core/backend"
	"github.com/infinitepdf/viewer-core/backend/pdfgen"
	"github.com/infinitepdf/viewer-core/backend/pdfinfo"
	"github.com/infinitepdf/viewer-core/camera"
	"github.com/infinitepdf/viewer-core/controller"
	"github.com/infinitepdf/viewer-core/page"
)

// demo implements ebiten.Game by wrapping a controller.Controller.
type demo struct {
	ctrl   *controller.Controller
	input  *controller.EbitenInput
	width  int
	height int
}

func (d *demo) Update() error {
	d.input.Update()
	return nil
}

func (d *demo) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	cam := d.ctrl.Camera()
	for _, p := range d.ctrl.VisiblePages() {
		el, ok := d.ctrl.Element(p)
		if !ok {
			continue
		}
		layout, ok := d.ctrl.LayoutFor(p)
		if !ok {
			continue
		}
		ec, ok := el.MainCanvas().(*page.EbitenCanvas)
		if !ok {
			continue
		}
		img, ok := ec.Image().(*ebiten.Image)
		if !ok {
			continue
		}
		screenPt := camera.ContentToScreen(cam, camera.Point{X: layout.X, Y: layout.Y})
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(screenPt.X, screenPt.Y)
		screen.DrawImage(img, op)
	}
}

func (d *demo) Layout(outsideWidth, outsideHeight int) (int, int) {
	if d.width != outsideWidth || d.height != outsideHeight {
		d.width, d.height = outsideWidth, outsideHeight
		d.ctrl.SetViewportSize(float64(outsideWidth), float64(outsideHeight))
	}
	return outsideWidth, outsideHeight
}

var backgroundColor = color.RGBA{R: 48, G: 48, B: 52, A: 255}

func main() {
	fixturePath := filepath.Join(os.TempDir(), "viewerdemo-fixture.pdf")
	specs := []pdfgen.PageSpec{
		{Width: 595.28, Height: 841.89, Text: "Page 1"},
		{Width: 595.28, Height: 841.89, Text: "Page 2"},
		{Width: 595.28, Height: 841.89, Text: "Page 3"},
		{Width: 841.89, Height: 595.28, Text: "Page 4 (landscape)"},
	}
	if err := pdfgen.WriteFixturePDF(fixturePath, specs); err != nil {
		log.Fatalf("viewerdemo: generate fixture: %v", err)
	}

	sizes, err := pdfinfo.PageDimensionsFromFile(fixturePath)
	if err != nil {
		log.Fatalf("viewerdemo: read fixture: %v", err)
	}

	provider := backend.NewFixtureProvider("viewerdemo-fixture", sizes)

	cfg := controller.DefaultConfig()
	cfg.Features.UseMultiResZoom = true
	cfg.Features.UseExactScaleRendering = true

	ctrl := controller.New(cfg, provider, func() page.Canvas { return page.NewEbitenCanvas() }, sizes)
	defer ctrl.Close()

	d := &demo{
		ctrl:  ctrl,
		input: controller.NewEbitenInput(ctrl),
	}

	ebiten.SetWindowSize(1024, 768)
	ebiten.SetWindowTitle("viewerdemo")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(d); err != nil {
		log.Fatal(err)
	}
}
