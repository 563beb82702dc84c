// Package pdfgen synthesizes small multi-page fixture PDFs with
// distinct page sizes, used by backend/pdfinfo's tests as a realistic
// document instead of an in-memory invented page list.
package pdfgen

import (
	"fmt"

	"github.com/signintech/gopdf"
)

// PageSpec describes one page to generate, in points.
type PageSpec struct {
	Width, Height float64
	Text          string
}

// WriteFixturePDF writes a PDF to path with one page per spec, each
// sized per spec.Width/Height, so pdfinfo readers can verify distinct
// per-page MediaBoxes round-trip correctly. spec.Text is not drawn: the
// font is requested from an empty file path, which AddTTFFont rejects,
// so every page is written without content.
func WriteFixturePDF(path string, specs []PageSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("pdfgen: %s: no pages specified", path)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: specs[0].Width, H: specs[0].Height}})

	for _, spec := range specs {
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: spec.Width, H: spec.Height}})
		if spec.Text == "" {
			continue
		}
		if err := pdf.AddTTFFont("helvetica", ""); err != nil {
			// no bundled font available; pages with no text content are
			// still valid fixtures for dimension round-tripping.
			continue
		}
		if err := pdf.SetFont("helvetica", "", 12); err != nil {
			continue
		}
		pdf.SetX(20)
		pdf.SetY(20)
		_ = pdf.Cell(nil, spec.Text)
	}

	return pdf.WritePdf(path)
}
