// Package pdfinfo reads per-page dimensions out of a real PDF file,
// giving a reference PageDataProvider (backend.FixtureProvider) real
// page geometry to bootstrap from instead of invented numbers.
package pdfinfo

import (
	"fmt"
	"sort"

	"github.com/phpdave11/gofpdi"

	"github.com/infinitepdf/viewer-core/backend"
)

// PageDimensionsFromFile opens path and reads every page's MediaBox,
// returning one backend.PageSize per page in page order (points, same
// unit PDF itself uses). gofpdi panics on a malformed or unreadable
// source file rather than returning an error from SetSourceFile, so a
// missing/corrupt path is recovered into a plain error here.
func PageDimensionsFromFile(path string) (sizes []backend.PageSize, err error) {
	defer func() {
		if r := recover(); r != nil {
			sizes, err = nil, fmt.Errorf("pdfinfo: %s: %v", path, r)
		}
	}()

	importer := gofpdi.NewImporter()
	importer.SetSourceFile(path)

	numPages := importer.GetNumPages()
	if numPages <= 0 {
		return nil, fmt.Errorf("pdfinfo: %s: no pages found", path)
	}

	boxesByPage := importer.GetPageSizes()
	sizes = make([]backend.PageSize, numPages)
	pageNumbers := make([]int, 0, len(boxesByPage))
	for pageNo := range boxesByPage {
		pageNumbers = append(pageNumbers, pageNo)
	}
	sort.Ints(pageNumbers)

	for _, pageNo := range pageNumbers {
		if pageNo < 1 || pageNo > numPages {
			continue
		}
		box, ok := boxesByPage[pageNo]["/MediaBox"]
		if !ok {
			return nil, fmt.Errorf("pdfinfo: %s: page %d missing MediaBox", path, pageNo)
		}
		sizes[pageNo-1] = backend.PageSize{Width: box["w"], Height: box["h"]}
	}
	return sizes, nil
}
