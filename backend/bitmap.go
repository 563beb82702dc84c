package backend

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/infinitepdf/viewer-core/page"
)

// DecodedBitmap is the concrete page.Drawable that bridges a backend's
// encoded Blob to the cache/page packages, which work only with decoded
// pixels (cache.Bitmap stays opaque; page.Drawable adds Image()).
type DecodedBitmap struct {
	img image.Image
}

// DecodeBitmap decodes an encoded Blob into a DecodedBitmap.
func DecodeBitmap(b Blob) (*DecodedBitmap, error) {
	img, _, err := image.Decode(bytes.NewReader(b.Data))
	if err != nil {
		return nil, fmt.Errorf("backend: decode bitmap: %w", err)
	}
	return &DecodedBitmap{img: img}, nil
}

// NewDecodedBitmap wraps an already-decoded image.Image directly,
// skipping the encode/decode round trip; used by the reference provider
// and by tests.
func NewDecodedBitmap(img image.Image) *DecodedBitmap {
	return &DecodedBitmap{img: img}
}

func (d *DecodedBitmap) Close() {}

func (d *DecodedBitmap) Width() int { return d.img.Bounds().Dx() }

func (d *DecodedBitmap) Height() int { return d.img.Bounds().Dy() }

func (d *DecodedBitmap) Image() image.Image { return d.img }

var _ page.Drawable = (*DecodedBitmap)(nil)
