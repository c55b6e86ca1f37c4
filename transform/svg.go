package transform

import (
	"bytes"
	"image"
	"image/png"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// SVGToPNG rasterizes an svg at its intrinsic size and returns png
// bytes. The result is fed through the generic resizer afterwards.
func SVGToPNG(data []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse svg")
	}
	w := int(icon.ViewBox.W + 0.5)
	h := int(icon.ViewBox.H + 0.5)
	if w <= 0 || h <= 0 {
		return nil, errors.New("svg has no intrinsic size")
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
