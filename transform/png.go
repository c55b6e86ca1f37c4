package transform

import (
	"bytes"
	"image"
	"image/png"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// ScaledownPNG is the dedicated PNG resizer. It keeps the decoded
// pixel layout (grayscale, RGB and RGBA stay in their own buffers) and
// resizes with a triangle kernel. Pixel layouts it doesn't handle,
// 16-bit depths included, go through the generic resizer instead of
// failing the request.
func ScaledownPNG(data []byte, width uint32) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode png")
	}
	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy())
	if w == width {
		return data, nil
	}
	w2, h2 := Fit(w, h, width)
	if w2 == w && h2 == h {
		return data, nil
	}

	var dst image.Image
	switch img.(type) {
	case *image.Gray:
		d := image.NewGray(image.Rect(0, 0, int(w2), int(h2)))
		draw.BiLinear.Scale(d, d.Bounds(), img, b, draw.Src, nil)
		dst = d
	case *image.RGBA:
		d := image.NewRGBA(image.Rect(0, 0, int(w2), int(h2)))
		draw.BiLinear.Scale(d, d.Bounds(), img, b, draw.Src, nil)
		dst = d
	case *image.NRGBA:
		d := image.NewNRGBA(image.Rect(0, 0, int(w2), int(h2)))
		draw.BiLinear.Scale(d, d.Bounds(), img, b, draw.Src, nil)
		dst = d
	default:
		logrus.Warnf("png resizer: unsupported pixel layout %T, using generic resizer", img)
		return ScaledownStatic(data, width, "png")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
