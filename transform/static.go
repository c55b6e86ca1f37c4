package transform

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	xwebp "golang.org/x/image/webp"
)

func resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func decodeFormat(r io.Reader, format string) (image.Image, error) {
	switch format {
	case "jpeg":
		return jpeg.Decode(r)
	case "png":
		return png.Decode(r)
	case "gif":
		return gif.Decode(r)
	case "webp":
		return xwebp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

func encodeFormat(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 75})
	case "gif":
		return gif.Encode(w, img, nil)
	case "webp":
		return webp.Encode(w, img, &webp.Options{Quality: 75})
	}
	return png.Encode(w, img)
}

// ScaledownStatic resizes a still image with the generic decoder,
// re-encoding it in the given format. If the image cannot be decoded
// the input bytes are returned untouched so the caller serves the
// base. If the image is already at the requested width no re-encode
// happens and the input bytes come back byte for byte.
func ScaledownStatic(data []byte, width uint32, format string) ([]byte, error) {
	img, err := decodeFormat(bytes.NewReader(data), format)
	if err != nil {
		logrus.Errorf("Error decoding image: %v", err)
		return data, nil
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
	var buf bytes.Buffer
	if err := encodeFormat(&buf, resize(img, int(w2), int(h2)), format); err != nil {
		return nil, errors.Wrapf(err, "encode %s", format)
	}
	return buf.Bytes(), nil
}
