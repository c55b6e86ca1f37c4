package transform

import (
	"bytes"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	webpanimation "github.com/sizeofint/webpanimation"
	tidwebp "github.com/tidbyt/go-libwebp/webp"
	xwebp "golang.org/x/image/webp"
)

// IsAnimatedWebP inspects the RIFF container for an extended-format
// header carrying an ANIM chunk.
func IsAnimatedWebP(data []byte) bool {
	if len(data) < 34 {
		return false
	}
	return string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP" &&
		string(data[12:16]) == "VP8X" &&
		string(data[30:34]) == "ANIM"
}

// ScaledownWebP resizes a webp, preserving animation when the input is
// animated.
func ScaledownWebP(data []byte, width uint32) ([]byte, error) {
	if IsAnimatedWebP(data) {
		return scaledownAnimatedWebP(data, width)
	}
	img, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		logrus.Errorf("Error decoding webp: %v", err)
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
	if err := webp.Encode(&buf, resize(img, int(w2), int(h2)), &webp.Options{Quality: 75}); err != nil {
		return nil, errors.Wrap(err, "encode webp")
	}
	return buf.Bytes(), nil
}

func scaledownAnimatedWebP(data []byte, width uint32) ([]byte, error) {
	dec, err := tidwebp.NewAnimationDecoder(data)
	if err != nil {
		return nil, errors.Wrap(err, "open webp animation")
	}
	defer dec.Close()
	src, err := dec.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "decode webp animation")
	}
	if len(src.Image) == 0 {
		return nil, errors.New("webp animation has no frames")
	}
	b := src.Image[0].Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy())
	if w == width {
		return data, nil
	}
	w2, h2 := Fit(w, h, width)
	if w2 == w && h2 == h {
		return data, nil
	}

	anim := webpanimation.NewWebpAnimation(int(w2), int(h2), 0)
	anim.WebPAnimEncoderOptions.SetKmin(3)
	anim.WebPAnimEncoderOptions.SetKmax(5)
	defer anim.ReleaseMemory()

	cfg := webpanimation.NewWebpConfig()
	cfg.SetLossless(0)
	cfg.SetQuality(75)
	cfg.SetSegments(2)
	cfg.SetAlphaCompression(1)

	timestamp := 0
	for i, frame := range src.Image {
		if err := anim.AddFrame(resize(frame, int(w2), int(h2)), timestamp, cfg); err != nil {
			return nil, errors.Wrapf(err, "add frame %d", i)
		}
		timestamp = src.Timestamp[i]
	}
	// trailing frame marks the end of the animation timeline
	last := src.Timestamp[len(src.Timestamp)-1]
	if err := anim.AddFrame(nil, last*len(src.Image), cfg); err != nil {
		return nil, errors.Wrap(err, "finalize animation")
	}

	var buf bytes.Buffer
	if err := anim.Encode(&buf); err != nil {
		return nil, errors.Wrap(err, "encode webp animation")
	}
	return buf.Bytes(), nil
}
