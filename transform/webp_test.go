package transform

import (
	"bytes"
	"image"
	"testing"

	"github.com/chai2010/webp"
	webpanimation "github.com/sizeofint/webpanimation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tidwebp "github.com/tidbyt/go-libwebp/webp"
	xwebp "golang.org/x/image/webp"
)

func webpBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), &webp.Options{Quality: 75}))
	return buf.Bytes()
}

func animatedWebpBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	anim := webpanimation.NewWebpAnimation(w, h, 0)
	defer anim.ReleaseMemory()
	cfg := webpanimation.NewWebpConfig()

	require.NoError(t, anim.AddFrame(image.NewRGBA(image.Rect(0, 0, w, h)), 0, cfg))
	require.NoError(t, anim.AddFrame(image.NewRGBA(image.Rect(0, 0, w, h)), 100, cfg))
	require.NoError(t, anim.AddFrame(nil, 200, cfg))

	var buf bytes.Buffer
	require.NoError(t, anim.Encode(&buf))
	return buf.Bytes()
}

func webpSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestScaledownWebP(t *testing.T) {
	src := webpBytes(t, 400, 200)

	out, err := ScaledownWebP(src, 200)
	require.NoError(t, err)
	w, h := webpSize(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestScaledownWebPAlreadyAtWidth(t *testing.T) {
	src := webpBytes(t, 400, 200)

	out, err := ScaledownWebP(src, 400)
	require.NoError(t, err)
	assert.Equal(t, src, out, "input bytes must come back untouched")
}

func TestScaledownWebPUndecodableFallsBack(t *testing.T) {
	src := []byte("definitely not a webp")
	out, err := ScaledownWebP(src, 400)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestScaledownAnimatedWebP(t *testing.T) {
	src := animatedWebpBytes(t, 400, 200)
	require.True(t, IsAnimatedWebP(src))

	out, err := ScaledownWebP(src, 200)
	require.NoError(t, err)
	assert.True(t, IsAnimatedWebP(out), "resizing must keep the animation")

	dec, err := tidwebp.NewAnimationDecoder(out)
	require.NoError(t, err)
	defer dec.Close()
	a, err := dec.Decode()
	require.NoError(t, err)
	require.Len(t, a.Image, 2, "both frames must survive")
	assert.Equal(t, 200, a.Image[0].Bounds().Dx())
	assert.Equal(t, 100, a.Image[0].Bounds().Dy())
}

func TestScaledownAnimatedWebPSmallerThanTarget(t *testing.T) {
	// both dimensions already fit inside the target, so no re-encode
	// may happen and the bytes come back verbatim
	src := animatedWebpBytes(t, 100, 80)
	require.True(t, IsAnimatedWebP(src))

	out, err := ScaledownWebP(src, 400)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestScaledownAnimatedWebPAtWidth(t *testing.T) {
	src := animatedWebpBytes(t, 400, 200)

	out, err := ScaledownWebP(src, 400)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}
