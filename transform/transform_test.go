package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holaplex/imgopt/store"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestScaledownStatic(t *testing.T) {
	src := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1600, 800)))

	out, err := ScaledownStatic(src, 400, "png")
	require.NoError(t, err)
	w, h := pngSize(t, out)
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
}

func TestScaledownStaticAlreadyAtWidth(t *testing.T) {
	src := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 400, 700)))

	out, err := ScaledownStatic(src, 400, "png")
	require.NoError(t, err)
	assert.Equal(t, src, out, "input bytes must come back untouched")
}

func TestScaledownStaticUndecodableFallsBack(t *testing.T) {
	src := []byte("definitely not an image")
	out, err := ScaledownStatic(src, 400, "png")
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestScaledownPNG(t *testing.T) {
	t.Run("rgba", func(t *testing.T) {
		src := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1200, 1200)))
		out, err := ScaledownPNG(src, 400)
		require.NoError(t, err)
		w, h := pngSize(t, out)
		assert.Equal(t, 400, w)
		assert.Equal(t, 400, h)
	})

	t.Run("grayscale stays grayscale", func(t *testing.T) {
		src := encodePNG(t, image.NewGray(image.Rect(0, 0, 800, 800)))
		out, err := ScaledownPNG(src, 200)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.IsType(t, &image.Gray{}, img)
	})

	t.Run("paletted goes through the generic resizer", func(t *testing.T) {
		pal := image.NewPaletted(image.Rect(0, 0, 800, 400), color.Palette{color.Black, color.White})
		out, err := ScaledownPNG(encodePNG(t, pal), 200)
		require.NoError(t, err)
		w, h := pngSize(t, out)
		assert.Equal(t, 200, w)
		assert.Equal(t, 100, h)
	})

	t.Run("garbage is an error", func(t *testing.T) {
		_, err := ScaledownPNG([]byte("not a png"), 200)
		assert.Error(t, err)
	})
}

func TestIsAnimatedWebP(t *testing.T) {
	animated := make([]byte, 40)
	copy(animated[0:4], "RIFF")
	copy(animated[8:12], "WEBP")
	copy(animated[12:16], "VP8X")
	copy(animated[30:34], "ANIM")
	assert.True(t, IsAnimatedWebP(animated))

	still := make([]byte, 40)
	copy(still[0:4], "RIFF")
	copy(still[8:12], "WEBP")
	copy(still[12:16], "VP8 ")
	assert.False(t, IsAnimatedWebP(still))

	assert.False(t, IsAnimatedWebP([]byte("RIFF")), "short input")
}

func TestScaledownGIFAlreadyAtWidth(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.gif")
	output := filepath.Join(dir, "out.gif")

	img := image.NewPaletted(image.Rect(0, 0, 400, 300), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))

	out, err := ScaledownGIF(input, output, 400)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
	assert.NoFileExists(t, output, "no resize should have happened")
}

func TestSVGToPNG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 32"><rect width="64" height="32" fill="red"/></svg>`)
	out, err := SVGToPNG(svg)
	require.NoError(t, err)
	w, h := pngSize(t, out)
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)
}

func TestProcessPassthrough(t *testing.T) {
	data := []byte(`{"some": "json"}`)
	ct, out, err := Process("application/json", data, store.Paths{}, 400, 0)
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
	assert.Equal(t, data, out)

	data = []byte("plain")
	ct, out, err = Process("text/whatever", data, store.Paths{}, 400, 0)
	require.NoError(t, err)
	assert.Equal(t, "text/whatever", ct)
	assert.Equal(t, data, out)
}

func TestProcessJPEG(t *testing.T) {
	src := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1600, 800)))
	// jpeg dispatch with a png payload: the decoder fails and the input
	// is served untouched
	ct, out, err := Process("image/jpeg", src, store.Paths{}, 400, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, src, out)
}
