package transform

import (
	"fmt"
	"image/gif"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/store"
)

// decoders refuse anything larger than this on either axis
const maxGIFDimension = 8000

// ScaledownGIF resizes a gif on disk with gifsicle, reading the result
// back. If gifsicle fails the original bytes are served.
func ScaledownGIF(inputPath, outputPath string, width uint32) ([]byte, error) {
	w, h := gifDimensions(inputPath, width)
	if w == width {
		return store.ReadFile(inputPath)
	}
	w2, h2 := Fit(w, h, width)

	start := time.Now()
	cmd := exec.Command("gifsicle", inputPath, "-o", outputPath, "--resize", fmt.Sprintf("%dx%d", w2, h2))
	if err := cmd.Run(); err != nil {
		logrus.Errorf("Unable to convert gif with gifsicle: %v. Falling back to original image", err)
		return store.ReadFile(inputPath)
	}
	logrus.Infof("Resized gif to %d px in %v", width, time.Since(start))
	return store.ReadFile(outputPath)
}

// gifDimensions reads the logical screen size of the first frame,
// falling back to a square target when the header can't be read or is
// implausibly large.
func gifDimensions(path string, width uint32) (uint32, uint32) {
	f, err := os.Open(path)
	if err != nil {
		return width, width
	}
	defer func() { _ = f.Close() }()
	cfg, err := gif.DecodeConfig(f)
	if err != nil || cfg.Width > maxGIFDimension || cfg.Height > maxGIFDimension {
		return width, width
	}
	return uint32(cfg.Width), uint32(cfg.Height)
}
