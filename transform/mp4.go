package transform

import (
	"os"
	"os/exec"
	"strconv"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/store"
)

// MP4ToGIF converts a video to an animated gif via the external
// mp4-to-gif.sh script, sized by the first video track. On any failure
// the original bytes are served.
func MP4ToGIF(inputPath, outputPath string, width uint32) ([]byte, error) {
	w, h := mp4Dimensions(inputPath, width)
	w2, _ := Fit(w, h, width)

	start := time.Now()
	cmd := exec.Command("./mp4-to-gif.sh", inputPath,
		strconv.FormatUint(uint64(w2), 10), outputPath)
	if err := cmd.Run(); err != nil {
		logrus.Errorf("Unable to convert mp4 to gif: %v. Falling back to original file", err)
		return store.ReadFile(inputPath)
	}
	logrus.Infof("Converted mp4 to gif and resized to %d px in %v", width, time.Since(start))
	return store.ReadFile(outputPath)
}

// mp4Dimensions probes the container for the first video track's
// dimensions, falling back to a square target.
func mp4Dimensions(path string, width uint32) (uint32, uint32) {
	f, err := os.Open(path)
	if err != nil {
		return width, width
	}
	defer func() { _ = f.Close() }()
	info, err := mp4.Probe(f)
	if err != nil {
		return width, width
	}
	for _, track := range info.Tracks {
		if track.AVC != nil {
			return uint32(track.AVC.Width), uint32(track.AVC.Height)
		}
	}
	return width, width
}
