// Package transform is the media transform engine: format-specific
// resize and convert primitives over bytes and on-disk paths.
package transform

import (
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/store"
)

// Process dispatches on the object's content type and returns the
// rendition content type and bytes. Unknown formats pass through
// unchanged. engine selects an alternate code path where one exists
// (currently only PNG: engine 1 uses the generic resizer).
func Process(contentType string, data []byte, paths store.Paths, scale, engine uint32) (string, []byte, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		out, err := ScaledownStatic(data, scale, "jpeg")
		return "image/jpeg", out, err
	case "image/png":
		if engine == 1 {
			out, err := ScaledownStatic(data, scale, "png")
			return "image/png", out, err
		}
		out, err := ScaledownPNG(data, scale)
		return "image/png", out, err
	case "image/webp":
		out, err := ScaledownWebP(data, scale)
		return "image/webp", out, err
	case "image/gif":
		out, err := ScaledownGIF(paths.Base, paths.Modified, scale)
		return "image/gif", out, err
	case "image/svg+xml":
		rasterized, err := SVGToPNG(data)
		if err != nil {
			return "image/png", nil, err
		}
		out, err := ScaledownStatic(rasterized, scale, "png")
		return "image/png", out, err
	case "video/mp4":
		out, err := MP4ToGIF(paths.Base, paths.Modified, scale)
		return "image/gif", out, err
	case store.OctetStream:
		guessed := store.GuessContentType(paths.Base)
		logrus.Warnf("Got unsupported format: %s - Trying to guess format from base: %s", contentType, guessed)
		return guessed, data, nil
	case "application/json":
		return contentType, data, nil
	default:
		logrus.Warnf("Got unsupported format: %s - Skipping processing", contentType)
		return contentType, data, nil
	}
}
