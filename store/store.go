// Package store is the filesystem content store. It derives the
// deterministic on-disk locations for base and rendition files,
// creates their directories and reads, writes and removes them.
//
// Layout:
//
//	<root>/base/<origin>/<name>
//	<root>/mod/<origin>/<scale>/<name>
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OctetStream is the content type used when detection fails.
const OctetStream = "application/octet-stream"

// Paths locates the base and rendition files for one object. Modified
// is empty when no rendition was requested (scale 0).
type Paths struct {
	Base     string
	Modified string
}

// DerivePaths is a pure function from (root, origin, name, scale) to
// the on-disk paths.
func DerivePaths(root, origin, name string, scale uint32) Paths {
	p := Paths{
		Base: fmt.Sprintf("%s/base/%s/%s", root, origin, name),
	}
	if scale != 0 {
		p.Modified = fmt.Sprintf("%s/mod/%s/%d/%s", root, origin, scale, name)
	}
	return p
}

// EnsureDirs creates the parent directories for both paths. It is
// idempotent.
func EnsureDirs(p Paths) error {
	if err := os.MkdirAll(filepath.Dir(p.Base), 0o755); err != nil {
		return errors.Wrap(err, "create base dir")
	}
	if p.Modified != "" {
		if err := os.MkdirAll(filepath.Dir(p.Modified), 0o755); err != nil {
			return errors.Wrap(err, "create mod dir")
		}
	}
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// TryOpen reads the cached object if present. The base is preferred
// unless a rendition for the requested scale already exists:
//
//	base exists, mod doesn't        -> base
//	mod exists and scale != 0       -> mod
//	otherwise                       -> nothing
//
// The returned content type is guessed from the file that was read.
func TryOpen(p Paths, scale uint32) (data []byte, contentType string, ok bool) {
	switch {
	case Exists(p.Base) && !Exists(p.Modified):
		data, err := ReadFile(p.Base)
		if err != nil {
			return nil, "", false
		}
		return data, GuessContentType(p.Base), true
	case Exists(p.Modified) && scale != 0:
		data, err := ReadFile(p.Modified)
		if err != nil {
			return nil, "", false
		}
		return data, GuessContentType(p.Modified), true
	}
	return nil, "", false
}

// WriteFile writes data to path, overwriting any previous content.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadFile reads the whole file at path.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// RemovePaths deletes the base and rendition files. Missing files are
// not errors.
func RemovePaths(p Paths) error {
	for _, path := range []string{p.Base, p.Modified} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path)
		}
	}
	return nil
}

// GuessContentType detects the media type by inspecting the file
// contents. Detection failure degrades to application/octet-stream.
func GuessContentType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		logrus.Warnf("unable to detect content type of %s: %v", path, err)
		return OctetStream
	}
	// strip parameters such as "; charset=utf-8"
	ct := mime.String()
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
