// Package object implements the request lifecycle of a cached object:
// identity, local lookup, retry-aware download, validation, transform
// dispatch and persistence.
package object

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/store"
)

// Separator encodes sub-paths inside an object name on disk. It is
// reserved: a filename containing the literal separator corrupts path
// reconstruction.
const Separator = "-_-"

// Object is the central request-scoped entity. It is created fresh per
// request and never shared.
type Object struct {
	Name        string
	Origin      config.Origin
	Scale       uint32
	ContentType string
	Data        []byte
	Paths       store.Paths
	Retries     int
	Status      int // last upstream HTTP status, 0 until attempted
	Header      http.Header

	fromURL bool
}

// New makes an Object for a filename within an allow-listed origin.
func New(origin config.Origin, name string) *Object {
	return &Object{
		Name:        name,
		Origin:      origin,
		ContentType: "text/plain",
	}
}

// FromURL makes an Object for a free URL. The name is the SHA1 of the
// URL and the origin is a synthesized "misc" record whose endpoint is
// the URL itself.
func FromURL(rawurl string) *Object {
	sum := sha1.Sum([]byte(rawurl))
	return &Object{
		Name: hex.EncodeToString(sum[:]),
		Origin: config.Origin{
			Name:     "misc",
			Endpoint: rawurl,
			Cache:    config.Cache{MaxAge: config.DefaultMaxAge},
		},
		ContentType: "text/plain",
		fromURL:     true,
	}
}

// Rename folds a sub-path into the object name using the on-disk
// separator.
func (o *Object) Rename(path string) *Object {
	path = strings.ReplaceAll(path, "/", Separator)
	path = strings.ReplaceAll(path, " ", Separator)
	o.Name = o.Name + Separator + path
	return o
}

// URL reconstructs the canonical upstream URL.
func (o *Object) URL() string {
	if o.fromURL {
		return o.Origin.Endpoint
	}
	return o.Origin.Endpoint + "/" + strings.ReplaceAll(o.Name, Separator, "/")
}

// Hash is the stable content-addressed key for retry bookkeeping and
// CDN path derivation.
func (o *Object) Hash() string {
	sum := sha1.Sum([]byte(o.URL()))
	return hex.EncodeToString(sum[:])
}

// SetPaths derives the on-disk paths under root.
func (o *Object) SetPaths(root string) *Object {
	o.Paths = store.DerivePaths(root, o.Origin.Name, o.Name, o.Scale)
	return o
}

// TryOpen populates Data and ContentType from the local cache if the
// base or the requested rendition exists. A local hit synthesizes a
// 200 status.
func (o *Object) TryOpen() *Object {
	if data, ct, ok := store.TryOpen(o.Paths, o.Scale); ok {
		o.Data = data
		o.ContentType = ct
		o.Status = http.StatusOK
	}
	return o
}

// Download fetches the upstream URL and persists the payload as the
// base file. On a non-2xx response only Status is recorded; Data is
// left alone so the caller can decide what to serve. A transport
// failure leaves Status at zero.
func (o *Object) Download(ctx context.Context, client *http.Client, timeout time.Duration, maxBody int64) error {
	url := o.URL()
	start := time.Now()
	logrus.Infof("Downloading object from: %s", url)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.Warnf("%s did not return expected object: %s -- status %s", o.Origin.Name, o.Name, resp.Status)
		o.Status = resp.StatusCode
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return errors.Wrapf(err, "read body of %s", url)
	}
	if int64(len(data)) > maxBody {
		return errors.Errorf("body of %s exceeds %d bytes", url, maxBody)
	}
	logrus.Infof("it took %v to download object to memory", time.Since(start))

	o.Status = resp.StatusCode
	o.Header = resp.Header.Clone()
	o.Data = data
	o.ContentType = contentTypeOf(resp.Header)

	start = time.Now()
	if err := store.WriteFile(o.Paths.Base, data); err != nil {
		return err
	}
	logrus.Infof("it took %v to save object to disk", time.Since(start))
	return nil
}

func contentTypeOf(h http.Header) string {
	ct := h.Get("Content-Type")
	if ct == "" {
		logrus.Warn("The response does not contain a Content-Type header.")
		return store.OctetStream
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// Valid reports whether the last download produced servable content.
// Plain text and html payloads are gateway error pages, not media.
func (o *Object) Valid() bool {
	if o.Status < 200 || o.Status > 299 {
		return false
	}
	return o.ContentType != "text/plain" && o.ContentType != "text/html"
}

// ShouldRetry reports whether the retry budget still allows a fetch.
func (o *Object) ShouldRetry(max int) bool {
	return o.Retries < max
}

// Save persists a rendition when it differs from the base payload.
func (o *Object) Save(payload []byte) error {
	if o.Scale == 0 || bytes.Equal(payload, o.Data) {
		return nil
	}
	return store.WriteFile(o.Paths.Modified, payload)
}

// RemovePaths deletes the cached base and rendition.
func (o *Object) RemovePaths() error {
	return store.RemovePaths(o.Paths)
}

// CFPath is the storage-relative path a downstream CDN must evict for
// this object.
func (o *Object) CFPath() string {
	if o.Paths.Modified != "" {
		return "/mod/" + o.Origin.Name + "/" + strconv.FormatUint(uint64(o.Scale), 10) + "/" + o.Name
	}
	return "/base/" + o.Origin.Name + "/" + o.Name
}
