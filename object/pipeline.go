package object

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/kv"
	"github.com/holaplex/imgopt/store"
	"github.com/holaplex/imgopt/transform"
)

// ErrMaxRetries is returned when the persistent retry counter for an
// object has reached the configured budget; no upstream GET happens.
var ErrMaxRetries = errors.New("Max retries reached")

// ErrUnreachable is returned when no HTTP status was captured from the
// upstream at all.
var ErrUnreachable = errors.New("error connecting to origin")

// InvalidContentError flags a download that produced a non-2xx status
// or an error page instead of media. The cached base has been removed
// and the retry counter bumped by the time the caller sees it.
type InvalidContentError struct {
	Origin string
	Name   string
}

func (e *InvalidContentError) Error() string {
	return "Object downloaded from " + e.Origin + "/" + e.Name + " is not valid. Trying to proxy to origin"
}

// Request carries the per-request knobs of the pipeline.
type Request struct {
	Force     bool   // bypass the local cache
	CacheBust bool   // treat as Force (URL mode with query parameters)
	Engine    uint32 // alternate transform dispatch
}

// Pipeline runs objects through local lookup, retry-gated download,
// validation, transform and persistence. Safe for concurrent use; the
// transform phase is bounded by the configured worker count and
// coalesced per rendition path.
type Pipeline struct {
	cfg    *config.AppConfig
	client *http.Client
	kv     *kv.Client
	sf     singleflight.Group
	sem    *semaphore.Weighted
}

// NewPipeline makes a Pipeline from immutable process-wide state.
func NewPipeline(cfg *config.AppConfig, client *http.Client, kvc *kv.Client) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Pipeline{
		cfg:    cfg,
		client: client,
		kv:     kvc,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

type rendition struct {
	contentType string
	payload     []byte
}

// Serve runs one object through the pipeline and returns the response
// content type and payload.
func (p *Pipeline) Serve(ctx context.Context, obj *Object, req Request) (string, []byte, error) {
	obj.SetPaths(p.cfg.StoragePath).TryOpen()
	if err := store.EnsureDirs(obj.Paths); err != nil {
		return "", nil, err
	}

	if req.Force || req.CacheBust || len(obj.Data) == 0 {
		obj.Retries = p.kv.GetRetries(ctx, obj.Hash(), obj.URL(), obj.Retries)
		if !obj.ShouldRetry(p.cfg.MaxRetries) {
			return "", nil, ErrMaxRetries
		}
		upstreamFetches.Inc()
		if err := p.download(ctx, obj); err != nil {
			logrus.Errorf("download failed for %s/%s: %v", obj.Origin.Name, obj.Name, err)
		}
	} else {
		cacheHits.Inc()
	}

	if obj.Status == 0 {
		logrus.Warnf("Error connecting to %s", obj.Origin.Name)
		return "", nil, ErrUnreachable
	}
	if !obj.Valid() {
		if err := obj.RemovePaths(); err != nil {
			logrus.Errorf("error removing cached paths for %s/%s: %v", obj.Origin.Name, obj.Name, err)
		}
		if n, err := p.kv.UpdateRetries(ctx, obj.Hash(), obj.URL(), obj.Retries); err != nil {
			logrus.Errorf("error updating retry count for %s/%s: %v", obj.Origin.Name, obj.Name, err)
		} else {
			obj.Retries = n
		}
		return "", nil, &InvalidContentError{Origin: obj.Origin.Name, Name: obj.Name}
	}

	if obj.Scale == 0 || store.Exists(obj.Paths.Modified) {
		return obj.ContentType, obj.Data, nil
	}

	v, err, _ := p.sf.Do(obj.Paths.Modified, func() (interface{}, error) {
		return p.render(ctx, obj, req.Engine)
	})
	if err != nil {
		return "", nil, err
	}
	r := v.(*rendition)
	return r.contentType, r.payload, nil
}

// render produces the rendition for an object, falling back to the
// base payload when the transform fails. Error messages mentioning a
// short buffer or an unexpected EOF point at a truncated base file, so
// one re-download is attempted before giving up on the transform.
func (p *Pipeline) render(ctx context.Context, obj *Object, engine uint32) (*rendition, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	ct, payload, err := transform.Process(obj.ContentType, obj.Data, obj.Paths, obj.Scale, engine)
	if err != nil {
		transformFailures.Inc()
		logrus.Errorf("Error reading/decoding file %s/%s | %v", obj.Origin.Name, obj.Name, err)
		msg := err.Error()
		if strings.Contains(msg, "buffer") || strings.Contains(msg, "unexpected EOF") {
			logrus.Warnf("Re-downloading base object: %s/%s", obj.Origin.Name, obj.Name)
			if derr := p.download(ctx, obj); derr != nil {
				logrus.Errorf("re-download failed for %s/%s: %v", obj.Origin.Name, obj.Name, derr)
			}
		}
		ct, payload = obj.ContentType, obj.Data
	}
	if err := obj.Save(payload); err != nil {
		logrus.Errorf("error saving rendition for %s/%s: %v", obj.Origin.Name, obj.Name, err)
	}
	return &rendition{contentType: ct, payload: payload}, nil
}

func (p *Pipeline) download(ctx context.Context, obj *Object) error {
	timeout := time.Duration(p.cfg.ReqTimeout) * time.Second
	return obj.Download(ctx, p.client, timeout, p.cfg.MaxBodySizeBytes)
}
