package httpd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/object"
)

// InvalidationRequest is the admin request body.
type InvalidationRequest struct {
	URLs []string `json:"urls"`
}

// handleCreateInvalidation rebuilds the objects named by the submitted
// public URLs, evicts them from local storage and the KV retry store,
// and submits one CloudFront invalidation batch for their CDN paths.
func (s *Server) handleCreateInvalidation(w http.ResponseWriter, r *http.Request) {
	if s.opt.Invalidator == nil {
		badRequest(w, "Distribution ID not found in config. Please add cloudfront.distribution_id = <id> to your config file.")
		return
	}

	// The body is optional on GET, so a decode failure degrades to the
	// missing-urls error below.
	var req InvalidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.Debugf("invalidation request without usable body: %v", err)
	}
	if len(req.URLs) == 0 {
		badRequest(w, `Missing urls vec to invalidate. Ex: { urls: ["https://assets.holaplex.tools/ipfs/<cid>?width=400&path=test.png"] }`)
		return
	}

	var objects []*object.Object
	for _, raw := range req.URLs {
		u, err := url.Parse(raw)
		if err == nil && !u.IsAbs() {
			err = errors.New("url is not absolute")
		}
		if err != nil {
			badRequest(w, fmt.Sprintf("URL Parse error: %v -- URL: %s", err, raw))
			return
		}
		q := u.Query()
		var scale uint32
		if v := q.Get("width"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				badRequest(w, fmt.Sprintf("URL Parse error: %v -- URL: %s", err, raw))
				return
			}
			scale = uint32(n)
		}

		var obj *object.Object
		if target := q.Get("url"); target != "" {
			obj = object.FromURL(target)
		} else {
			segments := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
			originName := segments[0]
			origin, ok := s.opt.App.ValidateOrigin(originName)
			if !ok {
				invalidValue(w, "origin", originName)
				return
			}
			filename := ""
			if len(segments) > 1 {
				filename = segments[1]
			}
			obj = object.New(origin, filename)
			if path := q.Get("path"); path != "" {
				obj.Rename(path)
			}
		}
		obj.Scale = scale
		obj.SetPaths(s.opt.App.StoragePath)
		objects = append(objects, obj)
	}

	var paths []string
	for _, obj := range objects {
		paths = append(paths, obj.CFPath())
		if err := s.opt.KV.ResetRetries(r.Context(), obj.Hash(), obj.URL()); err != nil {
			logrus.Errorf("error resetting retry count for %s: %v", obj.URL(), err)
		}
		if err := obj.RemovePaths(); err != nil {
			logrus.Errorf("error removing cached paths for %s: %v", obj.URL(), err)
		}
	}
	if len(paths) == 0 {
		badRequest(w, "No valid paths to invalidate")
		return
	}

	inv, err := s.opt.Invalidator.Invalidate(r.Context(), paths)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: 500, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
