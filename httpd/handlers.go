package httpd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/object"
	"github.com/holaplex/imgopt/twitter"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("200 OK"))
}

// params are the query parameters shared by the serving endpoints.
type params struct {
	width  *uint32
	raw    string // raw width value for error reporting
	force  bool
	engine uint32
	path   string
	url    string
}

func parseParams(r *http.Request) (params, error) {
	q := r.URL.Query()
	p := params{
		path: q.Get("path"),
		url:  q.Get("url"),
	}
	if v := q.Get("width"); v != "" {
		p.raw = v
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, err
		}
		width := uint32(n)
		p.width = &width
	}
	if v := q.Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return p, err
		}
		p.force = force
	}
	if v := q.Get("engine"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, err
		}
		p.engine = uint32(n)
	}
	return p, nil
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, obj *object.Object, req object.Request) {
	ct, payload, err := s.opt.Pipeline.Serve(r.Context(), obj, req)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	maxAge := obj.Origin.Cache.MaxAge
	if maxAge == 0 {
		maxAge = config.DefaultMaxAge
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(payload)
}

// handleFetchObject is the primary serve endpoint:
// GET /{origin}/{filename}?width=&force=&engine=&path=
func (s *Server) handleFetchObject(w http.ResponseWriter, r *http.Request) {
	originName := chi.URLParam(r, "origin")
	filename := chi.URLParam(r, "filename")

	p, err := parseParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	origin, ok := s.opt.App.ValidateOrigin(originName)
	if !ok {
		invalidValue(w, "origin", originName)
		return
	}
	scale, ok := s.opt.App.ValidateScale(p.width)
	if !ok {
		invalidValue(w, "width", p.raw)
		return
	}

	obj := object.New(origin, filename)
	obj.Scale = scale
	if p.path != "" {
		obj.Rename(p.path)
	}
	s.serveObject(w, r, obj, object.Request{Force: p.force, Engine: p.engine})
}

// handleByURL serves arbitrary URLs: GET /?url=&width=&force=&engine=
// Requires allow_any_origin.
func (s *Server) handleByURL(w http.ResponseWriter, r *http.Request) {
	if !s.opt.App.AllowAnyOrigin {
		badRequest(w, "endpoint disabled. Add allow_any_origin=true to your config.toml to enable")
		return
	}
	p, err := parseParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if p.url == "" {
		badRequest(w, "Please provide an url using the '?url=' query parameter")
		return
	}
	u, err := url.Parse(p.url)
	if err != nil || !u.IsAbs() {
		badRequest(w, fmt.Sprintf("Unable to parse url: %s", p.url))
		return
	}
	if denied, ok := s.opt.App.ValidateURL(p.url); ok {
		badRequest(w, fmt.Sprintf("url %s found in deny list. skipping", denied))
		return
	}
	scale, ok := s.opt.App.ValidateScale(p.width)
	if !ok {
		invalidValue(w, "width", p.raw)
		return
	}

	obj := object.FromURL(p.url)
	obj.Scale = scale
	s.serveObject(w, r, obj, object.Request{
		Force:     p.force,
		Engine:    p.engine,
		CacheBust: len(u.Query()) != 0,
	})
}

// handleForward is a transparent proxy to the origin. The response
// streams through with all headers except Connection.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	originName := chi.URLParam(r, "origin")
	filename := chi.URLParam(r, "filename")

	origin, ok := s.opt.App.ValidateOrigin(originName)
	if !ok {
		invalidValue(w, "origin", originName)
		return
	}
	target := origin.Endpoint + "/" + filename

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: 500, Error: err.Error()})
		return
	}
	for name, values := range r.Header {
		if name == "Host" || name == "Connection" {
			continue
		}
		req.Header[name] = values
	}
	resp, err := s.opt.ProxyClient.Do(req)
	if err != nil {
		logrus.Errorf("proxy error for %s: %v", target, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: 500, Error: err.Error()})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for name, values := range resp.Header {
		// Remove `Connection` as per
		// https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Connection#Directives
		if name == "Connection" {
			continue
		}
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logrus.Errorf("error streaming proxy response for %s: %v", target, err)
	}
}

// handleTwitter returns the projected profile for a handle.
func (s *Server) handleTwitter(w http.ResponseWriter, r *http.Request) {
	if s.opt.Twitter == nil {
		badRequest(w, "env var TWITTER_BEARER_TOKEN not found. Twitter endpoint will not work")
		return
	}
	handle := chi.URLParam(r, "handle")
	profile, err := s.opt.Twitter.Lookup(r.Context(), handle)
	if err != nil {
		var apiErr *twitter.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, http.StatusBadRequest, apiErr)
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: 500, Error: err.Error()})
		return
	}
	maxAge := uint32(config.DefaultMaxAge)
	if s.opt.App.Twitter != nil && s.opt.App.Twitter.Cache.MaxAge != 0 {
		maxAge = s.opt.App.Twitter.Cache.MaxAge
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	writeJSON(w, http.StatusOK, profile)
}
