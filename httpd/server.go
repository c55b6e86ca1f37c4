// Package httpd binds the pipeline, the KV client and the CDN
// invalidator to their HTTP endpoints.
package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/cdn"
	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/kv"
	"github.com/holaplex/imgopt/object"
	"github.com/holaplex/imgopt/twitter"
)

// Config contains options for the http server itself.
type Config struct {
	ListenAddr         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	MaxHeaderBytes     int
	AllowOrigin        string // Access-Control-Allow-Origin header, "" disables CORS
}

// DefaultConfig is the default values used for Config.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         "0.0.0.0:3030",
		ServerReadTimeout:  1 * time.Hour,
		ServerWriteTimeout: 1 * time.Hour,
		MaxHeaderBytes:     4096,
		AllowOrigin:        "*",
	}
}

// Options carries the process-wide collaborators of the endpoints. All
// of them are immutable after startup.
type Options struct {
	App         *config.AppConfig
	Pipeline    *object.Pipeline
	KV          *kv.Client
	Invalidator *cdn.Invalidator // nil when cloudfront isn't configured
	Twitter     *twitter.Client  // nil when no bearer token is set
	AdminToken  string
	ProxyClient *http.Client // 30s timeout, no decompression
}

// Server contains info about the running http server.
type Server struct {
	cfg        Config
	opt        Options
	mux        chi.Router
	httpServer *http.Server
}

// NewServer instantiates the server and builds the route table.
func NewServer(opt Options, cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		opt: opt,
		mux: chi.NewRouter(),
	}

	s.mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
	s.mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	s.mux.Use(MiddlewareCORS(cfg.AllowOrigin))
	s.mux.Use(MiddlewareMetrics())

	health := opt.App.HealthEndpoint
	if health == "" {
		health = "/health"
	}
	s.mux.Get(health, s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.Get("/twitter/{handle}", s.handleTwitter)
	s.mux.Get("/proxy/{origin}/{filename}", s.handleForward)
	s.mux.With(MiddlewareAuthToken(opt.AdminToken)).Get("/create_invalidation", s.handleCreateInvalidation)
	s.mux.With(MiddlewareAuthToken(opt.AdminToken)).Post("/create_invalidation", s.handleCreateInvalidation)
	s.mux.Get("/", s.handleByURL)
	s.mux.Get("/{origin}/{filename}", s.handleFetchObject)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.mux,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second, // time to send the headers
		IdleTimeout:       60 * time.Second, // time to keep idle connections open
	}
	return s
}

// Router returns the server base router.
func (s *Server) Router() chi.Router {
	return s.mux
}

// Serve blocks serving requests until Shutdown is called.
func (s *Server) Serve() error {
	logrus.Infof("starting HTTP server at http://%s", s.cfg.ListenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Time to wait to Shutdown an HTTP server
const gracefulShutdownTime = 10 * time.Second

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTime)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error shutting down server: %s", err)
		return err
	}
	return nil
}
