package httpd

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Middleware function signature required by chi.Router.Use()
type Middleware func(http.Handler) http.Handler

var onlyOnceWarningAllowOrigin sync.Once

// MiddlewareCORS instantiates middleware that handles basic CORS
// protections.
func MiddlewareCORS(allowOrigin string) Middleware {
	onlyOnceWarningAllowOrigin.Do(func() {
		if allowOrigin == "*" {
			logrus.Debug("Allow origin set to *")
		}
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowOrigin != "" {
				w.Header().Add("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Add("Access-Control-Allow-Headers", "authorization, Content-Type")
				w.Header().Add("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, POST")
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareAuthToken instantiates middleware that requires the
// authorization header to match the admin token.
func MiddlewareAuthToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != token {
				logrus.Infof("%s: Unauthorized admin request from %s", r.URL.Path, r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Status: http.StatusUnauthorized,
					Error:  "unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imgopt_requests_total",
	Help: "HTTP requests by status code.",
}, []string{"code"})

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MiddlewareMetrics instantiates middleware that counts requests by
// response status.
func MiddlewareMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			requestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
		})
	}
}
