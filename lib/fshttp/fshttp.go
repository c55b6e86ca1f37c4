// Package fshttp builds the http Transport and Client used for all
// upstream and KV traffic.
package fshttp

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config holds the options for building a Client.
type Config struct {
	UserAgent          string
	ConnectTimeout     time.Duration // dial and TLS handshake timeout
	Timeout            time.Duration // response header timeout
	InsecureSkipVerify bool
	NoGzip             bool
	TPSLimit           float64 // transactions per second, 0 = unlimited
	TPSLimitBurst      int
}

// NewTransport returns an http.RoundTripper with the correct timeouts.
func NewTransport(ci Config) http.RoundTripper {
	t := new(http.Transport)
	if def, ok := http.DefaultTransport.(*http.Transport); ok {
		*t = *def.Clone()
	}
	t.Proxy = http.ProxyFromEnvironment
	t.MaxIdleConnsPerHost = 32
	t.MaxIdleConns = 64
	t.TLSHandshakeTimeout = ci.ConnectTimeout
	t.ResponseHeaderTimeout = ci.Timeout
	t.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: ci.InsecureSkipVerify,
	}
	t.DisableCompression = ci.NoGzip
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return NewDialer(ci).DialContext(ctx, network, addr)
	}
	t.IdleConnTimeout = 60 * time.Second
	return newTransport(ci, t)
}

// NewClient returns an http.Client with the correct timeouts
func NewClient(ci Config) *http.Client {
	return &http.Client{
		Transport: NewTransport(ci),
	}
}

// Transport is our http Transport which wraps an http.Transport
// * Sets the User Agent
// * Rate limits transactions if configured
type Transport struct {
	*http.Transport
	userAgent string
	tpsBucket *rate.Limiter
}

func newTransport(ci Config, transport *http.Transport) *Transport {
	t := &Transport{
		Transport: transport,
		userAgent: ci.UserAgent,
	}
	if ci.TPSLimit > 0 {
		burst := ci.TPSLimitBurst
		if burst < 1 {
			burst = 1
		}
		t.tpsBucket = rate.NewLimiter(rate.Limit(ci.TPSLimit), burst)
		logrus.Infof("Starting HTTP transaction limiter: max %g transactions/s with burst %d", ci.TPSLimit, burst)
	}
	return t
}

// RoundTrip implements the RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	// Get transactions per second token first if limiting
	if t.tpsBucket != nil {
		tbErr := t.tpsBucket.Wait(req.Context())
		if tbErr != nil && tbErr != context.Canceled {
			logrus.Errorf("HTTP token bucket error: %v", tbErr)
		}
	}
	// Force user agent
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.Transport.RoundTrip(req)
}

// NewDialer creates a net.Dialer structure with Timeout and Keepalive set.
func NewDialer(ci Config) *net.Dialer {
	return &net.Dialer{
		Timeout:   ci.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
}
