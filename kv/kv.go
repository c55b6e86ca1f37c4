// Package kv talks to the external key-value service that persists
// per-object retry counts across restarts.
//
// The service speaks JSON over HTTP:
//
//	GET  /api/<hash> -> 200 RetryCount | 404 absent | 500 error
//	POST /api/<hash> -> 200 with the stored RetryCount echoed back
package kv

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/lib/rest"
)

// RetryCount is the record owned by the KV service. A missing record
// is equivalent to Retries = 0.
type RetryCount struct {
	URL     string `json:"url"`
	Retries int    `json:"retries"`
}

// Client is a retry-counter client. Safe for concurrent use.
type Client struct {
	srv *rest.Client
}

// New makes a Client against the KV service at uri.
func New(httpClient *http.Client, uri string) *Client {
	return &Client{
		srv: rest.NewClient(httpClient).SetRoot(uri),
	}
}

// GetRetries fetches the retry count for hash. An absent record is
// seeded to 1 via UpdateRetries because the lookup only ever happens
// when a download is about to be attempted. KV errors fail open: the
// current count is returned unchanged.
func (c *Client) GetRetries(ctx context.Context, hash, url string, current int) int {
	var rec RetryCount
	opts := rest.Opts{
		Method:       "GET",
		Path:         "/api/" + hash,
		IgnoreStatus: true,
	}
	resp, err := c.srv.Call(ctx, &opts)
	if err != nil {
		logrus.Errorf("kvstore unreachable: %v", err)
		return current
	}
	switch resp.StatusCode {
	case http.StatusOK:
		if err := rest.DecodeJSON(resp, &rec); err != nil {
			logrus.Errorf("error decoding kvstore response: %v", err)
			return current
		}
		return rec.Retries
	case http.StatusNotFound:
		_ = resp.Body.Close()
		n, err := c.UpdateRetries(ctx, hash, url, 0)
		if err != nil {
			logrus.Errorf("error seeding retry count for %s: %v", hash, err)
			return current
		}
		return n
	case http.StatusInternalServerError:
		_ = resp.Body.Close()
		logrus.Errorf("kvstore returned 500 for %s", hash)
		return current
	default:
		_ = resp.Body.Close()
		logrus.Warnf("unexpected kvstore status %d for %s", resp.StatusCode, hash)
		return current
	}
}

// UpdateRetries increments the counter and persists it, returning the
// value the KV service echoes back after the write.
func (c *Client) UpdateRetries(ctx context.Context, hash, url string, current int) (int, error) {
	var stored RetryCount
	opts := rest.Opts{
		Method: "POST",
		Path:   "/api/" + hash,
	}
	rec := RetryCount{URL: url, Retries: current + 1}
	if _, err := c.srv.CallJSON(ctx, &opts, &rec, &stored); err != nil {
		return current, errors.Wrap(err, "error updating retry count")
	}
	return stored.Retries, nil
}

// ResetRetries sets the counter back to zero.
func (c *Client) ResetRetries(ctx context.Context, hash, url string) error {
	opts := rest.Opts{
		Method:     "POST",
		Path:       "/api/" + hash,
		NoResponse: true,
	}
	rec := RetryCount{URL: url, Retries: 0}
	if _, err := c.srv.CallJSON(ctx, &opts, &rec, nil); err != nil {
		return errors.Wrap(err, "error resetting retry count")
	}
	return nil
}
