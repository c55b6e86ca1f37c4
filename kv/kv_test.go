package kv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV remembers the records posted to it and serves canned GETs.
type fakeKV struct {
	t       *testing.T
	records map[string]RetryCount
	status  int // forced GET status, 0 = normal
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Path[len("/api/"):]
	switch r.Method {
	case "GET":
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		rec, ok := f.records[hash]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(f.t, json.NewEncoder(w).Encode(rec))
	case "POST":
		var rec RetryCount
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&rec))
		f.records[hash] = rec
		require.NoError(f.t, json.NewEncoder(w).Encode(rec))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFake(t *testing.T) (*fakeKV, *Client, func()) {
	fake := &fakeKV{t: t, records: map[string]RetryCount{}}
	srv := httptest.NewServer(fake)
	return fake, New(srv.Client(), srv.URL), srv.Close
}

func TestGetRetriesExisting(t *testing.T) {
	fake, c, done := newFake(t)
	defer done()
	fake.records["abc"] = RetryCount{URL: "http://x", Retries: 3}

	assert.Equal(t, 3, c.GetRetries(context.Background(), "abc", "http://x", 0))
}

func TestGetRetriesSeedsAbsentRecord(t *testing.T) {
	fake, c, done := newFake(t)
	defer done()

	// a lookup only happens right before a download attempt, so the
	// first sight of a hash stores retries = 1
	assert.Equal(t, 1, c.GetRetries(context.Background(), "new", "http://x", 0))
	assert.Equal(t, RetryCount{URL: "http://x", Retries: 1}, fake.records["new"])
}

func TestGetRetriesFailsOpen(t *testing.T) {
	fake, c, done := newFake(t)
	defer done()
	fake.status = http.StatusInternalServerError

	assert.Equal(t, 2, c.GetRetries(context.Background(), "abc", "http://x", 2))
}

func TestGetRetriesUnreachableFailsOpen(t *testing.T) {
	c := New(http.DefaultClient, "http://127.0.0.1:1")
	assert.Equal(t, 4, c.GetRetries(context.Background(), "abc", "http://x", 4))
}

func TestUpdateRetries(t *testing.T) {
	fake, c, done := newFake(t)
	defer done()

	n, err := c.UpdateRetries(context.Background(), "abc", "http://x", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, fake.records["abc"].Retries)
}

func TestResetRetries(t *testing.T) {
	fake, c, done := newFake(t)
	defer done()
	fake.records["abc"] = RetryCount{URL: "http://x", Retries: 5}

	require.NoError(t, c.ResetRetries(context.Background(), "abc", "http://x"))
	assert.Equal(t, 0, fake.records["abc"].Retries)
}
