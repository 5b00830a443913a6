package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(breaker int) *Client {
	return NewClient(Options{Name: "test", UserAgent: "Mozilla/5.0", BreakerFailures: breaker},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGet_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body><p class=x>hi</p></body></html>"))
	}))
	defer srv.Close()

	c := testClient(0)
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hi")

	doc, err := c.Document(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Find("p.x").Text())
}

func TestGet_StatusMapping(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := testClient(0)
	_, err := c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusNotFound
	_, err = c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGet_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(2)
	for i := 0; i < 4; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), hits.Load(), "open breaker must short-circuit")
}

func TestGet_RateLimitDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(1)
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.Equal(t, int32(3), hits.Load())
}
