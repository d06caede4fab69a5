package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, Jitter: 0}
}

func newTestProvider(url string) *HTTPProvider {
	return NewHTTPProvider(HTTPProviderOptions{
		BaseURL:           url,
		Timeout:           5 * time.Second,
		Policy:            fastPolicy(),
		RequestsPerSecond: 1000,
	})
}

func TestFetchDecodesDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shows/f1", r.URL.Path)
		json.NewEncoder(w).Encode(rawFixture())
	}))
	defer server.Close()

	raw, err := newTestProvider(server.URL).Fetch(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "Formula 1 2025", raw.Show.Title)
	require.Len(t, raw.Seasons, 1)
}

func TestFetchNotFoundIsTerminal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Fetch(context.Background(), "f1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls, "terminal errors must not retry")
}

func TestFetchAuthFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Fetch(context.Background(), "f1")
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestFetchRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(rawFixture())
	}))
	defer server.Close()

	raw, err := newTestProvider(server.URL).Fetch(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "Formula 1 2025", raw.Show.Title)
}

func TestFetchExhaustsRetriesOnServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Fetch(context.Background(), "f1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProvider(server.URL).Fetch(ctx, "f1")
	assert.Error(t, err)
}
