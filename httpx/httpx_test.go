package httpx

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

func newRequest(t *testing.T, method, url string, body io.Reader) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)

	return req
}

// ---------------------------------------------------------------------------
// StatusError
// ---------------------------------------------------------------------------

func TestStatusErrorCarriesStatus(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusBadGateway}

	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Equal(t, "http status 502", err.Error())

	ne := resilience.Classify(err)
	assert.Equal(t, resilience.CodeServerTransient, ne.Code)
	assert.Equal(t, http.StatusBadGateway, ne.StatusCode)
}

func TestStatusErrorRetryAfterSeconds(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "30")

	err := &StatusError{Response: resp, StatusCode: http.StatusTooManyRequests}
	assert.Equal(t, 30*time.Second, err.RetryAfterHint())

	ne := resilience.Classify(err)
	assert.Equal(t, resilience.CodeRateLimit, ne.Code)
	assert.Equal(t, "30s", ne.Details["retryAfter"])
}

func TestStatusErrorRetryAfterDate(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))

	err := &StatusError{Response: resp, StatusCode: http.StatusTooManyRequests}

	hint := err.RetryAfterHint()
	assert.Greater(t, hint, 30*time.Second)
	assert.LessOrEqual(t, hint, time.Minute)
}

func TestStatusErrorRetryAfterAbsent(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusTooManyRequests}
	assert.Zero(t, err.RetryAfterHint())

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "soonish")

	err = &StatusError{Response: resp, StatusCode: http.StatusTooManyRequests}
	assert.Zero(t, err.RetryAfterHint())
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestClientSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	client := NewClient("api", srv.Client(), resilience.WithRegistry(resilience.NewRegistry()))

	resp, err := client.Do(newRequest(t, http.MethodGet, srv.URL, nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

// A transient upstream failure is retried through the guard; the third
// attempt succeeds.
func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	client := NewClient("api", srv.Client(),
		resilience.WithRegistry(resilience.NewRegistry()),
		resilience.WithRetry(resilience.RetryPolicy{
			MaxAttempts: 3,
			Strategy:    resilience.LinearBackoff(time.Millisecond, time.Millisecond),
		}),
	)

	resp, err := client.Do(newRequest(t, http.MethodGet, srv.URL, nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.EqualValues(t, 3, hits.Load())
}

// Client errors are terminal: one attempt, classified CLIENT_INPUT_ERROR.
func TestClient4xxNotRetried(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("api", srv.Client(),
		resilience.WithRegistry(resilience.NewRegistry()),
		resilience.WithRetry(resilience.RetryPolicy{
			MaxAttempts: 5,
			Strategy:    resilience.LinearBackoff(time.Millisecond, time.Millisecond),
		}),
	)

	_, err := client.Do(newRequest(t, http.MethodGet, srv.URL, nil))
	require.Error(t, err)

	assert.Equal(t, resilience.CodeClientInput, resilience.CodeOf(err))
	assert.EqualValues(t, 1, hits.Load())

	// The original response stays inspectable through the error chain.
	ne := resilience.Classify(err)
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
}

// Retried POSTs re-send the full body each attempt.
func TestClientRetriesReplayBody(t *testing.T) {
	var (
		mu     sync.Mutex
		hits   atomic.Int32
		bodies []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)

		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()

		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient("api", srv.Client(),
		resilience.WithRegistry(resilience.NewRegistry()),
		resilience.WithRetry(resilience.RetryPolicy{
			MaxAttempts: 2,
			Strategy:    resilience.LinearBackoff(time.Millisecond, time.Millisecond),
		}),
	)

	resp, err := client.Do(newRequest(t, http.MethodPost, srv.URL, strings.NewReader("the payload")))
	require.NoError(t, err)

	defer resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, bodies, 2)
	assert.Equal(t, "the payload", bodies[0])
	assert.Equal(t, "the payload", bodies[1])
}

func TestClientFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cached := &http.Response{StatusCode: http.StatusOK}

	client := NewClient("api", srv.Client(),
		resilience.WithRegistry(resilience.NewRegistry()),
		resilience.WithFallback(cached),
	)

	resp, err := client.Do(newRequest(t, http.MethodGet, srv.URL, nil))
	require.NoError(t, err)
	assert.Same(t, cached, resp)
}

// ---------------------------------------------------------------------------
// Compression
// ---------------------------------------------------------------------------

func TestGzipOrIdentityCompresses(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 512)

	encoded, encoding := GzipOrIdentity(payload, nil)
	require.Equal(t, "gzip", encoding)
	assert.Less(t, len(encoded), len(payload))

	reader, err := gzip.NewReader(bytes.NewReader(encoded))
	require.NoError(t, err)

	decoded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestGzipOrIdentitySmallPayload(t *testing.T) {
	payload := []byte("tiny")

	encoded, encoding := GzipOrIdentity(payload, nil)
	assert.Equal(t, "identity", encoding)
	assert.Equal(t, payload, encoded)
}
