// Package httpx bridges net/http and the resilience layer. Responses with
// error status codes become StatusError values, which carry the status code
// and the provider's Retry-After hint into classification, so HTTP failures
// land in the right part of the taxonomy without custom glue at every call
// site.
package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// StatusError is returned for responses with status >= 400. The original
// response remains accessible for header and body inspection; the body has
// not been read or closed.
//
// Pattern: Adapter — translating HTTP status codes into the failure shapes
// the classifier recognizes.
type StatusError struct {
	// Response is the original HTTP response that triggered the error.
	Response   *http.Response
	StatusCode int
}

// Error returns a human-readable description of the status error.
func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// RetryAfterHint parses the Retry-After response header: either a delay in
// seconds or an HTTP date. Zero when the header is absent or unparsable.
func (e *StatusError) RetryAfterHint() time.Duration {
	if e.Response == nil {
		return 0
	}

	header := e.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}

// Client executes HTTP requests through a resilience guard. Responses with
// status >= 400 surface as StatusError, so the guard's retry, breaker and
// fallback stages see a classified failure rather than a "successful"
// response.
type Client struct {
	hc    *http.Client
	guard *resilience.Guard[*http.Response]
}

// NewClient creates a guarded HTTP client for the named resource. The guard
// options follow [resilience.NewGuard]; hc nil means http.DefaultClient.
func NewClient(resource string, hc *http.Client, opts ...any) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{
		hc:    hc,
		guard: resilience.NewGuard[*http.Response](resource, opts...),
	}
}

// Do executes req through the guard. A response with status >= 400 is
// returned as a nil response plus a classified error wrapping StatusError;
// its body is closed. Successful responses are returned with the body open,
// as with http.Client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.guard.Do(req.Context(), func(ctx context.Context) (*http.Response, error) {
		attempt := req.Clone(ctx)

		// A retried attempt needs a fresh body. http.NewRequest sets
		// GetBody for the common in-memory body types.
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, resilience.Classify(err)
			}

			attempt.Body = body
		}

		resp, err := c.hc.Do(attempt)
		if err != nil {
			return nil, resilience.Classify(err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			err = resilience.Classify(&StatusError{
				Response:   resp,
				StatusCode: resp.StatusCode,
			})
			resp.Body.Close()

			return nil, err
		}

		return resp, nil
	})
}

// Status returns the guard's readiness snapshot for this client's resource.
func (c *Client) Status() resilience.ResourceStatus {
	return c.guard.Status()
}
