package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------.

type (
	// StatusCarrier is implemented by failures that carry an HTTP-like
	// response code, such as an API error body or a rejected response.
	StatusCarrier interface {
		error
		// HTTPStatus returns the response status code.
		HTTPStatus() int
	}

	// RetryAfterCarrier is implemented by rate-limit failures that carry
	// the provider's wait hint.
	RetryAfterCarrier interface {
		error
		// RetryAfterHint returns how long the provider asked us to wait.
		RetryAfterHint() time.Duration
	}
)

// transportErrnos maps recognized transport-level errnos to the network
// transient kind.
//
//nolint:gochecknoglobals // static classification table
var transportErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ETIMEDOUT,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
}

// messageRule matches a lowercase substring of an unrecognized error message
// to a taxonomy code. Rules are evaluated in order; first match wins.
type messageRule struct {
	substrings []string
	code       Code
}

//nolint:gochecknoglobals // static classification table
var messageRules = []messageRule{
	{substrings: []string{"rate limit", "429"}, code: CodeRateLimit},
	{substrings: []string{"timeout", "timed out"}, code: CodeTimeout},
	{substrings: []string{"not found", "404"}, code: CodeClientInput},
	{substrings: []string{"unauthorized", "401"}, code: CodeClientInput},
	{substrings: []string{"forbidden", "403"}, code: CodeClientInput},
	// Errno identity is often lost when errors cross library boundaries as
	// strings; match the stringified forms too.
	{substrings: []string{"network", "fetch failed", "connection reset", "connection refused"}, code: CodeNetworkTransient},
}

// Classify turns any failure into a NormalizedError. It is pure, performs no
// I/O, and is idempotent: classifying an already-normalized error returns it
// unchanged, so the retryability verdict is computed exactly once.
//
// Matching runs in priority order: already-normalized errors, explicit status
// codes, transport errnos and DNS failures, timeout-shaped errors, message
// substrings, and finally CodeUnknown.
func Classify(err error) *NormalizedError {
	if err == nil {
		return nil
	}

	// Already normalized: return unchanged.
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne
	}

	// Explicit status code.
	var sc StatusCarrier
	if errors.As(err, &sc) {
		if classified := classifyStatus(err, sc.HTTPStatus()); classified != nil {
			return classified
		}
	}

	// Transport errnos.
	for _, errno := range transportErrnos {
		if errors.Is(err, errno) {
			return wrapError(CodeNetworkTransient, err)
		}
	}

	// DNS resolution failures.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return wrapError(CodeNetworkTransient, err)
	}

	// Timeout-shaped errors: deadline exceeded, or a net.Error that
	// reports itself as a timeout.
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(CodeTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrapError(CodeTimeout, err)
	}

	// Message substrings, case-insensitive.
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, sub := range rule.substrings {
			if strings.Contains(msg, sub) {
				return wrapError(rule.code, err)
			}
		}
	}

	// Unclassified failures are treated as possibly transient rather than
	// silently dropped.
	return wrapError(CodeUnknown, err)
}

// classifyStatus maps an HTTP-like status code to a taxonomy code. Returns
// nil for codes below 400 so that classification falls through to the next
// rules.
func classifyStatus(err error, status int) *NormalizedError {
	switch {
	case status == http.StatusTooManyRequests:
		ne := wrapError(CodeRateLimit, err)
		ne.StatusCode = status

		var ra RetryAfterCarrier
		if errors.As(err, &ra) && ra.RetryAfterHint() > 0 {
			ne.withDetail("retryAfter", ra.RetryAfterHint().String())
		}

		return ne

	case status >= 400 && status < 500:
		ne := wrapError(CodeClientInput, err)
		ne.StatusCode = status

		return ne

	case status >= 500:
		ne := wrapError(CodeServerTransient, err)
		ne.StatusCode = status

		return ne

	default:
		return nil
	}
}
