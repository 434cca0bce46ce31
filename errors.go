package resilience

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------.

// Code identifies a failure kind in the closed taxonomy. Every failure that
// crosses this layer is normalized to exactly one Code, and the retryability
// verdict attached at classification time is trusted by all downstream
// consumers.
type Code string

// The closed failure taxonomy.
const (
	// CodeClientInput covers 4xx responses (except 429) and other failures
	// caused by the caller's request. Never retryable.
	CodeClientInput Code = "CLIENT_INPUT_ERROR"
	// CodeRateLimit covers provider 429 responses and internal daily-cap
	// rejections. Not retryable by the executor; carries a wait hint.
	CodeRateLimit Code = "RATE_LIMIT"
	// CodeNetworkTransient covers connection resets, refusals and DNS
	// failures. Retryable.
	CodeNetworkTransient Code = "NETWORK_TRANSIENT"
	// CodeServerTransient covers 5xx responses. Retryable.
	CodeServerTransient Code = "SERVER_TRANSIENT"
	// CodeTimeout covers attempts that exceeded their allotted time.
	// Retryable within the attempt budget.
	CodeTimeout Code = "TIMEOUT"
	// CodeCacheUnavailable covers a cache tier that cannot be reached,
	// as opposed to a plain miss. Retryable, and fallback-eligible.
	CodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
	// CodePoolExhausted covers a connection pool with no free slot.
	// Retryable, and fallback-eligible.
	CodePoolExhausted Code = "POOL_EXHAUSTED"
	// CodeCircuitOpen covers calls rejected by an open circuit breaker.
	// Not retryable; fallback-eligible.
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
	// CodeUnknown covers unclassified failures. Treated as retryable so
	// that possibly-transient errors are not silently dropped.
	CodeUnknown Code = "UNKNOWN"
)

// codeProfile holds the per-code defaults stamped onto a NormalizedError at
// construction time.
type codeProfile struct {
	userMessage    string
	recoveryAction string
	retryable      bool
}

//nolint:gochecknoglobals // static taxonomy table
var codeProfiles = map[Code]codeProfile{
	CodeClientInput: {
		userMessage:    "The request could not be processed.",
		recoveryAction: "check the request and try again",
		retryable:      false,
	},
	CodeRateLimit: {
		userMessage:    "The service is receiving too many requests.",
		recoveryAction: "wait before retrying",
		retryable:      false,
	},
	CodeNetworkTransient: {
		userMessage:    "A network problem interrupted the request.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
	CodeServerTransient: {
		userMessage:    "The upstream service is temporarily unavailable.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
	CodeTimeout: {
		userMessage:    "The request took too long to complete.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
	CodeCacheUnavailable: {
		userMessage:    "A supporting service is temporarily unavailable.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
	CodePoolExhausted: {
		userMessage:    "The service is at capacity.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
	CodeCircuitOpen: {
		userMessage:    "The upstream service is temporarily unavailable.",
		recoveryAction: "wait for the service to recover",
		retryable:      false,
	},
	CodeUnknown: {
		userMessage:    "An unexpected error occurred.",
		recoveryAction: "retry shortly",
		retryable:      true,
	},
}

// fallbackEligible lists the codes that denote a resource failure, for which
// the degradation coordinator may serve a fallback result. Caller failures
// (CLIENT_INPUT_ERROR, RATE_LIMIT) are excluded so that bugs and quota
// violations are never hidden behind a "successful" degraded response.
//
//nolint:gochecknoglobals // static taxonomy table
var fallbackEligible = map[Code]bool{
	CodeNetworkTransient: true,
	CodeServerTransient:  true,
	CodeTimeout:          true,
	CodeCacheUnavailable: true,
	CodePoolExhausted:    true,
	CodeCircuitOpen:      true,
}

// ---------------------------------------------------------------------------
// NormalizedError
// ---------------------------------------------------------------------------.

// NormalizedError is the single error shape all failures are converted into
// before any retry or fallback decision is made. It is constructed once per
// failure and treated as immutable thereafter.
//
// Message holds the internal diagnostic text and is reserved for logs;
// UserMessage is safe for display.
type NormalizedError struct {
	Timestamp      time.Time      `json:"timestamp"`
	Details        map[string]any `json:"details,omitempty"`
	Code           Code           `json:"code"`
	Message        string         `json:"message"`
	UserMessage    string         `json:"user_message"`
	RecoveryAction string         `json:"recovery_action"`
	StatusCode     int            `json:"status_code,omitempty"`
	Retryable      bool           `json:"retryable"`
	cause          error
}

// Error returns the internal diagnostic text.
func (e *NormalizedError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the original failure, if any.
func (e *NormalizedError) Unwrap() error { return e.cause }

// NewError creates a NormalizedError with the given code and internal
// message. UserMessage, RecoveryAction and Retryable are stamped from the
// taxonomy defaults.
func NewError(code Code, message string) *NormalizedError {
	p := codeProfiles[code]

	return &NormalizedError{
		Code:           code,
		Message:        message,
		UserMessage:    p.userMessage,
		RecoveryAction: p.recoveryAction,
		Retryable:      p.retryable,
		Timestamp:      time.Now(),
	}
}

// Errorf creates a NormalizedError with a formatted internal message.
func Errorf(code Code, format string, args ...any) *NormalizedError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// wrapError creates a NormalizedError around an original failure, preserving
// it for errors.Is/As walks.
func wrapError(code Code, cause error) *NormalizedError {
	ne := NewError(code, cause.Error())
	ne.cause = cause

	return ne
}

// withDetail records a diagnostic key/value pair. It is only called during
// construction, before the error is published.
func (e *NormalizedError) withDetail(key string, value any) *NormalizedError {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}

	e.Details[key] = value

	return e
}

// CodeOf returns the taxonomy code for err, classifying it first if needed.
// Returns CodeUnknown for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	return Classify(err).Code
}

// IsRetryable reports the classification-time retryability verdict for err.
// Returns false for nil.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	return Classify(err).Retryable
}

// FallbackEligible reports whether err denotes a resource failure that the
// degradation coordinator may absorb into a fallback result. Caller failures
// always propagate. Returns false for nil.
func FallbackEligible(err error) bool {
	if err == nil {
		return false
	}

	return fallbackEligible[Classify(err).Code]
}
