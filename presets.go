package resilience

import "time"

// Pattern: Factory Function — each preset produces a ready-made option
// bundle for one of the scarce dependencies this layer protects.

// InferenceAPI returns guard options for the AI-inference provider: a
// serialized queue tuned below the per-minute quota with a conservative
// daily cap, three attempts with jittered exponential backoff, a 90s call
// timeout and a circuit breaker.
//
// The interval and cap protect an aggregate per-process budget; exceeding
// the provider's quota risks account suspension, so both sit below the
// stated limits with a safety margin.
func InferenceAPI() []any {
	return []any{
		WithQueueConfig(QueueConfig{
			MinInterval: 7 * time.Second,
			DailyCap:    450,
		}),
		WithRetry(RetryPolicy{
			MaxAttempts: 3,
			Strategy: ExponentialBackoff(
				2*time.Second,
				60*time.Second,
				WithJitter(0.2),
			),
		}),
		WithTimeout(90 * time.Second),
		WithBreaker(
			FailureThreshold(5),
			RecoveryTimeout(60*time.Second),
		),
	}
}

// SourceHostingAPI returns guard options for the source-hosting provider:
// no daily cap, four attempts with jittered exponential backoff, a 30s call
// timeout, a circuit breaker and a bounded connection pool.
func SourceHostingAPI() []any {
	return []any{
		WithRetry(RetryPolicy{
			MaxAttempts: 4,
			Strategy: ExponentialBackoff(
				500*time.Millisecond,
				10*time.Second,
				WithJitter(0.2),
			),
		}),
		WithTimeout(30 * time.Second),
		WithBreaker(
			FailureThreshold(5),
			RecoveryTimeout(30*time.Second),
		),
		WithPool(10),
	}
}
