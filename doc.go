// Package resilience decides what happens when a call to a scarce,
// rate-limited or flaky external dependency fails: retry it, delay it,
// reject it, or degrade to a fallback path.
//
// Every failure is normalized once by [Classify] into a [NormalizedError]
// with a fixed retryability verdict; [DoRetry] drives bounded retries with
// backoff, [RateQueue] serializes all callers through one per-process
// gatekeeper enforcing a minimum dispatch interval and a rolling daily cap,
// and [Degrader] absorbs resource failures into fallback results. [Guard]
// composes these per protected resource and reports status for readiness
// probes.
package resilience
