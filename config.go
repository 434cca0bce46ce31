package resilience

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

type (
	// configFile is the top-level JSON structure.
	configFile struct {
		Resources map[string]ResourceConfig `json:"resources"`
	}

	// ResourceConfig holds the decoded resilience profile for one
	// protected resource. Embed it in your own app config struct for
	// JSON unmarshaling, then call [BuildOptions] to obtain functional
	// options for [NewGuard].
	ResourceConfig struct {
		// Queue configures the rate-limited queue.
		// Optional. Example: {"min_interval": "7s", "daily_cap": 450}.
		Queue *QueueProfile `json:"queue,omitempty"`
		// Retry configures the retry executor.
		// Optional. Example: {"max_attempts": 3, "backoff": "exponential"}.
		Retry *RetryProfile `json:"retry,omitempty"`
		// Breaker configures the circuit breaker.
		Breaker *BreakerProfile `json:"breaker,omitempty"`
		// Timeout bounds each call. Parsed via time.ParseDuration.
		Timeout string `json:"timeout,omitempty"`
		// Pool bounds concurrent calls.
		Pool *int `json:"pool,omitempty" validate:"omitempty,gte=1"`
	}

	// QueueProfile holds queue configuration values.
	QueueProfile struct {
		// MinInterval is the minimum gap between dispatches.
		// Required. Parsed via time.ParseDuration. Example: "7s".
		MinInterval string `json:"min_interval" validate:"required"`
		// Window is the rolling quota window. Optional; defaults to
		// 24h.
		Window string `json:"window,omitempty"`
		// DailyCap bounds successful dispatches per window. 0 means
		// no cap.
		DailyCap int `json:"daily_cap" validate:"gte=0"`
		// Bypass skips the queue entirely.
		Bypass bool `json:"bypass,omitempty"`
	}

	// RetryProfile holds retry configuration values.
	RetryProfile struct {
		// Backoff is the strategy name: "linear" or "exponential".
		Backoff string `json:"backoff" validate:"oneof=linear exponential"`
		// InitialDelay seeds the backoff. Required. Example: "500ms".
		InitialDelay string `json:"initial_delay" validate:"required"`
		// MaxDelay caps the backoff. Optional.
		MaxDelay string `json:"max_delay,omitempty"`
		// Jitter is the uniform perturbation ratio, 0 to disable.
		Jitter float64 `json:"jitter,omitempty" validate:"gte=0,lte=1"`
		// MaxAttempts bounds operation invocations.
		MaxAttempts int `json:"max_attempts" validate:"gte=1"`
	}

	// BreakerProfile holds circuit breaker configuration values.
	BreakerProfile struct {
		// FailureThreshold is the consecutive failures before
		// opening.
		FailureThreshold *int `json:"failure_threshold,omitempty" validate:"omitempty,gte=1"`
		// RecoveryTimeout is how long the breaker stays open.
		RecoveryTimeout string `json:"recovery_timeout,omitempty"`
		// HalfOpenMaxProbes is the successful probes needed to close.
		HalfOpenMaxProbes *int `json:"half_open_max_probes,omitempty" validate:"omitempty,gte=1"`
	}
)

//nolint:gochecknoglobals // shared validator instance, stateless after init
var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// LoadConfig reads a JSON file of resource profiles into a [Registry].
// Guards are not created until [GuardFromConfig] is called, which lets the
// caller supply the type parameter and code-level options. Every profile is
// validated eagerly so malformed config surfaces at load time.
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resilience: read config: %w", err)
	}

	var cfg configFile
	if err = json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("resilience: parse config: %w", err)
	}

	for name, rc := range cfg.Resources {
		if err = validate().Struct(rc); err != nil {
			return nil, fmt.Errorf("resilience: resource %q: %w", name, err)
		}

		if _, err = BuildOptions(&rc); err != nil {
			return nil, fmt.Errorf("resilience: resource %q: %w", name, err)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.profiles = cfg.Resources
	reg.mu.Unlock()

	return reg, nil
}

// BuildOptions converts a [ResourceConfig] into functional options for
// [NewGuard]. Use it directly when the profile is embedded in your own
// config struct.
func BuildOptions(rc *ResourceConfig) ([]any, error) {
	var opts []any

	if rc.Timeout != "" {
		d, err := time.ParseDuration(rc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}

		opts = append(opts, WithTimeout(d))
	}

	if rc.Retry != nil {
		policy, err := buildRetryPolicy(rc.Retry)
		if err != nil {
			return nil, fmt.Errorf("retry: %w", err)
		}

		opts = append(opts, WithRetry(policy))
	}

	if rc.Breaker != nil {
		breakerOpts, err := buildBreakerOptions(rc.Breaker)
		if err != nil {
			return nil, fmt.Errorf("breaker: %w", err)
		}

		opts = append(opts, WithBreaker(breakerOpts...))
	}

	if rc.Queue != nil {
		queueCfg, err := buildQueueConfig(rc.Queue)
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}

		opts = append(opts, WithQueueConfig(queueCfg))
	}

	if rc.Pool != nil {
		opts = append(opts, WithPool(*rc.Pool))
	}

	return opts, nil
}

func buildRetryPolicy(rp *RetryProfile) (RetryPolicy, error) {
	initial, err := time.ParseDuration(rp.InitialDelay)
	if err != nil {
		return RetryPolicy{}, fmt.Errorf("initial_delay: %w", err)
	}

	var maxDelay time.Duration

	if rp.MaxDelay != "" {
		maxDelay, err = time.ParseDuration(rp.MaxDelay)
		if err != nil {
			return RetryPolicy{}, fmt.Errorf("max_delay: %w", err)
		}
	}

	var backoffOpts []BackoffOption
	if rp.Jitter > 0 {
		backoffOpts = append(backoffOpts, WithJitter(rp.Jitter))
	}

	var strategy BackoffStrategy

	switch rp.Backoff {
	case "linear":
		strategy = LinearBackoff(initial, maxDelay, backoffOpts...)
	case "exponential":
		strategy = ExponentialBackoff(initial, maxDelay, backoffOpts...)
	default:
		return RetryPolicy{}, fmt.Errorf("unknown backoff strategy: %q", rp.Backoff)
	}

	return RetryPolicy{
		MaxAttempts: rp.MaxAttempts,
		Strategy:    strategy,
	}, nil
}

func buildBreakerOptions(bp *BreakerProfile) ([]BreakerOption, error) {
	var opts []BreakerOption

	if bp.FailureThreshold != nil {
		opts = append(opts, FailureThreshold(*bp.FailureThreshold))
	}

	if bp.RecoveryTimeout != "" {
		d, err := time.ParseDuration(bp.RecoveryTimeout)
		if err != nil {
			return nil, fmt.Errorf("recovery_timeout: %w", err)
		}

		opts = append(opts, RecoveryTimeout(d))
	}

	if bp.HalfOpenMaxProbes != nil {
		opts = append(opts, HalfOpenMaxProbes(*bp.HalfOpenMaxProbes))
	}

	return opts, nil
}

func buildQueueConfig(qp *QueueProfile) (QueueConfig, error) {
	minInterval, err := time.ParseDuration(qp.MinInterval)
	if err != nil {
		return QueueConfig{}, fmt.Errorf("min_interval: %w", err)
	}

	cfg := QueueConfig{
		MinInterval: minInterval,
		DailyCap:    qp.DailyCap,
		Bypass:      qp.Bypass,
	}

	if qp.Window != "" {
		cfg.Window, err = time.ParseDuration(qp.Window)
		if err != nil {
			return QueueConfig{}, fmt.Errorf("window: %w", err)
		}
	}

	return cfg, nil
}

// GuardFromConfig builds a typed guard from a config-loaded [Registry]. If
// the resource has no stored profile, a bare guard is created with only the
// provided opts. User options are applied after config options, so they take
// precedence.
func GuardFromConfig[T any](reg *Registry, resource string, opts ...any) *Guard[T] {
	reg.mu.Lock()
	rc, ok := reg.profiles[resource]
	reg.mu.Unlock()

	allOpts := []any{WithRegistry(reg)}

	if ok {
		// Profiles were validated at load time; a build error here
		// would mean the registry was mutated, so it is ignored the
		// same way.
		if configOpts, err := BuildOptions(&rc); err == nil {
			allOpts = append(allOpts, configOpts...)
		}
	}

	allOpts = append(allOpts, opts...)

	return NewGuard[T](resource, allOpts...)
}
