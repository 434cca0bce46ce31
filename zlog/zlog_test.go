package zlog

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// syncBuffer is a mutex-guarded log sink; degradation events are emitted on
// a separate goroutine, so reads and writes may overlap.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// logLines decodes every JSON line the logger produced.
func logLines(t *testing.T, buf *syncBuffer) []map[string]any {
	t.Helper()

	var lines []map[string]any

	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}

		var line map[string]any

		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}

	return lines
}

func TestHooksLogRetry(t *testing.T) {
	var buf syncBuffer

	hooks := NewHooks(zerolog.New(&buf), "inference")

	_, _ = resilience.DoRetry(context.Background(),
		func(_ context.Context) (string, error) {
			return "", resilience.NewError(resilience.CodeNetworkTransient, "reset")
		},
		resilience.RetryPolicy{
			MaxAttempts: 2,
			Strategy:    resilience.LinearBackoff(time.Millisecond, time.Millisecond),
			Hooks:       hooks,
		},
	)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)

	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "inference", lines[0]["resource"])
	assert.Equal(t, string(resilience.CodeNetworkTransient), lines[0]["code"])
	assert.InDelta(t, 1, lines[0]["attempt"], 0)
}

func TestHooksLogCapExhausted(t *testing.T) {
	var buf syncBuffer

	hooks := NewHooks(zerolog.New(&buf), "inference")

	q := resilience.NewRateQueue[int]("inference", resilience.QueueConfig{
		DailyCap: 1,
		Hooks:    hooks,
	})

	ctx := context.Background()

	_, err := q.Enqueue(ctx, func(_ context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, func(_ context.Context) (int, error) { return 2, nil })
	require.Error(t, err)

	lines := logLines(t, &buf)

	var found bool

	for _, line := range lines {
		if line["message"] == "daily request cap exhausted" {
			found = true

			assert.Equal(t, "error", line["level"])
			assert.InDelta(t, 1, line["rejected"], 0)
		}
	}

	assert.True(t, found, "no cap-exhausted line logged")
}

func TestHooksLogDegraded(t *testing.T) {
	var buf syncBuffer

	hooks := NewHooks(zerolog.New(&buf), "summary-cache")

	d := resilience.NewDegrader(
		"summary-cache",
		func(_ context.Context) (string, error) {
			return "", resilience.NewError(resilience.CodeCacheUnavailable, "redis down")
		},
		func(_ context.Context) (string, error) {
			return "recomputed", nil
		},
		resilience.DegraderHooks[string](hooks),
	)

	got, err := d.Do(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recomputed", got)

	// The event is emitted off the response path.
	require.Eventually(t, func() bool {
		for _, line := range logLines(t, &buf) {
			if line["message"] == "serving degraded result" {
				return true
			}
		}

		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHooksLogCircuitTransitions(t *testing.T) {
	var buf syncBuffer

	hooks := NewHooks(zerolog.New(&buf), "upstream")

	b := resilience.NewBreaker("upstream", nil, hooks,
		resilience.FailureThreshold(1),
		resilience.RecoveryTimeout(5*time.Millisecond),
	)

	b.RecordFailure(resilience.NewError(resilience.CodeServerTransient, "503"))
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, b.Allow())
	b.RecordSuccess()

	var messages []string

	for _, line := range logLines(t, &buf) {
		if msg, ok := line["message"].(string); ok {
			messages = append(messages, msg)
		}
	}

	assert.Contains(t, messages, "circuit opened")
	assert.Contains(t, messages, "circuit half-open, probing")
	assert.Contains(t, messages, "circuit closed")
}
