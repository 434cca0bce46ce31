package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
)

// stubReporter is a fixed-status StatusReporter.
type stubReporter struct {
	status ResourceStatus
}

func (s stubReporter) Resource() string       { return s.status.Resource }
func (s stubReporter) Status() ResourceStatus { return s.status }

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryEmptyIsReady(t *testing.T) {
	status := NewRegistry().CheckReadiness()

	if !status.Ready {
		t.Fatal("empty registry must report ready")
	}

	if len(status.Resources) != 0 {
		t.Fatalf("Resources = %v, want empty", status.Resources)
	}
}

func TestRegistryReadiness(t *testing.T) {
	reg := NewRegistry()

	reg.Register(stubReporter{status: ResourceStatus{
		Resource: "healthy", State: "healthy", Healthy: true,
	}})
	reg.Register(stubReporter{status: ResourceStatus{
		Resource: "degraded", State: "daily_cap_exhausted",
		Severity: SeverityDegraded, Healthy: true,
	}})

	status := reg.CheckReadiness()
	if !status.Ready {
		t.Fatal("degraded resources must not fail readiness")
	}

	reg.Register(stubReporter{status: ResourceStatus{
		Resource: "down", State: "circuit_open",
		Severity: SeverityCritical, Healthy: false,
	}})

	status = reg.CheckReadiness()
	if status.Ready {
		t.Fatal("a critical unhealthy resource must fail readiness")
	}

	if len(status.Resources) != 3 {
		t.Fatalf("got %d resources, want 3", len(status.Resources))
	}
}

func TestRegistryConcurrentRegister(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			reg.Register(stubReporter{status: ResourceStatus{Resource: "r", Healthy: true}})
		}()

		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = reg.CheckReadiness()
		}()
	}

	wg.Wait()

	if got := len(reg.CheckReadiness().Resources); got != 50 {
		t.Fatalf("got %d reporters, want 50", got)
	}
}

func TestDefaultRegistrySingleton(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Fatal("DefaultRegistry() must return the same instance")
	}
}

// ---------------------------------------------------------------------------
// Severity
// ---------------------------------------------------------------------------

func TestSeverityString(t *testing.T) {
	cases := []struct {
		want     string
		severity Severity
	}{
		{want: "none", severity: SeverityNone},
		{want: "degraded", severity: SeverityDegraded},
		{want: "critical", severity: SeverityCritical},
	}

	for _, tc := range cases {
		if got := tc.severity.String(); got != tc.want {
			t.Fatalf("Severity(%d).String() = %q, want %q", tc.severity, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Readiness handler
// ---------------------------------------------------------------------------

func TestReadinessHandlerOK(t *testing.T) {
	reg := NewRegistry()
	NewGuard[int]("serving", WithRegistry(reg))

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if !status.Ready || len(status.Resources) != 1 {
		t.Fatalf("body = %+v", status)
	}
}

func TestReadinessHandlerUnavailable(t *testing.T) {
	reg := NewRegistry()

	g := NewGuard[int]("down", WithRegistry(reg), WithBreaker(FailureThreshold(1)))
	_, _ = g.Do(context.Background(), func(_ context.Context) (int, error) {
		return 0, NewError(CodeServerTransient, "503")
	})

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if status.Ready {
		t.Fatal("body reports ready for a tripped resource")
	}

	if status.Resources[0].State != "circuit_open" {
		t.Fatalf("state = %q", status.Resources[0].State)
	}
}
