package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okProbe(name string) Probe {
	return NewDependencyCheck(name, time.Second, func(context.Context) error { return nil })
}

func failingProbe(name string) Probe {
	return NewDependencyCheck(name, time.Second, func(context.Context) error { return errors.New("down") })
}

// hangingProbe ignores its context entirely.
func hangingProbe(name string, timeout time.Duration, release <-chan struct{}) Probe {
	return NewDependencyCheck(name, timeout, func(context.Context) error {
		<-release
		return nil
	})
}

func TestAggregator_AllHealthy(t *testing.T) {
	t.Parallel()

	agg := NewAggregator([]Probe{okProbe("hc-auth"), okProbe("hc-tx")})
	report := agg.Check(context.Background())

	assert.True(t, report.Healthy)
	require.Len(t, report.Services, 2)
	assert.Equal(t, "hc-auth", report.Services[0].Name)
	assert.Equal(t, "hc-tx", report.Services[1].Name)
	for _, s := range report.Services {
		assert.True(t, s.Healthy)
		assert.Empty(t, s.Error)
		assert.False(t, s.CheckedAt.IsZero())
	}
	assert.Equal(t, []string{"hc-auth", "hc-tx"}, agg.Probes())
}

func TestAggregator_OneFailureMakesAggregateUnhealthy(t *testing.T) {
	t.Parallel()

	agg := NewAggregator([]Probe{okProbe("hc-a"), failingProbe("hc-b")}, WithLogger(observability.NopLogger()))
	report := agg.Check(context.Background())

	assert.False(t, report.Healthy)
	assert.True(t, report.Services[0].Healthy)
	assert.False(t, report.Services[1].Healthy)
	assert.Equal(t, "down", report.Services[1].Error)
	assert.Equal(t, float64(0), testutil.ToFloat64(GetHealthMetrics().dependencyUp.WithLabelValues("hc-b")))
}

func TestAggregator_NoProbesIsHealthy(t *testing.T) {
	t.Parallel()

	assert.True(t, NewAggregator(nil).Check(context.Background()).Healthy)
}

func TestAggregator_PanickingProbeIsUnhealthy(t *testing.T) {
	t.Parallel()

	agg := NewAggregator([]Probe{
		NewDependencyCheck("hc-panic", time.Second, func(context.Context) error { panic("boom") }),
	})

	var report Report
	assert.NotPanics(t, func() { report = agg.Check(context.Background()) })
	assert.False(t, report.Healthy)
	assert.Contains(t, report.Services[0].Error, "panicked")
}

func TestAggregator_LatencyIsBoundedByLargestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	agg := NewAggregator([]Probe{
		hangingProbe("hc-slow-1", 150*time.Millisecond, release),
		hangingProbe("hc-slow-2", 150*time.Millisecond, release),
		hangingProbe("hc-slow-3", 150*time.Millisecond, release),
		okProbe("hc-fast"),
	})

	start := time.Now()
	report := agg.Check(context.Background())
	elapsed := time.Since(start)

	assert.False(t, report.Healthy)
	// Sequential probing would take at least 450ms.
	assert.Less(t, elapsed, 400*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	for _, s := range report.Services[:3] {
		assert.False(t, s.Healthy)
		assert.Contains(t, s.Error, ErrProbeTimeout.Error())
	}
	assert.True(t, report.Services[3].Healthy)
}

func TestAggregator_DefaultTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	agg := NewAggregator([]Probe{hangingProbe("hc-default", 0, release)}, WithDefaultTimeout(50*time.Millisecond))
	start := time.Now()
	report := agg.Check(context.Background())

	assert.False(t, report.Healthy)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{
			name:    "ok",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		},
		{
			name:    "no content",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) },
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: true,
		},
		{
			name:    "redirect",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusMovedPermanently) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			check := HTTPHealthCheck("svc", srv.URL+"/healthz/ready", time.Second, nil)
			assert.Equal(t, "svc", check.Name())
			assert.Equal(t, time.Second, check.Timeout())

			err := check.Check(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPHealthCheck_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	report := NewAggregator([]Probe{HTTPHealthCheck("hc-gone", url, time.Second, srv.Client())}).
		Check(context.Background())
	assert.False(t, report.Healthy)
	assert.Contains(t, report.Services[0].Error, "failed to connect")
}

func TestHTTPHealthCheck_UsesProbePath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, HTTPHealthCheck("svc", srv.URL+"/transaction/healthz/ready", time.Second, nil).
		Check(context.Background()))
	assert.Equal(t, "/transaction/healthz/ready", gotPath)
}

type staticChecker Report

func (s staticChecker) Check(context.Context) Report { return Report(s) }

func TestHandler_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		report     Report
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthy",
			report:     Report{Healthy: true},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"healthy"}`,
		},
		{
			name:       "unhealthy",
			report:     Report{Healthy: false, Services: []ServiceStatus{{Name: "transactions"}}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"detail":"one or more dependencies unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := gin.New()
			NewHandler(staticChecker(tt.report)).RegisterRoutes(engine)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ReadinessPath, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHandler_ReadinessWithHangingDependency(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	agg := NewAggregator([]Probe{
		okProbe("hc-auth-live"),
		hangingProbe("hc-tx-hung", 100*time.Millisecond, release),
	})
	engine := gin.New()
	NewHandler(agg).RegisterRoutes(engine)

	w := httptest.NewRecorder()
	start := time.Now()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ReadinessPath, nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"detail":"one or more dependencies unavailable"}`, w.Body.String())
	assert.Less(t, time.Since(start), time.Second)
}

func TestHandler_Liveness(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	NewHandler(staticChecker(Report{Healthy: false})).RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, LivenessPath, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestHealthMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := GetHealthMetrics()
	m.MustRegister(reg)
	m.Init("auth", "transactions")

	count, err := testutil.GatherAndCount(reg, "gateway_health_dependency_up")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}
