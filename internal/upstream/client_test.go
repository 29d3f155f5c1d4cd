package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/util"
)

func TestClient_PostJSON_Success(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		assert.Equal(t, "/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"user":"alice"}`)
	}))
	defer srv.Close()

	c := NewClient("auth", srv.URL+"/", time.Second)
	ctx := util.ContextWithRequestID(context.Background(), "req-42")

	resp, err := c.PostJSON(ctx, "/verify", map[string]string{"token": "t"}, http.Header{
		HeaderAuthorization: []string{"Bearer t"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"user":"alice"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType())
	assert.Equal(t, "t", gotBody["token"])
	assert.Equal(t, "req-42", gotHeader.Get(HeaderRequestID))
	assert.Equal(t, "Bearer t", gotHeader.Get(HeaderAuthorization))
	assert.Equal(t, ContentTypeJSON, gotHeader.Get(HeaderContentType))
}

func TestClient_PostForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, ContentTypeForm, r.Header.Get(HeaderContentType))
		assert.Equal(t, "bob", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		_, _ = io.WriteString(w, `{"access_token":"tok1"}`)
	}))
	defer srv.Close()

	c := NewClient("auth", srv.URL, time.Second)
	resp, err := c.PostForm(context.Background(), "/login", url.Values{
		"username": {"bob"},
		"password": {"secret"},
	}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"tok1"}`, string(resp.Body))
}

func TestClient_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"detail":"User already exists"}`)
	}))
	defer srv.Close()

	c := NewClient("auth", srv.URL, time.Second)
	resp, err := c.PostJSON(context.Background(), "/register", []byte(`{}`), nil)
	assert.Nil(t, resp)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, http.StatusConflict, rejected.StatusCode)
	assert.Equal(t, "auth", rejected.Service)
	assert.JSONEq(t, `"User already exists"`, string(rejected.Detail()))
}

func TestClient_RedirectIsNotFollowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	_, err := NewClient("tx", srv.URL, time.Second).PostJSON(context.Background(), "/transactions/", []byte(`{}`), nil)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusFound, rejected.StatusCode)
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient("tx", addr, time.Second).PostJSON(context.Background(), "/transactions/", []byte(`{}`), nil)

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, util.ErrUpstreamUnavailable)
	assert.False(t, unreachable.Timeout())
	assert.Equal(t, "unreachable", outcome(err))
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient("tx", srv.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := c.PostJSON(context.Background(), "/transactions/", []byte(`{}`), nil)
	elapsed := time.Since(start)

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.True(t, unreachable.Timeout())
	assert.ErrorIs(t, err, util.ErrTimeout)
	assert.Equal(t, "timeout", outcome(err))
	assert.Less(t, elapsed, time.Second)
}

func TestClient_CircuitBreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"boom"}`)
	}))
	defer srv.Close()

	cb := NewCircuitBreaker("tx-breaker-test", 2, time.Minute, nil)
	c := NewClient("tx-breaker-test", srv.URL, time.Second, WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := c.PostJSON(context.Background(), "/transactions/", []byte(`{}`), nil)
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, http.StatusInternalServerError, rejected.StatusCode)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := c.PostJSON(context.Background(), "/transactions/", []byte(`{}`), nil)
	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.ErrorIs(t, err, util.ErrCircuitOpen)
	assert.Equal(t, "circuit_open", outcome(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("client-errors", 1, time.Minute, nil)
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (*Response, error) {
			return nil, &RejectedError{StatusCode: http.StatusUnauthorized}
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestRejectedError_Detail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "detail string", status: 400, body: `{"detail":"bad"}`, want: `"bad"`},
		{name: "detail list", status: 422, body: `{"detail":[{"msg":"x"}]}`, want: `[{"msg":"x"}]`},
		{name: "json without detail", status: 400, body: `{"error":"bad"}`, want: `{"error":"bad"}`},
		{name: "plain text", status: 502, body: "Bad Gateway from nginx", want: `"Bad Gateway from nginx"`},
		{name: "empty body", status: 503, body: "", want: `"Service Unavailable"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &RejectedError{StatusCode: tt.status, Body: []byte(tt.body)}
			assert.JSONEq(t, tt.want, string(e.Detail()))
		})
	}
}

func TestNewClientFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.ServiceConfig{
		URL:            "http://tx.local:83",
		CircuitBreaker: &config.CircuitBreakerConfig{Enabled: true, Threshold: 3, Timeout: config.Duration(time.Second)},
	}
	pool := NewConnectionPool(PoolConfigFromConfig(config.UpstreamConfig{MaxIdleConns: 7}))
	defer pool.CloseIdleConnections()

	c := NewClientFromConfig("transactions", cfg, pool, nil)
	assert.Equal(t, "transactions", c.Service())
	assert.Equal(t, "http://tx.local:83", c.BaseURL())
	assert.Equal(t, config.DefaultServiceTimeout, c.timeout)
	assert.NotNil(t, c.breaker)
	assert.Same(t, pool.Client(), c.httpClient)
	assert.Equal(t, 7, pool.config.MaxIdleConns)
	assert.Equal(t, config.DefaultMaxIdleConnsPerHost, pool.config.MaxIdleConnsPerHost)
}

func TestMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := GetMetrics()
	m.MustRegister(reg)
	m.Init("auth")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "gateway_upstream_requests_total")
	assert.Contains(t, names, "gateway_upstream_circuit_breaker_state")
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "rejected", outcome(&RejectedError{StatusCode: 400}))
	assert.Equal(t, "unreachable", outcome(errors.New("x")))
}
