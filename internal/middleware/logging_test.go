package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/util"
)

func TestLogging_AccessLine(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := observability.NewLoggerFromCore(core)

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			util.SetRouteName(r.Context(), "transactions")
			assert.False(t, util.StartTimeFromContext(r.Context()).IsZero())
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short"))
		}),
		RequestIDWithGenerator(func() string { return "rid-1" }),
		Logging(logger),
	)

	req := httptest.NewRequest(http.MethodPost, "/transactions/?x=1", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("User-Agent", "tests")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/transactions/", fields["path"])
	assert.Equal(t, "x=1", fields["query"])
	assert.Equal(t, "transactions", fields["route"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 5, fields["size"])
	assert.Equal(t, "192.0.2.10", fields["client_ip"])
	assert.Equal(t, "tests", fields["user_agent"])
	assert.Equal(t, "rid-1", fields["request_id"])
}

func TestLogging_DefaultStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	handler := Logging(observability.NewLoggerFromCore(core))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{}")) }),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz/live", nil))

	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, http.StatusOK, logs.All()[0].ContextMap()["status"])
	assert.Equal(t, "", logs.All()[0].ContextMap()["route"])
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mark("outer"), nil, mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
