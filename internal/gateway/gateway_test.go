package gateway

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/txgw/internal/config"
)

func testConfig() *config.GatewayConfig {
	cfg := config.DefaultConfig()
	cfg.Spec.Server.Address = "127.0.0.1:0"
	return cfg
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, http.NotFoundHandler())
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = New(testConfig(), nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	gw, err := New(testConfig(), http.NotFoundHandler(), WithLogger(nil), WithShutdownTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, gw.State())
	assert.Equal(t, time.Second, gw.shutdownTimeout)
	assert.Empty(t, gw.Addr())
	assert.Zero(t, gw.Uptime())
}

func TestGateway_Lifecycle(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	gw, err := New(testConfig(), handler)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, gw.Start(ctx))
	assert.True(t, gw.IsRunning())
	assert.ErrorIs(t, gw.Start(ctx), ErrGatewayNotStopped)

	resp, err := http.Get("http://" + gw.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, gw.Stop(ctx))
	assert.Equal(t, StateStopped, gw.State())
	assert.NoError(t, gw.Err())
	select {
	case <-gw.Done():
	default:
		t.Fatal("serve loop still running after Stop")
	}
	assert.ErrorIs(t, gw.Stop(ctx), ErrGatewayNotRunning)
}

func TestGateway_StartListenError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Spec.Server.Address = "256.0.0.1:99999"

	gw, err := New(cfg, http.NotFoundHandler())
	require.NoError(t, err)
	assert.Error(t, gw.Start(context.Background()))
	assert.Equal(t, StateStopped, gw.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateStopped:  "stopped",
		StateStarting: "starting",
		StateRunning:  "running",
		StateStopping: "stopping",
		State(42):     "unknown",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}
