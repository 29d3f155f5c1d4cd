package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
apiVersion: gateway.txgw.io/v1
kind: Gateway
metadata:
  name: test-gateway
spec:
  server:
    address: ":9090"
  services:
    auth:
      url: http://auth.local:82
      timeout: 2s
    transactions:
      url: http://tx.local:83
      healthPath: /health
      circuitBreaker:
        enabled: true
  cache:
    enabled: true
    type: redis
    ttl: 30
    redis:
      url: redis://localhost:6379/0
  routes:
    report:
      cacheable: false
`

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), 0o600))

	cfg, err := NewLoader().Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-gateway", cfg.Metadata.Name)
	assert.Equal(t, ":9090", cfg.Spec.Server.Address)
	assert.Equal(t, "http://auth.local:82", cfg.Spec.Services.Auth.URL)
	assert.Equal(t, 2*time.Second, cfg.Spec.Services.Auth.Timeout.Duration())
	assert.Equal(t, "/health", cfg.Spec.Services.Transactions.HealthPath)
	assert.Equal(t, DefaultHealthPath, cfg.Spec.Services.Auth.HealthPath)

	cb := cfg.Spec.Services.Transactions.CircuitBreaker
	require.NotNil(t, cb)
	assert.Equal(t, DefaultBreakerThreshold, cb.Threshold)

	assert.Equal(t, CacheTypeRedis, cfg.Spec.Cache.Type)
	assert.Equal(t, 30*time.Second, cfg.Spec.Cache.TTL.Duration())
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Spec.Cache.Redis.KeyPrefix)

	assert.True(t, cfg.Spec.Routes.Transactions.IsCacheable())
	assert.False(t, cfg.Spec.Routes.Report.IsCacheable())
	assert.Equal(t, DefaultReportPath, cfg.Spec.Routes.Report.UpstreamPath)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load("/nonexistent/path/gateway.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_Load_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAuthServiceURL, cfg.Spec.Services.Auth.URL)
	assert.Equal(t, DefaultTransactionServiceURL, cfg.Spec.Services.Transactions.URL)
	assert.True(t, cfg.Spec.Cache.Enabled)
	assert.Equal(t, CacheTypeMemory, cfg.Spec.Cache.Type)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoader_OmittedCacheSectionEnablesMemoryCache(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader("spec:\n  server:\n    address: \":9000\"\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Spec.Cache.Enabled)
	assert.Equal(t, CacheTypeMemory, cfg.Spec.Cache.Type)
	assert.Equal(t, DefaultCacheTTL, cfg.Spec.Cache.TTL.Duration())
}

func TestLoader_LoadFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("spec: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoader_LoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("spec:\n  listeners: []\n"))
	assert.Error(t, err)
}

func TestLoader_LoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerAddress, cfg.Spec.Server.Address)
}

func TestLoader_SubstituteEnvVars(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"AUTH_URL": "http://env-auth:82",
		"EMPTY":    "",
	}
	l := &Loader{lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set variable", input: "url: ${AUTH_URL}", want: "url: http://env-auth:82"},
		{name: "default used", input: "url: ${MISSING:-http://fallback}", want: "url: http://fallback"},
		{name: "set but empty wins over default", input: "v: ${EMPTY:-x}", want: "v: "},
		{name: "missing without default", input: "v: ${MISSING}", want: "v: "},
		{name: "escaped dollar", input: "p: $${AUTH_URL}", want: "p: ${AUTH_URL}"},
		{name: "no pattern", input: "plain: text", want: "plain: text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, l.substituteEnvVars(tt.input))
		})
	}
}

func TestLoader_EnvSubstitutionInDocument(t *testing.T) {
	t.Parallel()

	l := &Loader{lookupEnv: func(k string) (string, bool) {
		if k == "TX_URL" {
			return "http://from-env:83", true
		}
		return "", false
	}}

	cfg, err := l.LoadFromReader(strings.NewReader(`
spec:
  services:
    transactions:
      url: ${TX_URL}
    auth:
      url: ${AUTH_URL:-http://default-auth:82}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:83", cfg.Spec.Services.Transactions.URL)
	assert.Equal(t, "http://default-auth:82", cfg.Spec.Services.Auth.URL)
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`5`)))
	assert.Equal(t, 5*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))

	b, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(b))
}

func TestDuration_OrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, Duration(0).OrDefault(time.Second))
	assert.Equal(t, time.Minute, Duration(time.Minute).OrDefault(time.Second))
}
