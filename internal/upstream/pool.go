package upstream

import (
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/txgw/internal/config"
)

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        config.DefaultMaxIdleConns,
		MaxIdleConnsPerHost: config.DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     config.DefaultIdleConnTimeout,
		DialTimeout:         5 * time.Second,
	}
}

// PoolConfigFromConfig converts the upstream configuration section.
func PoolConfigFromConfig(cfg config.UpstreamConfig) PoolConfig {
	pc := DefaultPoolConfig()
	if cfg.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		pc.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.MaxConnsPerHost > 0 {
		pc.MaxConnsPerHost = cfg.MaxConnsPerHost
	}
	pc.IdleConnTimeout = cfg.IdleConnTimeout.OrDefault(pc.IdleConnTimeout)
	return pc
}

// ConnectionPool owns the transport shared by every upstream client.
type ConnectionPool struct {
	config    PoolConfig
	transport *http.Transport
	client    *http.Client
}

// NewConnectionPool creates a new connection pool.
func NewConnectionPool(cfg PoolConfig) *ConnectionPool {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
	}

	return &ConnectionPool{
		config:    cfg,
		transport: transport,
		// Deadlines are per call, through the request context.
		client: &http.Client{Transport: transport, CheckRedirect: noRedirect},
	}
}

// Client returns the pooled HTTP client.
func (p *ConnectionPool) Client() *http.Client {
	return p.client
}

// CloseIdleConnections closes idle connections.
func (p *ConnectionPool) CloseIdleConnections() {
	p.transport.CloseIdleConnections()
}
