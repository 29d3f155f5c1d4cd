package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const readHeaderTimeout = 10 * time.Second

// Gateway serves the handler chain on the configured address.
type Gateway struct {
	config    *config.GatewayConfig
	handler   http.Handler
	logger    observability.Logger
	server    *http.Server
	listener  net.Listener
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
	serveDone chan struct{}
	serveErr  error

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithShutdownTimeout overrides the configured shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.shutdownTimeout = timeout
		}
	}
}

// New creates a gateway serving handler.
func New(cfg *config.GatewayConfig, handler http.Handler, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	g := &Gateway{
		config:          cfg,
		handler:         handler,
		logger:          observability.NopLogger(),
		shutdownTimeout: cfg.Spec.Server.ShutdownTimeout.OrDefault(config.DefaultShutdownTimeout),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.Store(int32(StateStopped))
	return g, nil
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	srv := g.config.Spec.Server
	addr := srv.Address
	if addr == "" {
		addr = config.DefaultServerAddress
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           g.handler,
		ReadTimeout:       srv.ReadTimeout.OrDefault(config.DefaultReadTimeout),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      srv.WriteTimeout.OrDefault(config.DefaultWriteTimeout),
		IdleTimeout:       srv.IdleTimeout.OrDefault(config.DefaultIdleTimeout),
		MaxHeaderBytes:    1 << 20,
	}

	g.mu.Lock()
	g.server = server
	g.listener = ln
	g.serveDone = make(chan struct{})
	g.serveErr = nil
	g.startTime = time.Now()
	g.mu.Unlock()

	go g.serve(server, ln)

	g.state.Store(int32(StateRunning))
	g.logger.Info("gateway started",
		observability.String("name", g.config.Metadata.Name),
		observability.String("address", ln.Addr().String()),
	)
	return nil
}

func (g *Gateway) serve(server *http.Server, ln net.Listener) {
	err := server.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		g.logger.Error("server error", observability.Error(err))
	} else {
		err = nil
	}

	g.mu.Lock()
	g.serveErr = err
	close(g.serveDone)
	g.mu.Unlock()
}

// Stop stops accepting connections and drains in-flight requests until ctx
// or the shutdown timeout expires, whichever comes first.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}
	defer g.state.Store(int32(StateStopped))

	g.logger.Info("stopping gateway", observability.String("name", g.config.Metadata.Name))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	g.mu.RLock()
	server, done := g.server, g.serveDone
	g.mu.RUnlock()

	if err := server.Shutdown(ctx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}
	<-done

	g.logger.Info("gateway stopped", observability.String("name", g.config.Metadata.Name))
	return nil
}

// Done is closed when the server stops serving. It is nil before Start.
func (g *Gateway) Done() <-chan struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.serveDone
}

// Err returns the error that ended serving, if any.
func (g *Gateway) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.serveErr
}

// Addr returns the bound listener address, or "" before Start.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.startTime.IsZero() || !g.IsRunning() {
		return 0
	}
	return time.Since(g.startTime)
}
