package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/config"
	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/util"
)

var tracer = otel.Tracer("txgw/upstream")

// Header names used on outbound calls.
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// maxResponseBytes bounds how much of an upstream body is buffered.
const maxResponseBytes = 10 << 20

// Response is a successful (2xx) upstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response content type, defaulting to JSON.
func (r *Response) ContentType() string {
	if ct := r.Header.Get(HeaderContentType); ct != "" {
		return ct
	}
	return ContentTypeJSON
}

// Request describes a single upstream call.
type Request struct {
	Method      string
	Path        string
	Body        []byte
	ContentType string
	Header      http.Header
}

// Client calls one backend service.
type Client struct {
	service    string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *CircuitBreaker
	logger     observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client, normally the shared pool's.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCircuitBreaker enables fail-fast behaviour for the service.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient creates a client for the named service.
func NewClient(service, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{CheckRedirect: noRedirect},
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from a service configuration section.
func NewClientFromConfig(
	service string,
	cfg config.ServiceConfig,
	pool *ConnectionPool,
	logger observability.Logger,
) *Client {
	opts := []Option{WithLogger(logger)}
	if pool != nil {
		opts = append(opts, WithHTTPClient(pool.Client()))
	}
	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		opts = append(opts, WithCircuitBreaker(
			NewCircuitBreaker(service, cb.Threshold, cb.Timeout.Duration(), logger),
		))
	}
	return NewClient(service, cfg.URL, cfg.Timeout.OrDefault(config.DefaultServiceTimeout), opts...)
}

// Service returns the service name.
func (c *Client) Service() string {
	return c.service
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON posts v encoded as JSON. A []byte or json.RawMessage is sent as is.
func (c *Client) PostJSON(ctx context.Context, path string, v any, header http.Header) (*Response, error) {
	var body []byte
	switch b := v.(type) {
	case []byte:
		body = b
	case json.RawMessage:
		body = b
	default:
		var err error
		if body, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.service, err)
		}
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		ContentType: ContentTypeJSON,
		Header:      header,
	})
}

// PostForm posts form-encoded values.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        []byte(form.Encode()),
		ContentType: ContentTypeForm,
		Header:      header,
	})
}

// Do performs one call. The error, when non-nil, is a *RejectedError or an
// *UnreachableError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "upstream."+c.service,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.service", c.service),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	var (
		resp *Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(func() (*Response, error) {
			return c.roundTrip(ctx, req)
		})
		if err != nil && !isResultError(err) {
			err = &UnreachableError{Service: c.service, Op: req.Method + " " + req.Path, Cause: err}
		}
	} else {
		resp, err = c.roundTrip(ctx, req)
	}

	o := outcome(err)
	m := GetMetrics()
	m.requestsTotal.WithLabelValues(c.service, o).Inc()
	m.requestDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())

	span.SetAttributes(attribute.String("upstream.outcome", o))
	switch o {
	case "success":
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	case "rejected":
		span.SetStatus(codes.Error, o)
	default:
		span.SetStatus(codes.Error, o)
		c.logger.WithContext(ctx).Warn("upstream call failed",
			observability.String("service", c.service),
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.String("outcome", o),
			observability.Duration("duration", time.Since(start)),
			observability.Error(err),
		)
	}

	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req Request) (*Response, error) {
	op := req.Method + " " + req.Path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, util.JoinURL(c.baseURL, req.Path), body)
	if err != nil {
		return nil, &UnreachableError{Service: c.service, Op: op, Cause: err}
	}

	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set(HeaderContentType, req.ContentType)
	}
	httpReq.Header.Set("Accept", ContentTypeJSON)
	if id := util.RequestIDFromContext(ctx); id != "" && httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, id)
	}
	observability.InjectTraceContext(ctx, httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = util.NewTimeoutError(op, c.timeout, err)
		}
		return nil, &UnreachableError{Service: c.service, Op: op, Cause: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			err = util.NewTimeoutError(op, c.timeout, err)
		}
		return nil, &UnreachableError{Service: c.service, Op: op, Cause: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &RejectedError{
			Service:     c.service,
			StatusCode:  httpResp.StatusCode,
			Body:        data,
			ContentType: httpResp.Header.Get(HeaderContentType),
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}

// noRedirect hands 3xx answers back to the caller instead of following them.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func isResultError(err error) bool {
	var rejected *RejectedError
	var unreachable *UnreachableError
	return errors.As(err, &rejected) || errors.As(err, &unreachable)
}
