package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/upstream"
)

var tracer = otel.Tracer("txgw/auth")

// Authentication service endpoints.
const (
	VerifyPath   = "/verify"
	LoginPath    = "/login"
	RegisterPath = "/register"
)

// Caller is the subset of the upstream client the delegate needs.
type Caller interface {
	PostJSON(ctx context.Context, path string, v any, header http.Header) (*upstream.Response, error)
	PostForm(ctx context.Context, path string, form url.Values, header http.Header) (*upstream.Response, error)
}

// LoginRequest carries the credentials of a login.
type LoginRequest struct {
	Username string
	Password string
}

// RegisterRequest is the registration payload. Optional names are omitted
// when empty.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Delegate forwards authentication work to the authentication service.
type Delegate struct {
	client Caller
	logger observability.Logger
}

// NewDelegate creates a delegate that calls the authentication service
// through client.
func NewDelegate(client Caller, logger observability.Logger) *Delegate {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Delegate{client: client, logger: logger}
}

// Verify confirms token with the authentication service.
//
// A 4xx answer yields an *AuthError carrying the origin status and detail.
// Any other failure is returned as the upstream error unchanged.
func (d *Delegate) Verify(ctx context.Context, token string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "auth.Verify", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	m := GetMetrics()
	start := time.Now()
	defer func() {
		m.verificationDuration.Observe(time.Since(start).Seconds())
	}()

	if token == "" {
		m.verificationsTotal.WithLabelValues(resultInvalid).Inc()
		span.SetStatus(codes.Error, "no credentials")
		return nil, ErrNoCredentials
	}

	resp, err := d.client.PostJSON(ctx, VerifyPath, map[string]string{"token": token}, http.Header{
		upstream.HeaderAuthorization: []string{"Bearer " + token},
	})
	if err != nil {
		var rejected *upstream.RejectedError
		if errors.As(err, &rejected) && rejected.StatusCode >= 400 && rejected.StatusCode < 500 {
			m.verificationsTotal.WithLabelValues(resultInvalid).Inc()
			span.SetAttributes(attribute.Int("auth.origin_status", rejected.StatusCode))
			span.SetStatus(codes.Error, "token rejected")
			d.logger.WithContext(ctx).Debug("token rejected by authentication service",
				observability.Int("status", rejected.StatusCode))
			return nil, &AuthError{
				StatusCode: rejected.StatusCode,
				Detail:     rejected.Detail(),
				Cause:      err,
			}
		}

		m.verificationsTotal.WithLabelValues(resultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return nil, err
	}

	id := identityFromVerifyBody(token, resp.Body)
	m.verificationsTotal.WithLabelValues(resultValid).Inc()
	span.SetAttributes(attribute.String("auth.subject", id.Subject))
	return id, nil
}

// Login forwards credentials form-encoded and returns the service's answer.
func (d *Delegate) Login(ctx context.Context, req LoginRequest) (*upstream.Response, error) {
	ctx, span := tracer.Start(ctx, "auth.Login", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	resp, err := d.client.PostForm(ctx, LoginPath, url.Values{
		"username": {req.Username},
		"password": {req.Password},
	}, nil)
	d.recordForward(span, "login", err)
	return resp, err
}

// Register forwards the registration payload and returns the service's
// answer.
func (d *Delegate) Register(ctx context.Context, req RegisterRequest) (*upstream.Response, error) {
	ctx, span := tracer.Start(ctx, "auth.Register", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	resp, err := d.client.PostJSON(ctx, RegisterPath, req, nil)
	d.recordForward(span, "register", err)
	return resp, err
}

func (d *Delegate) recordForward(span trace.Span, op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	GetMetrics().forwardsTotal.WithLabelValues(op, result).Inc()
}
