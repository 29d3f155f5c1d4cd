package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Probe checks one dependency.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// DependencyCheck is a Probe with its own timeout.
type DependencyCheck struct {
	name    string
	timeout time.Duration
	checkFn func(ctx context.Context) error
}

// NewDependencyCheck creates a dependency check. A non-positive timeout
// leaves the deadline to the aggregator.
func NewDependencyCheck(name string, timeout time.Duration, checkFn func(ctx context.Context) error) *DependencyCheck {
	return &DependencyCheck{
		name:    name,
		timeout: timeout,
		checkFn: checkFn,
	}
}

// Name returns the name of the dependency.
func (d *DependencyCheck) Name() string {
	return d.name
}

// Timeout returns the probe's own timeout.
func (d *DependencyCheck) Timeout() time.Duration {
	return d.timeout
}

// Check runs the probe.
func (d *DependencyCheck) Check(ctx context.Context) error {
	return d.checkFn(ctx)
}

// HTTPHealthCheck probes url with GET and expects a 2xx answer. A nil
// client uses http.DefaultClient; the deadline comes from the context.
func HTTPHealthCheck(name, url string, timeout time.Duration, client *http.Client) *DependencyCheck {
	if client == nil {
		client = http.DefaultClient
	}
	return NewDependencyCheck(name, timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
		}
		return nil
	})
}
