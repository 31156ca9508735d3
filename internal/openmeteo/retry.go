// ABOUTME: Bounded retry combinator wrapping one upstream call.
// ABOUTME: At most one retry per call: after a backoff on 429, immediately on 5xx.

package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/weather-travel/internal/toolerr"
)

const (
	// DefaultBackoff is the wait before retrying a rate-limited call.
	DefaultBackoff = time.Second
	// DefaultMaxRetryAfter caps how long a Retry-After header may make us wait.
	DefaultMaxRetryAfter = 5 * time.Second

	maxErrorBody = 4 << 10
)

// Caller performs one upstream attempt. It is the seam tests use to replace
// real network calls.
type Caller func(ctx context.Context) (*http.Response, error)

// RetryPolicy retries a call at most once.
type RetryPolicy struct {
	Backoff       time.Duration
	MaxRetryAfter time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Do runs call and returns a 2xx response whose body the caller must close.
// Any other outcome is returned as a *toolerr.Error.
func (p RetryPolicy) Do(ctx context.Context, service string, call Caller) (*http.Response, error) {
	resp, err := call(ctx)
	if err != nil {
		return nil, transportError(ctx, service, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := p.backoffFor(resp)
		discard(resp)
		p.logger().Warn("rate limited by upstream, backing off",
			"service", service,
			"wait", wait,
		)
		if err := p.sleep(ctx, wait); err != nil {
			return nil, toolerr.Wrap(toolerr.Upstream, err, "%s request cancelled during backoff", service)
		}
		return p.retry(ctx, service, call)

	case resp.StatusCode >= http.StatusInternalServerError:
		discard(resp)
		p.logger().Warn("upstream server error, retrying",
			"service", service,
			"status", resp.StatusCode,
		)
		return p.retry(ctx, service, call)
	}

	return checkStatus(service, resp)
}

// retry is the second and last attempt.
func (p RetryPolicy) retry(ctx context.Context, service string, call Caller) (*http.Response, error) {
	resp, err := call(ctx)
	if err != nil {
		return nil, transportError(ctx, service, err)
	}
	return checkStatus(service, resp)
}

func (p RetryPolicy) backoffFor(resp *http.Response) time.Duration {
	if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d <= p.maxRetryAfter() {
				return d
			}
		}
	}
	return p.Backoff
}

func (p RetryPolicy) maxRetryAfter() time.Duration {
	if p.MaxRetryAfter > 0 {
		return p.MaxRetryAfter
	}
	return DefaultMaxRetryAfter
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// checkStatus passes 2xx responses through and classifies everything else.
func checkStatus(service string, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	reason := readReason(resp)
	status := resp.StatusCode

	var kind toolerr.Kind
	var msg string
	switch {
	case status == http.StatusTooManyRequests:
		kind, msg = toolerr.RateLimited, "rate limit exceeded, please try again later"
	case status >= http.StatusInternalServerError:
		kind, msg = toolerr.Upstream, fmt.Sprintf("upstream error: HTTP %d", status)
	case status == http.StatusNotFound || status == http.StatusGone:
		kind, msg = toolerr.NotFound, fmt.Sprintf("upstream resource not found: HTTP %d", status)
	default:
		kind, msg = toolerr.Validation, fmt.Sprintf("upstream rejected request: HTTP %d", status)
	}
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return nil, &toolerr.Error{Kind: kind, Message: service + ": " + msg, Status: status}
}

// transportError classifies a failed attempt that produced no response.
func transportError(ctx context.Context, service string, err error) error {
	if ctx.Err() != nil {
		return toolerr.Wrap(toolerr.Upstream, err, "%s request cancelled", service)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return toolerr.Wrap(toolerr.Upstream, err, "%s request timed out", service)
	}
	return toolerr.Wrap(toolerr.Upstream, err, "network error contacting %s", service)
}

// readReason extracts Open-Meteo's {"error":true,"reason":"..."} message and
// closes the body.
func readReason(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &payload) == nil {
		return payload.Reason
	}
	return ""
}

// discard drains and closes a response that will not be used.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
