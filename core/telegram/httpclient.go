package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/m3rciful/couponbot/core/logger"
	"github.com/m3rciful/couponbot/core/telegram/netutil"
)

var (
	errBodyNotReplayable = errors.New("telegram: request body cannot be replayed")

	tokenInPath = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+/`)
)

// HTTPOptions tunes the client used for Bot API calls. Zero values select defaults.
type HTTPOptions struct {
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	// Timeout bounds a whole request; long polling adds its own timeout on top.
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

func (o HTTPOptions) withDefaults(pollTimeout time.Duration) HTTPOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 5 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	o.Timeout += pollTimeout
	o.ResponseTimeout += pollTimeout
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// NewHTTPClient returns a client that retries requests failing to connect.
// pollTimeout widens the deadlines so getUpdates can hold the connection.
func NewHTTPClient(opts HTTPOptions, pollTimeout time.Duration) *http.Client {
	opts = opts.withDefaults(pollTimeout)
	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryTransport{
			base:    base,
			retries: opts.Retries,
			backoff: opts.RetryBackoff,
		},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, t.backoff*time.Duration(attempt)) {
				return nil, ctx.Err()
			}
			logger.Debug(ctx, logger.CompTGWire, "http.retry",
				slog.Int("attempts", attempt),
				slog.String("path", req.URL.Path),
				slog.String("err", redactErr(lastErr)),
			)
		}

		next, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}
		resp, err := t.base.RoundTrip(next)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) {
			break
		}
	}
	return nil, lastErr
}

// rewind returns req for the first attempt and a clone with a fresh body after.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func redactErr(err error) string {
	if err == nil {
		return ""
	}
	return logger.SanitizeLimit(tokenInPath.ReplaceAllString(err.Error(), "/bot<redacted>/"), 256)
}
