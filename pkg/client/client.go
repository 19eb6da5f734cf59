// Package client talks to the remote agistment API: paginated search,
// listing detail, the user's profile (bio, saved searches, favourites) and
// enquiries.
//
// Search fetches are never retried; the loader surfaces their failures and
// the user retries. Profile reads and writes are retried with linear
// backoff.
package client

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

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/version"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = time.Second
	maxErrorBody         = 4 << 10
)

var logger = log.ForService("client")

// ErrNotFound matches APIErrors with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Options configure a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.agist.me/v1.
	BaseURL string

	// AccessToken is the identity provider token sent as a bearer token.
	// TokenSource takes precedence when set.
	AccessToken string
	TokenSource oauth2.TokenSource

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64

	// RetryAttempts and RetryBackoff shape profile retries: attempt n waits
	// RetryBackoff*n before attempt n+1. Zero values mean 3 and 1s.
	RetryAttempts int
	RetryBackoff  time.Duration

	// Transport replaces http.DefaultTransport, for tests.
	Transport http.RoundTripper
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https: %q", opts.BaseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	ts := opts.TokenSource
	if ts == nil && opts.AccessToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})
	}
	if ts != nil {
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		base:     base,
		http:     &http.Client{Transport: transport, Timeout: timeout},
		attempts: opts.RetryAttempts,
		backoff:  opts.RetryBackoff,
		sleep:    sleepContext,
	}
	if c.attempts <= 0 {
		c.attempts = defaultRetryAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultRetryBackoff
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// do sends one request. body is marshaled as JSON when non-nil, and a 2xx
// response is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	// path is already escaped.
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("failed to close response body: %v", err)
		}
	}()
	logger.Debugf("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// withRetry runs fn until it succeeds, fails permanently or runs out of
// attempts.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !retryable(ctx, lastErr) {
			return lastErr
		}
		if attempt == c.attempts {
			break
		}
		wait := c.backoff * time.Duration(attempt)
		logger.With("op", op, "attempt", attempt).Warnf("retrying in %s: %v", wait, lastErr)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.attempts, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// http.Client reports transport failures as *url.Error.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
