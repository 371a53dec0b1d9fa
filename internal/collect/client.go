package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/claimroot/internal/worker"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Twitter API v2 root
	DefaultBaseURL = "https://api.twitter.com/2"

	// maxResults is the largest page the API serves
	maxResults = 100
	// maxPages bounds every paginated walk, even when no page limit is set
	maxPages = 500
	// maxAttempts per request, including the first
	maxAttempts = 3
	// maxBodyBytes caps a single API response
	maxBodyBytes = 8 << 20
)

// ErrNoBearerToken is returned when the client has no API credentials
var ErrNoBearerToken = errors.New("twitter bearer token not set")

// retrySleepFunc is swapped out in tests
var retrySleepFunc = time.Sleep

// StatusError is a non-2xx API response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// transportError is a request that never produced a response
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetch: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Options configures a Client
type Options struct {
	BaseURL     string
	BearerToken string
	UserAgent   string
	HTTPClient  *http.Client
	Limiter     *worker.Limiter
	PageLimit   int // Pages per endpoint, 0 = until exhausted
	Logger      *zap.Logger
}

// Client reads conversation engagement from the Twitter API v2
type Client struct {
	baseURL    string
	bearer     string
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
	pageLimit  int
	logger     *zap.Logger
}

// NewClient creates a Client
func NewClient(opts Options) (*Client, error) {
	if opts.BearerToken == "" {
		return nil, ErrNoBearerToken
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		bearer:     opts.BearerToken,
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		pageLimit:  opts.PageLimit,
		logger:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = worker.NewLimiter(0, 1)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c, nil
}

// getJSON fetches endpoint into out, retrying rate limits, server errors
// and transport failures
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	var retryAfter time.Duration

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Debug("Retrying request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			retrySleepFunc(backoff)
		}

		if err := c.throttle(ctx, endpoint, retryAfter); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		var resp *http.Response
		resp, retryAfter, lastErr = c.get(ctx, endpoint)
		if lastErr == nil {
			return decodeBody(resp, out)
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// throttle takes a limiter token for endpoint. Requests that have to queue,
// or that carry a server-requested delay, are logged.
func (c *Client) throttle(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if retryAfter <= 0 && c.limiter.Allow(endpoint) {
		return nil
	}
	c.logger.Debug("Throttled request",
		zap.String("endpoint", endpoint),
		zap.Duration("retry_after", retryAfter))
	return c.limiter.WaitWithDelay(ctx, endpoint, retryAfter)
}

// get performs one request. On a non-2xx status it returns the server's
// Retry-After hint alongside the StatusError.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	return resp, 0, nil
}

func decodeBody(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isRetryable reports whether a failed request may succeed if repeated
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	var te *transportError
	return errors.As(err, &te)
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	const ceiling = 15 * time.Minute
	if d := time.Duration(secs) * time.Second; d < ceiling {
		return d
	}
	return ceiling
}

// endpoint joins the base URL, a path and query parameters
func (c *Client) endpoint(path string, query url.Values) string {
	return c.baseURL + path + "?" + query.Encode()
}
