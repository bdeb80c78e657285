package internal

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

// TokenSource supplies a valid bearer token for authenticated requests.
// A nil TokenSource marks the session anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Request describes one API call. Exactly one of Form and JSON may be set;
// both nil means no body.
type Request struct {
	Method string
	// Path is the endpoint path, e.g. "/r/golang/about".
	Path string
	// Form, when set, is sent URL-encoded.
	Form url.Values
	// JSON, when set, is sent as a raw JSON body.
	JSON []byte
	// Query holds extra query parameters.
	Query url.Values
}

// Client dispatches API calls: it resolves a token when the session is
// authenticated, attaches headers, performs the round trip, and maps the
// status code onto the error taxonomy. Every entity operation goes through
// Do; nothing bypasses it.
type Client struct {
	client    *http.Client
	oauthURL  *url.URL
	publicURL *url.URL
	tokens    TokenSource
	userAgent string
	logger    *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching the
// server.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	secondsPerMinute         = 60.0
	parseFloatBitSize        = 64
)

// NewHTTPClient returns an http.Client with the minimum TLS version pinned
// to 1.2. The platform's TLS defaults cannot be assumed modern, so the
// floor is set explicitly.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// NewClient returns a dispatcher. tokens may be nil for anonymous sessions;
// such sessions are routed to publicURL and carry no Authorization header.
func NewClient(httpClient *http.Client, tokens TokenSource, oauthURL, publicURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedOAuth, err := url.Parse(oauthURL)
	if err != nil {
		return nil, &pkgerrs.StatusError{Err: fmt.Errorf("failed to parse oauth base URL: %w", err)}
	}
	parsedPublic, err := url.Parse(publicURL)
	if err != nil {
		return nil, &pkgerrs.StatusError{Err: fmt.Errorf("failed to parse public base URL: %w", err)}
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		oauthURL:  parsedOAuth,
		publicURL: parsedPublic,
		tokens:    tokens,
		userAgent: userAgent,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.tokens != nil
}

// Do performs one API call and returns the parsed response body. Status
// codes map onto the taxonomy: 404 NotFoundError, 403 UnauthorisedError,
// any other non-200 StatusError. An unknown HTTP method is a programmer
// error and fails before any network activity.
func (c *Client) Do(ctx context.Context, req *Request) (gjson.Result, error) {
	switch req.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return gjson.Result{}, &pkgerrs.ArgumentError{
			Name:    "method",
			Message: fmt.Sprintf("%s is not a recognised HTTP method", req.Method),
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}

	if err := c.waitForRateLimit(ctx); err != nil {
		return gjson.Result{}, &pkgerrs.StatusError{Err: err}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return gjson.Result{}, &pkgerrs.StatusError{Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &pkgerrs.StatusError{StatusCode: resp.StatusCode, Err: err}
	}

	if c.logger != nil {
		c.logger.Debug("api call",
			"method", req.Method,
			"path", req.Path,
			"status", resp.StatusCode,
		)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if !gjson.ValidBytes(body) {
			return gjson.Result{}, &pkgerrs.StatusError{
				StatusCode: resp.StatusCode,
				Message:    "malformed response body",
			}
		}
		return gjson.ParseBytes(body), nil
	case http.StatusNotFound:
		return gjson.Result{}, &pkgerrs.NotFoundError{}
	case http.StatusForbidden:
		return gjson.Result{}, &pkgerrs.UnauthorisedError{}
	default:
		return gjson.Result{}, &pkgerrs.StatusError{StatusCode: resp.StatusCode}
	}
}

// newRequest builds the http.Request: base URL per authentication state,
// body encoding per the populated field, then headers.
func (c *Client) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	base := c.publicURL
	if c.Authenticated() {
		base = c.oauthURL
	}

	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		body = strings.NewReader(string(req.JSON))
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.StatusError{Err: err}
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if c.Authenticated() {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "bearer "+token)
	}

	return httpReq, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / secondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, parseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, parseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
