// Package client provides HTTP access to the upstream log store API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/auth"
	"github.com/loglens/loglens-mcp-server/internal/config"
	"github.com/loglens/loglens-mcp-server/internal/security"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// Authenticator is the interface for adding authentication to requests
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// Client is an HTTP client for the upstream log store API
type Client struct {
	httpClient    *http.Client
	config        *config.Config
	logger        *zap.Logger
	rateLimiter   *rate.Limiter
	authenticator Authenticator
	version       string
}

// New creates a new API client
func New(cfg *config.Config, logger *zap.Logger, version string) (*Client, error) {
	authenticator, err := auth.New(cfg.APIKey, cfg.IAMURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// Only disable TLS verification if explicitly configured (for testing environments)
	if !cfg.TLSVerify {
		tlsConfig.InsecureSkipVerify = true
		logger.Warn("TLS certificate verification is DISABLED - this is insecure and should only be used for testing",
			zap.String("service_url", cfg.ServiceURL),
		)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	var rateLimiter *rate.Limiter
	if cfg.EnableRateLimit {
		rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)
	}

	if version == "" {
		version = "dev"
	}

	return &Client{
		httpClient:    httpClient,
		config:        cfg,
		logger:        logger,
		rateLimiter:   rateLimiter,
		authenticator: authenticator,
		version:       version,
	}, nil
}

// Request represents an HTTP request
type Request struct {
	Method    string
	Path      string
	Query     map[string]string
	Body      interface{}
	Headers   map[string]string
	RequestID string // Optional client-provided request ID for idempotency
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// FetchParams select the page of records to retrieve. The upstream store is
// responsible for time-range filtering; the analysis engine receives the
// page as-is.
type FetchParams struct {
	Start     time.Time
	End       time.Time
	Query     string // free-text or attribute filter, passed through verbatim
	Limit     int
	PageToken string
}

// TimeSpan is the width of the requested window, used for density math.
func (p FetchParams) TimeSpan() time.Duration {
	if p.End.IsZero() || p.Start.IsZero() || !p.End.After(p.Start) {
		return 0
	}
	return p.End.Sub(p.Start)
}

// fetchResponse is the wire shape of one page of log records.
type fetchResponse struct {
	Records []struct {
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"records"`
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token"`
}

// FetchPage retrieves one page of log records for the given window and
// returns it as an analysis result set.
func (c *Client) FetchPage(ctx context.Context, params FetchParams) (analysis.ResultSet, error) {
	limit := params.Limit
	if limit <= 0 || limit > c.config.MaxPageSize {
		limit = c.config.MaxPageSize
	}

	query := map[string]string{
		"limit": strconv.Itoa(limit),
	}
	if !params.Start.IsZero() {
		query["start"] = params.Start.UTC().Format(time.RFC3339)
	}
	if !params.End.IsZero() {
		query["end"] = params.End.UTC().Format(time.RFC3339)
	}
	if params.Query != "" {
		query["query"] = params.Query
	}
	if params.PageToken != "" {
		query["page_token"] = params.PageToken
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	resp, err := c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/v1/logs",
		Query:  query,
	})
	if err != nil {
		return analysis.ResultSet{}, fmt.Errorf("log fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return analysis.ResultSet{}, fmt.Errorf("log fetch returned HTTP %d: %s", resp.StatusCode, string(resp.Body))
	}

	var page fetchResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return analysis.ResultSet{}, fmt.Errorf("failed to decode log page: %w", err)
	}

	rs := analysis.ResultSet{
		Records:       make([]analysis.Record, 0, len(page.Records)),
		HasMore:       page.HasMore,
		NextPageToken: page.NextPageToken,
	}
	for _, rec := range page.Records {
		rs.Records = append(rs.Records, analysis.Record{ID: rec.ID, Attributes: rec.Attributes})
	}

	c.logger.Debug("Fetched log page",
		zap.Int("records", len(rs.Records)),
		zap.Bool("has_more", rs.HasMore),
	)
	return rs, nil
}

// Do executes an HTTP request with retry logic
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	var lastResp *Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			waitTime := c.calculateRetryWait(attempt, lastResp)

			c.logger.Debug("Retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", waitTime),
			)

			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			lastResp = nil
			// Retry on network errors
			if isRetryable(err) {
				continue
			}
			return nil, err
		}

		// Retry on specific HTTP status codes
		if shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(resp.Body))
			lastResp = resp
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateRetryWait picks the wait before the given retry attempt. A 429
// response's Retry-After header wins over exponential backoff; both get up
// to 25% jitter so concurrent clients do not retry in lockstep.
func (c *Client) calculateRetryWait(attempt int, lastResp *Response) time.Duration {
	if lastResp != nil && lastResp.StatusCode == http.StatusTooManyRequests {
		if wait := c.parseRetryAfter(lastResp.Headers); wait > 0 {
			if wait > c.config.RetryWaitMax {
				wait = c.config.RetryWaitMax
			}
			return wait + retryJitter(wait)
		}
	}

	// Exponential backoff with overflow protection
	shift := min(attempt-1, 30)
	wait := c.config.RetryWaitMin * time.Duration(1<<shift)
	if wait > c.config.RetryWaitMax {
		wait = c.config.RetryWaitMax
	}
	return wait + retryJitter(wait)
}

// parseRetryAfter reads a delta-seconds Retry-After header, capped at one
// hour. Zero, negative or malformed values are ignored.
func (c *Client) parseRetryAfter(headers http.Header) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Duration(seconds * float64(time.Second))
	if wait > time.Hour {
		wait = time.Hour
	}
	return wait
}

// retryJitter returns a random duration in [0, base/4].
func retryJitter(base time.Duration) time.Duration {
	quarter := int64(base / 4)
	if quarter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(quarter + 1))
}

func (c *Client) doRequest(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracing.FetchSpan(ctx, req.Method, req.Path)
	defer span.End()

	// Apply rate limiting
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	// Build URL with proper encoding
	requestURL := fmt.Sprintf("%s%s", c.config.ServiceURL, req.Path)
	if len(req.Query) > 0 {
		params := url.Values{}
		for k, v := range req.Query {
			params.Add(k, v)
		}
		requestURL = fmt.Sprintf("%s?%s", requestURL, params.Encode())
	}

	// Prepare body
	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", fmt.Sprintf("loglens-mcp-server/%s", c.version))

	// Add idempotency key if provided
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
		if req.Method == "POST" || req.Method == "PUT" {
			httpReq.Header.Set("Idempotency-Key", req.RequestID)
		}
	}

	// Bearer token auth
	if err := c.authenticator.Authenticate(httpReq); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("Executing HTTP request",
		zap.String("method", req.Method),
		zap.String("url", security.MaskURL(requestURL)),
	)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		tracing.RecordError(span, err)
		c.logger.Error("HTTP request failed",
			zap.String("error", security.SanitizeError(err)),
			zap.String("method", req.Method),
			zap.String("url", security.MaskURL(requestURL)),
			zap.Duration("duration", duration),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("url", security.MaskURL(requestURL)),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.Int("response_size", len(body)),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// isRetryable determines if an error is retryable (transient network errors)
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var syscallErr *net.OpError
	if errors.As(err, &syscallErr) {
		if errors.Is(syscallErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(syscallErr.Err, syscall.ECONNRESET) ||
			errors.Is(syscallErr.Err, syscall.ENETUNREACH) ||
			errors.Is(syscallErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(syscallErr.Err, syscall.ETIMEDOUT) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	// Check error message for common transient patterns
	errStr := err.Error()
	transientPatterns := []string{
		"connection reset",
		"connection refused",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"TLS handshake timeout",
		"EOF",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(pattern)) {
			return true
		}
	}

	// Default: don't retry unknown errors to avoid retrying permanent failures
	return false
}

// shouldRetry determines if an HTTP status code should trigger a retry
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Close closes the client and releases resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
