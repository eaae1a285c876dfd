// Package merchant implements the HTTP client for the remote merchant
// payments API and the classification of its outcomes.
package merchant

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"merchantbot/internal/metrics"
)

const (
	apiKeyHeader   = "X-API-Key"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// APIError is a non-2xx response from the merchant API. Payload is the
// decoded JSON body when the body is valid JSON, the raw text otherwise.
type APIError struct {
	Status  int
	Payload any
	URL     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("merchant api error %d for %s: %v", e.Status, e.URL, e.Payload)
}

// PayloadText renders the error payload for user-facing display.
func (e *APIError) PayloadText() string {
	switch p := e.Payload.(type) {
	case string:
		return p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Sprintf("%v", p)
		}
		return string(data)
	}
}

// IsUnavailable reports whether an error from the client should be shown to
// the operator as a generic "temporarily unavailable": any transport failure
// (DNS, TLS, timeout, refused connection) or a 5xx remote error. 4xx errors
// are specific, surfaceable failures and return false.
func IsUnavailable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return err != nil
}

// Config configures the merchant API client.
type Config struct {
	BaseURL string
	Timeout time.Duration // default timeout when the context has no deadline
	// InsecureSkipVerify disables TLS certificate verification. Weak mode
	// for private deployments with self-signed certificates.
	InsecureSkipVerify bool
}

// Client issues authenticated calls to the merchant payments API. One call,
// one report: there is no automatic retry.
type Client struct {
	base    string
	timeout time.Duration
	httpc   *http.Client
	logger  *slog.Logger
}

// New creates a merchant API client with a pooled transport.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		logger.Warn("merchant api TLS certificate verification disabled")
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/") + "/",
		timeout: timeout,
		httpc:   &http.Client{Transport: transport},
		logger:  logger,
	}
}

// Get issues an authenticated GET. Query parameters are URL-encoded;
// repeated keys become repeated parameters.
func (c *Client) Get(ctx context.Context, path, credential string, query url.Values) (any, error) {
	return c.do(ctx, http.MethodGet, path, credential, query, nil)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path, credential string, body any) (any, error) {
	return c.do(ctx, http.MethodPost, path, credential, nil, body)
}

func (c *Client) do(ctx context.Context, method, path, credential string, query url.Values, body any) (any, error) {
	target := c.base + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	// Default per-call upper bound unless the call site set a tighter one.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	started := time.Now()
	metrics.APIRequestsTotal.Inc()

	resp, err := c.httpc.Do(req)
	elapsed := time.Since(started)
	metrics.APILatency.Observe(elapsed.Seconds())
	if err != nil {
		metrics.APIErrorsTotal.Inc()
		c.logger.Error("merchant api call failed",
			"method", method,
			"url", target,
			"elapsed_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.APIErrorsTotal.Inc()
		c.logger.Error("merchant api body read failed",
			"method", method,
			"url", target,
			"status", resp.StatusCode,
			"elapsed_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}

	payload := decodeBody(raw)

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		c.logger.Info("merchant api call",
			"method", method,
			"url", target,
			"status", resp.StatusCode,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return payload, nil
	}

	metrics.APIErrorsTotal.Inc()
	c.logger.Warn("merchant api call rejected",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"elapsed_ms", elapsed.Milliseconds(),
		"payload_len", len(raw),
	)
	return nil, &APIError{Status: resp.StatusCode, Payload: payload, URL: target}
}

// decodeBody parses the body as JSON, falling back to the raw text when the
// body is not valid JSON.
func decodeBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
