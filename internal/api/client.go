// Package api is the console's client for the Contract Analyzer REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"contractanalyzer/internal/config"
	"contractanalyzer/internal/utils"
)

const tracerName = "contractanalyzer/internal/api"

// Error is a non-2xx response, or a 2xx response carrying an "error" field.
// Message is the server's error text when it sent one.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	retry         utils.RetryConfig
	logger        *zap.Logger
	tracer        trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetry overrides the retry policy for reads.
func WithRetry(rc utils.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// New creates a client from the API section of the configuration.
func New(cfg *config.Config, opts ...Option) *Client {
	retry := utils.DefaultRetryConfig()
	retry.MaxRetries = cfg.API.RetryAttempts

	c := &Client{
		baseURL:       strings.TrimRight(cfg.API.BaseURL, "/"),
		token:         cfg.API.Token,
		httpClient:    &http.Client{},
		timeout:       cfg.GetTimeout(),
		uploadTimeout: cfg.GetUploadTimeout(),
		retry:         retry,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = otel.Tracer(tracerName)
	return c
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the bearer token, if any.
func (c *Client) Token() string {
	return c.token
}

// Request sends one JSON request and decodes the JSON reply into out.
// body and out may be nil. Non-2xx replies become *Error.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	resp, err := c.send(ctx, method, path, reader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// getJSON is Request for idempotent reads, retried with backoff on network
// failures and 5xx replies.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	_, err := utils.Retry(ctx, c.retryConfig(path), func(ctx context.Context) (struct{}, error) {
		err := c.Request(ctx, http.MethodGet, path, nil, out)
		if err != nil && !retryable(ctx, err) {
			return struct{}{}, utils.Permanent(err)
		}
		return struct{}{}, err
	})
	return err
}

func (c *Client) retryConfig(path string) utils.RetryConfig {
	rc := c.retry
	rc.OnRetry = func(err error, next time.Duration) {
		c.logger.Debug("retrying request", zap.String("path", path), zap.Duration("in", next), zap.Error(err))
	}
	return rc
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// send performs the HTTP exchange inside a client span. The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, method+" "+routeOf(path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	return resp, nil
}

// routeOf strips the query string so span names stay low-cardinality.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func checkStatus(status int, data []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		if eb.Error != "" {
			return &Error{StatusCode: status, Message: eb.Error}
		}
		if eb.Message != "" {
			return &Error{StatusCode: status, Message: eb.Message}
		}
	}
	return &Error{StatusCode: status, Message: fmt.Sprintf("Request failed with status %d", status)}
}
