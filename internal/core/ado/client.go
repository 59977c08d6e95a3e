// Package ado is a thin REST client for Azure DevOps Server collections.
package ado

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

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// DefaultAPIVersion is sent when no api-version is configured.
const DefaultAPIVersion = "7.1-preview.3"

// PATUser is the basic-auth user name paired with a personal access token.
const PATUser = "pat"

const maxErrorBody = 4096

// Config describes how to reach a collection.
type Config struct {
	ServerURL  string
	Token      string
	Collection string
	APIVersion string
	Timeout    time.Duration
	Breaker    BreakerConfig
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures uint32
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
}

// Logger is the structured logger used for non-fatal backend events.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// RequestInfo describes one completed HTTP exchange.
type RequestInfo struct {
	Method   string
	Area     string
	Status   int
	Duration time.Duration
	Err      error
}

// Client talks to one Azure DevOps Server collection.
type Client struct {
	BaseURL    *url.URL
	Token      string
	APIVersion string
	HTTPClient *http.Client
	Logger     Logger
	OnRequest  func(RequestInfo)
	Clock      func() time.Time

	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("azure devops server url and token must be set")
	}

	base, err := url.Parse(CollectionURL(cfg.ServerURL, cfg.Collection))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", cfg.ServerURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	c := &Client{
		BaseURL:    base,
		Token:      cfg.Token,
		APIVersion: apiVersion,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(base.Host, cfg.Breaker)
	}
	return c, nil
}

// CollectionURL appends collection to serverURL unless it already ends with it.
func CollectionURL(serverURL, collection string) string {
	serverURL = strings.TrimSpace(serverURL)
	collection = strings.TrimSpace(collection)
	if collection == "" || strings.HasSuffix(serverURL, collection) {
		return serverURL
	}
	if !strings.HasSuffix(serverURL, "/") {
		serverURL += "/"
	}
	return serverURL + collection
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "ado:" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client-side errors say nothing about server health.
			if status := StatusCode(err); status > 0 && status < http.StatusInternalServerError {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
	})
}

// BreakerState reports the transport breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c == nil || c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// CheckHealth fails while the transport breaker is open so readiness probes
// stop routing traffic to a server whose backend is down.
func (c *Client) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state := c.BreakerState(); state == gobreaker.StateOpen.String() {
		return fmt.Errorf("azure devops circuit breaker is %s", state)
	}
	return nil
}

type request struct {
	method      string
	segments    []string
	query       url.Values
	body        any
	contentType string
	apiVersion  string
}

// get performs a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, out any, query url.Values, segments ...string) error {
	return c.do(ctx, request{method: http.MethodGet, segments: segments, query: query}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if c == nil || c.BaseURL == nil {
		return errors.New("azure devops client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	exec := func() ([]byte, error) { return c.roundTrip(ctx, req) }

	var (
		payload []byte
		err     error
	)
	if c.breaker != nil {
		payload, err = c.breaker.Execute(exec)
	} else {
		payload, err = exec()
	}
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", area(req.segments), err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	endpoint := c.endpoint(req)

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(PATUser, c.Token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		contentType := req.contentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	start := c.now()
	resp, err := client.Do(httpReq)
	if err != nil {
		c.observe(req, 0, start, err)
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(req, resp.StatusCode, start, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		failure := parseErrorResponse(resp, payload)
		c.observe(req, resp.StatusCode, start, failure)
		return nil, failure
	}

	c.observe(req, resp.StatusCode, start, nil)
	return payload, nil
}

func (c *Client) endpoint(req request) string {
	escaped := make([]string, 0, len(req.segments))
	for _, segment := range req.segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	u := c.BaseURL.JoinPath(escaped...)

	query := url.Values{}
	for key, values := range req.query {
		query[key] = values
	}
	apiVersion := req.apiVersion
	if apiVersion == "" {
		apiVersion = c.APIVersion
	}
	query.Set("api-version", apiVersion)
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) observe(req request, status int, start time.Time, err error) {
	if c.OnRequest == nil {
		return
	}
	c.OnRequest(RequestInfo{
		Method:   req.method,
		Area:     area(req.segments),
		Status:   status,
		Duration: c.now().Sub(start),
		Err:      err,
	})
}

func (c *Client) logInfo(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Info(msg, fields...)
	}
}

func (c *Client) logError(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Error(msg, fields...)
	}
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// area names the REST area of a request path, e.g. "wit" or "git".
func area(segments []string) string {
	for i, segment := range segments {
		if segment == "_apis" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return "unknown"
}
