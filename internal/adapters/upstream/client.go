// Package upstream is the client of the external scoring API. Each form
// submission turns into exactly one POST; failures are returned as-is and
// never retried.
package upstream

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

	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

// Endpoint names double as metric labels.
const (
	EndpointToday         = "today"
	EndpointCompatibility = "compatibility"
	EndpointMoonSign      = "moon-sign"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 64 << 10
	requestIDHeader = "X-Request-ID"
)

// Client calls the scoring API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        logger.Logger
}

// New creates a client for baseURL (e.g. "https://api.example.com"). An
// empty baseURL yields a client whose calls fail with ErrNotConfigured.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "meradin-site",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("upstream")
	}
	return c
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool { return c.baseURL != "" }

type compatibilityRequest struct {
	PersonA birth.Person `json:"person_a"`
	PersonB birth.Person `json:"person_b"`
}

// Today fetches the daily alignment for p.
func (c *Client) Today(ctx context.Context, p birth.Person) (reading.Today, error) {
	var out reading.Today
	err := c.post(ctx, EndpointToday, "/api/v1/today", birth.Normalize(p), &out)
	return out, err
}

// Compatibility fetches the pairwise reading for a and b.
func (c *Client) Compatibility(ctx context.Context, a, b birth.Person) (reading.Compatibility, error) {
	var out reading.Compatibility
	req := compatibilityRequest{PersonA: birth.Normalize(a), PersonB: birth.Normalize(b)}
	err := c.post(ctx, EndpointCompatibility, "/api/v1/compatibility", req, &out)
	return out, err
}

// MoonSign fetches the natal Moon sign. The tob key is sent only when a
// time was given.
func (c *Client) MoonSign(ctx context.Context, q birth.MoonQuery) (reading.MoonSign, error) {
	var out reading.MoonSign
	err := c.post(ctx, EndpointMoonSign, "/api/v1/moon-sign", birth.NormalizeMoon(q), &out)
	return out, err
}

func (c *Client) post(ctx context.Context, endpoint, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	start := time.Now()
	err := c.do(ctx, path, in, out)
	latency := float64(time.Since(start).Microseconds()) / 1000

	result := "ok"
	if err != nil {
		result = "error"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			result = fmt.Sprintf("status_%d", apiErr.Status)
		}
		c.log.Warn(ctx, "scoring api call failed",
			logger.String("endpoint", endpoint),
			logger.Float64("latency_ms", latency),
			logger.Error(err))
	} else {
		c.log.Debug(ctx, "scoring api call",
			logger.String("endpoint", endpoint),
			logger.Float64("latency_ms", latency))
	}
	metrics.RecordUpstreamRequest(endpoint, result, latency)
	return err
}

func (c *Client) do(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(requestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Detail: parseDetail(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// parseDetail extracts the "detail" member of an error body. It accepts a
// plain string or a list of {"msg": ...} objects.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
