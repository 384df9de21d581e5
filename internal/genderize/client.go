// Package genderize is a small client for the genderize.io API, which
// predicts the gender of first names.
package genderize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.genderize.io"
	// MaxNames is the batch limit of a single request.
	MaxNames = 10

	defaultTimeout = 10 * time.Second
	userAgent      = "welkin"
)

// ErrNameCount is returned when Predict is called with no names or more
// than MaxNames.
var ErrNameCount = fmt.Errorf("genderize: between 1 and %d names required", MaxNames)

// APIError is a non-200 response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("genderize: HTTP %d: %s", e.Status, e.Message)
}

// Prediction is the API's answer for one name. Gender is empty when the
// name is unknown.
type Prediction struct {
	Name        string  `json:"name" yaml:"name"`
	Gender      string  `json:"gender" yaml:"gender"`
	Probability float64 `json:"probability" yaml:"probability"`
	Count       int     `json:"count" yaml:"count"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond throttles the client; zero disables throttling.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client calls the API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Predict looks up between 1 and MaxNames names in one request. Results are
// in the order of names.
func (c *Client) Predict(ctx context.Context, names ...string) ([]Prediction, error) {
	if len(names) == 0 || len(names) > MaxNames {
		return nil, ErrNameCount
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for _, n := range names {
		q.Add("name[]", n)
	}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genderize request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode genderize response: %w", err)
	}
	if len(out) != len(names) {
		return nil, fmt.Errorf("genderize returned %d predictions for %d names", len(out), len(names))
	}
	return out, nil
}

// apiError reads the {"error": "..."} body the API sends with failures.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsRateLimited reports whether err is the API's 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
