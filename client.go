// Package biosim is a client for the BioSim simulation service HTTP API.
//
// The client is configured with functional options and exposes its endpoints
// through service groups. The service itself (the simulation engine) is treated
// as an opaque backend reachable only over HTTP.
package biosim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"biosim-runner/services"

	"github.com/google/uuid"
)

// DefaultBaseURL is where a locally composed backend serves its API
const DefaultBaseURL = "http://localhost:8009/api"

// ClientOption is a function that configures a BiosimClient
type ClientOption func(*BiosimClient)

// BiosimClient is the main client for interacting with the BioSim API
// After creation, the client is immutable and safe for concurrent use
type BiosimClient struct {
	baseURL    string
	httpClient *http.Client

	// Custom headers to include in all requests
	headers map[string]string

	timeout     time.Duration
	timeoutSet  bool
	retryConfig *RetryConfig

	// Service groups
	Simulation *services.SimulationService
}

// RetryConfig configures retry behavior for failed requests.
// The zero value disables retries.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new BiosimClient with the given options
func NewClient(opts ...ClientOption) *BiosimClient {
	client := &BiosimClient{
		baseURL:     DefaultBaseURL,
		headers:     make(map[string]string),
		httpClient:  &http.Client{},
		retryConfig: &RetryConfig{},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.timeoutSet && client.timeout != client.httpClient.Timeout {
		// Work on a copy so a client passed to WithHTTPClient is left untouched
		httpClient := *client.httpClient
		httpClient.Timeout = client.timeout
		client.httpClient = &httpClient
	}

	client.Simulation = services.NewSimulationService(client)

	return client
}

// WithBaseURL sets a custom base URL for the client
func WithBaseURL(url string) ClientOption {
	return func(c *BiosimClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the request timeout. Zero means no timeout.
// It applies regardless of its order relative to WithHTTPClient.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *BiosimClient) {
		c.timeout = timeout
		c.timeoutSet = true
	}
}

// WithRetryConfig sets the retry configuration
func WithRetryConfig(config *RetryConfig) ClientOption {
	return func(c *BiosimClient) {
		if config == nil {
			config = &RetryConfig{}
		}
		c.retryConfig = config
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *BiosimClient) {
		c.httpClient = httpClient
	}
}

// WithHeader adds a custom header that will be included in all requests
func WithHeader(key, value string) ClientOption {
	return func(c *BiosimClient) {
		c.headers[key] = value
	}
}

// WithHeaders adds multiple custom headers that will be included in all requests
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *BiosimClient) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// GetBaseURL returns the configured base URL
func (c *BiosimClient) GetBaseURL() string {
	return c.baseURL
}

// NewRequest creates a new HTTP request carrying a fresh request ID and the custom headers
func (c *BiosimClient) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(services.RequestIDHeader, uuid.NewString())

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// Do executes an HTTP request. Transport failures are returned as *NetworkError.
// Requests are retried on 5xx and transport errors only when the retry config allows it.
func (c *BiosimClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			if rerr := rewindBody(req); rerr != nil {
				return nil, rerr
			}
		}

		resp, err = c.httpClient.Do(req)

		// Success or non-retryable error
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if attempt < c.retryConfig.MaxRetries {
			if resp != nil {
				resp.Body.Close()
			}
			select {
			case <-req.Context().Done():
				return nil, &NetworkError{Err: req.Context().Err()}
			case <-time.After(c.retryConfig.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}

	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to rewind request body: %w", err)
	}
	req.Body = body
	return nil
}
