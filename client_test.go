package biosim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"biosim-runner/services"
)

func TestNewClient(t *testing.T) {
	client := NewClient()

	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected baseURL %s, got %s", DefaultBaseURL, client.baseURL)
	}

	if client.timeout != 0 {
		t.Errorf("expected no timeout, got %v", client.timeout)
	}

	if client.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}

	if client.headers == nil {
		t.Error("expected headers map to be initialized")
	}

	if client.retryConfig == nil || client.retryConfig.MaxRetries != 0 {
		t.Errorf("expected retries to be disabled, got %+v", client.retryConfig)
	}

	if client.Simulation == nil {
		t.Error("expected Simulation service to be initialized")
	}
}

func TestClientOptions(t *testing.T) {
	customURL := "http://biosim.internal:9000/api/"
	customTimeout := 45 * time.Second

	client := NewClient(
		WithBaseURL(customURL),
		WithTimeout(customTimeout),
		WithHeader("X-Custom-Header", "value"),
		WithRetryConfig(&RetryConfig{MaxRetries: 2, RetryDelay: time.Second}),
	)

	if client.GetBaseURL() != "http://biosim.internal:9000/api" {
		t.Errorf("expected trailing slash to be trimmed, got %s", client.GetBaseURL())
	}

	if client.timeout != customTimeout || client.httpClient.Timeout != customTimeout {
		t.Errorf("expected timeout %v, got %v / %v", customTimeout, client.timeout, client.httpClient.Timeout)
	}

	if val, ok := client.headers["X-Custom-Header"]; !ok || val != "value" {
		t.Errorf("expected header X-Custom-Header with value 'value', got %v, %v", val, ok)
	}

	if client.retryConfig.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", client.retryConfig.MaxRetries)
	}
}

func TestWithTimeoutAndHTTPClient(t *testing.T) {
	tests := []struct {
		name string
		opts func(shared *http.Client) []ClientOption
	}{
		{
			name: "timeout first",
			opts: func(shared *http.Client) []ClientOption {
				return []ClientOption{WithTimeout(5 * time.Second), WithHTTPClient(shared)}
			},
		},
		{
			name: "http client first",
			opts: func(shared *http.Client) []ClientOption {
				return []ClientOption{WithHTTPClient(shared), WithTimeout(5 * time.Second)}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shared := &http.Client{Timeout: time.Minute}
			client := NewClient(tt.opts(shared)...)

			if client.httpClient.Timeout != 5*time.Second {
				t.Errorf("expected timeout 5s, got %v", client.httpClient.Timeout)
			}
			if shared.Timeout != time.Minute {
				t.Errorf("expected the shared client to keep its timeout, got %v", shared.Timeout)
			}
		})
	}
}

func TestWithHTTPClientKeepsItsTimeout(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	client := NewClient(WithHTTPClient(shared))

	if client.httpClient != shared {
		t.Error("expected the given client to be used as is")
	}
	if client.httpClient.Timeout != time.Minute {
		t.Errorf("expected timeout 1m, got %v", client.httpClient.Timeout)
	}
}

func TestWithHeaders(t *testing.T) {
	headers := map[string]string{
		"X-Header-1": "value1",
		"X-Header-2": "value2",
	}

	client := NewClient(WithHeaders(headers))

	for k, v := range headers {
		if val, ok := client.headers[k]; !ok || val != v {
			t.Errorf("expected header %s with value %s, got %v, %v", k, v, val, ok)
		}
	}
}

func TestWithRetryConfigNil(t *testing.T) {
	client := NewClient(WithRetryConfig(nil))
	if client.retryConfig == nil {
		t.Fatal("expected a zero retry config, got nil")
	}
	if client.retryConfig.MaxRetries != 0 {
		t.Errorf("expected 0 retries, got %d", client.retryConfig.MaxRetries)
	}
}

func TestNewRequest(t *testing.T) {
	client := NewClient(
		WithHeader("X-Custom-Header", "custom-value"),
	)

	ctx := context.Background()
	req, err := client.NewRequest(ctx, "GET", "/simulation", nil)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if req.Method != "GET" {
		t.Errorf("expected method GET, got %s", req.Method)
	}

	expectedURL := "http://localhost:8009/api/simulation"
	if req.URL.String() != expectedURL {
		t.Errorf("expected URL %s, got %s", expectedURL, req.URL.String())
	}

	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("expected Accept application/json, got %s", req.Header.Get("Accept"))
	}

	if req.Header.Get(services.RequestIDHeader) == "" {
		t.Error("expected a request ID header")
	}

	if req.Header.Get("X-Custom-Header") != "custom-value" {
		t.Errorf("expected X-Custom-Header custom-value, got %s", req.Header.Get("X-Custom-Header"))
	}

	other, _ := client.NewRequest(ctx, "GET", "/simulation", nil)
	if other.Header.Get(services.RequestIDHeader) == req.Header.Get(services.RequestIDHeader) {
		t.Error("expected every request to get its own request ID")
	}
}

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"simulations":[]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	req, err := client.NewRequest(context.Background(), "GET", "/simulation", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestDoDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	req, _ := client.NewRequest(context.Background(), "GET", "/simulation", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected the 503 response, got error %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls.Load())
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}),
	)

	req, _ := client.NewRequest(context.Background(), "POST", "/simulation/start", strings.NewReader("<sim/>"))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	for i, b := range bodies {
		if b != "<sim/>" {
			t.Errorf("attempt %d: expected body to be resent, got %q", i+1, b)
		}
	}
}

func TestDoNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url))

	req, _ := client.NewRequest(context.Background(), "GET", "/simulation", nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("expected an error for a closed server")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.Unwrap() == nil {
		t.Error("expected the transport error to be wrapped")
	}
}

func TestDoRetryHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxRetries: 5, RetryDelay: time.Hour}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := client.NewRequest(ctx, "GET", "/simulation", nil)
	_, err := client.Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestErrorTypes(t *testing.T) {
	t.Run("APIError", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Message: "Not found", RequestID: "req-1"}
		expected := "biosim api error (status 404, request_id: req-1): Not found"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("APIError without request id", func(t *testing.T) {
		err := &APIError{StatusCode: 500, Message: "boom"}
		expected := "biosim api error (status 500): boom"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := &NetworkError{Err: inner}
		if err.Error() != "network error: connection refused" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if !errors.Is(err, inner) {
			t.Error("expected NetworkError to unwrap to the inner error")
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := &ValidationError{Field: "layout", Message: "unknown"}
		expected := "invalid layout: unknown"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("failed to fetch simulation 4: %w", &APIError{StatusCode: 404})
	if status, ok := StatusCode(wrapped); !ok || status != 404 {
		t.Errorf("expected 404, got %d, %v", status, ok)
	}

	if _, ok := StatusCode(&NetworkError{Err: errors.New("refused")}); ok {
		t.Error("expected no status for a network error")
	}

	if _, ok := StatusCode(nil); ok {
		t.Error("expected no status for nil")
	}
}
