// Package services groups the BioSim API endpoints by area.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// RequestIDHeader carries the per-request correlation ID
const RequestIDHeader = "X-Request-ID"

// ClientInterface defines the methods needed from BiosimClient
type ClientInterface interface {
	NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
	GetBaseURL() string
}

// APIError represents an error from the BioSim API
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("biosim api error (status %d, request_id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("biosim api error (status %d): %s", e.StatusCode, e.Message)
}

// maxErrorBody bounds how much of an error response is kept in APIError.Message
const maxErrorBody = 4096

func newAPIError(req *http.Request, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		RequestID:  req.Header.Get(RequestIDHeader),
	}
}

// drain discards the rest of a response body so the connection can be reused
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
