package biosim

import (
	"errors"
	"fmt"

	"biosim-runner/services"
)

// APIError represents a non-success response from the BioSim API.
// It aliases the service-level type so callers only need this package.
type APIError = services.APIError

// StatusCode returns the HTTP status carried by an *APIError anywhere in
// err's chain. ok is false for every other error, including transport failures.
func StatusCode(err error) (status int, ok bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// NetworkError is returned when no HTTP response was received
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError reports a configuration or input value the runner cannot use
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
