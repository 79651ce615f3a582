package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0 when err did not come
// from a backend response (transport and decoding failures).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// ServerMessage returns the backend's error text, or err's own text when
// the failure never reached the backend.
func ServerMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// IsUnauthorized reports a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
