package server

import (
	"fmt"
	"net/http"
	"time"
)

// RequestError is a client-visible rejection: a machine-readable kind,
// a French reason, and the HTTP status it maps to.
type RequestError struct {
	Kind       string
	Reason     string
	Status     int
	RetryAfter time.Duration
}

func (e *RequestError) Error() string {
	return e.Reason
}

func badRequest(kind, format string, args ...any) *RequestError {
	return &RequestError{
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
		Status: http.StatusBadRequest,
	}
}

func generationFailed(reason string) *RequestError {
	return &RequestError{
		Kind:       "generation_failed",
		Reason:     reason,
		Status:     http.StatusServiceUnavailable,
		RetryAfter: 2 * time.Second,
	}
}

func notFound() *RequestError {
	return &RequestError{
		Kind:   "not_found",
		Reason: "route inconnue",
		Status: http.StatusNotFound,
	}
}

func methodNotAllowed(method string) *RequestError {
	return &RequestError{
		Kind:   "method_not_allowed",
		Reason: fmt.Sprintf("méthode non autorisée: %s", method),
		Status: http.StatusMethodNotAllowed,
	}
}
