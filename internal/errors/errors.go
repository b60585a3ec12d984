package errors

import (
	"encoding/json"
	"net/http"
)

// GatewayError represents a terminal per-request failure that can be
// returned to clients as a JSON envelope. Details and Stack are only
// populated in development mode; callers own that gating.
type GatewayError struct {
	Status    int    `json:"-"`
	Kind      string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   string `json:"details,omitempty"`
	Stack     string `json:"stack,omitempty"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// WriteJSON writes the error envelope to the response.
func (e *GatewayError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(e)
}

// Base errors. Never mutated; use the With* helpers to derive copies.
var (
	ErrForbidden = &GatewayError{
		Status:  http.StatusForbidden,
		Kind:    "Forbidden",
		Message: "Origin not allowed",
	}

	ErrConfiguration = &GatewayError{
		Status:  http.StatusInternalServerError,
		Kind:    "Configuration Error",
		Message: "Gateway is misconfigured",
	}

	ErrGateway = &GatewayError{
		Status:  http.StatusBadGateway,
		Kind:    "Gateway Error",
		Message: "Failed to reach upstream cluster API",
	}
)

// WithRequestID returns a copy of e carrying the request correlation id.
func (e *GatewayError) WithRequestID(requestID string) *GatewayError {
	c := *e
	c.RequestID = requestID
	return &c
}

// WithDetails returns a copy of e carrying a detail string.
func (e *GatewayError) WithDetails(details string) *GatewayError {
	c := *e
	c.Details = details
	return &c
}

// WithStack returns a copy of e carrying a stack trace.
func (e *GatewayError) WithStack(stack string) *GatewayError {
	c := *e
	c.Stack = stack
	return &c
}
