// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used for every JSON response so that
// status codes and the success envelope stay consistent across handlers.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paylog/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
// Every body carries a "success" field.
type JSONResponseBuilder struct {
	statusCode int
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse creates a successful response with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		fields:     map[string]any{"success": true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Set adds a top level field to the body.
func (b *JSONResponseBuilder) Set(key string, value any) *JSONResponseBuilder {
	b.fields[key] = value
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.fields)
}

// StatusCode returns the status that Write will send.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// ErrorResponse creates a failed response carrying a short message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	b := NewJSONResponse().Status(statusCode).Set("success", false)
	if message != "" {
		b.Set("error", message)
	}
	return b
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// UnauthorizedError creates the bare 401 response.
func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "")
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "too many requests")
}

// ErrorFor maps an error category to a response. Storage and unknown
// errors never expose their text.
func ErrorFor(err error) *JSONResponseBuilder {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "upload too large")
	case errors.Is(err, core.ErrValidation):
		return BadRequestError(publicMessage(err, core.ErrValidation, "invalid request"))
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(publicMessage(err, core.ErrNotFound, "not found"))
	case errors.Is(err, core.ErrUnauthorized):
		return ErrorResponse(http.StatusUnauthorized, publicMessage(err, core.ErrUnauthorized, ""))
	default:
		return InternalServerError("internal error")
	}
}

// publicMessage returns the part of err's text that follows its category,
// e.g. "validation error: invalid amount" -> "invalid amount".
func publicMessage(err, category error, fallback string) string {
	msg := err.Error()
	prefix := category.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		if tail := msg[i+len(prefix):]; tail != "" {
			return tail
		}
	}
	return fallback
}
