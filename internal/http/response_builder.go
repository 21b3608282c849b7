// Package http provides the JSON API over the ledger store.
//
// This file implements a fluent builder for JSON responses so handlers set
// status, headers and body in one place.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a new response builder with status 200 OK.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Response encoding failed", "error", err, "status", b.statusCode)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// errorBody is the payload of every non-2xx API response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

// WithRequestID stamps the request id into an error body.
func (b *ResponseBuilder) WithRequestID(id string) *ResponseBuilder {
	if eb, ok := b.body.(errorBody); ok && id != "" {
		eb.RequestID = id
		b.body = eb
	}
	return b
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// TooManyRequestsError creates a 429 response; the Retry-After header is set
// by the limiter.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
