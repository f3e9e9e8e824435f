// Package models - API response types and error handling.
// This file defines the outgoing response structures shared by all handlers.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Machine-readable error codes next to human-readable messages
// - RFC3339 timestamps
package models

import (
	"time"
)

// ErrorResponse provides structured error information.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// RateLimitResponse is the body of a 429 answer from the admission
// controller. RetryAfter mirrors the Retry-After header.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"`
}

// MessageResponse acknowledges a mutating operation.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListProxiesResponse struct {
	Proxies    []Proxy `json:"proxies"`
	TotalCount int     `json:"total_count"`
}

type CleanupLogsResponse struct {
	Success bool          `json:"success"`
	Deleted CleanupResult `json:"deleted"`
	Cutoff  time.Time     `json:"cutoff"`
}

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeProxyNotFound      = "PROXY_NOT_FOUND"     // 404: Proxy doesn't exist
	ErrorCodeLogNotFound        = "LOG_NOT_FOUND"       // 404: Log entry doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeInvalidProxy       = "INVALID_PROXY"       // 400: Unparseable proxy string
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 422: Input validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeDatabase           = "DATABASE_ERROR"      // 500: Storage failure
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"           // 403: Permission denied
	ErrorCodeRateLimited        = "RATE_LIMIT_ERROR"    // 429: Admission refused
	ErrorCodeProxyError         = "PROXY_ERROR"         // 502: Proxy connection failed
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewValidationErrorResponse(errors map[string]string) *ValidationErrorResponse {
	return &ValidationErrorResponse{
		Error:  "validation_error",
		Errors: errors,
	}
}

func NewRateLimitResponse(detail string, retryAfter int) *RateLimitResponse {
	return &RateLimitResponse{
		Error:      "Rate limit exceeded",
		Detail:     detail,
		RetryAfter: retryAfter,
	}
}

func NewMessageResponse(message string) *MessageResponse {
	return &MessageResponse{Success: true, Message: message}
}
