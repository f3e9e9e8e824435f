package proxy

import (
	"fmt"
	"net/http"

	"proxygate/internal/models"
)

// ServiceError represents errors from the proxy service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewProxyNotFoundError(id int64) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeProxyNotFound,
		Message:    fmt.Sprintf("proxy %d not found", id),
		StatusCode: http.StatusNotFound,
	}
}

func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidProxyError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidProxy,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewDatabaseError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeDatabase,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
