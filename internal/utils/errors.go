package utils

import (
	"fmt"
	"net/http"
)

// AppError is an error that carries the HTTP status it should surface as.
type AppError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: message}
}

// WrapError attaches a status and a client-facing message to err.
func WrapError(status int, message string, err error) *AppError {
	return &AppError{StatusCode: status, Message: message, Err: err}
}

// NewUpstreamError wraps a failure reported by the catalog or classification API.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusBadGateway, Message: message, Err: err}
}
