package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNetwork           = "NETWORK_ERROR"
	CodeRemoteWrite       = "REMOTE_WRITE_ERROR"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeStorage           = "STORAGE_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// NewNetworkError wraps a failed or unsuccessful read from the remote collection.
func NewNetworkError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: message,
		Err:     err,
	}
}

// NewRemoteWriteError wraps a failed create, update or delete against the remote collection.
func NewRemoteWriteError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeRemoteWrite,
		Message: fmt.Sprintf("Failed to %s post", operation),
		Err:     err,
	}
}

func NewMalformedResponseError(message string) *AppError {
	return &AppError{
		Code:    CodeMalformedResponse,
		Message: message,
	}
}

func NewStorageError(operation, key string, err error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: fmt.Sprintf("storage %s %q failed", operation, key),
		Err:     err,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
