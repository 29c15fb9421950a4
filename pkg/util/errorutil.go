package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API callers.
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeMalformedCredential = "MALFORMED_CREDENTIAL"
	CodeBadCredentials      = "BAD_CREDENTIALS"
	CodeInternal            = "INTERNAL_ERROR"
	CodeValidation          = "VALIDATION_FAILED"
	CodeConflict            = "CONFLICT"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewAuthRequired means the caller must log in again.
func NewAuthRequired(message string) error {
	return NewDomainError(CodeAuthRequired, message, http.StatusUnauthorized, nil)
}

func NewMalformedCredential(err error) error {
	return &DomainError{
		Code:       CodeMalformedCredential,
		Message:    "malformed credential",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// NewBadCredentials is returned for every login failure that involves the
// username or secret, so callers cannot tell which one was wrong.
func NewBadCredentials() error {
	return NewDomainError(CodeBadCredentials, "invalid username or password", http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRateLimited(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       http.StatusText(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// IsCode reports whether err maps to the given error code.
func IsCode(err error, code string) bool {
	de := ToDomainError(err)
	return de != nil && de.Code == code
}
