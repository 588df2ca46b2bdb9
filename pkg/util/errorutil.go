package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/symptomcheck/symptom-service/internal/domain"
)

// Messages shown to clients for authentication problems. They never say
// which part of the credential was wrong.
const (
	unauthorizedMessage = "could not validate credentials"
	authFailedMessage   = "authentication failed"
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
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string) error {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

// NewUnauthorized is the single 401 shape used on protected routes.
func NewUnauthorized() error {
	return NewDomainError("UNAUTHORIZED", unauthorizedMessage, http.StatusUnauthorized, nil)
}

func NewConflict(message string) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
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
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		details := make(map[string]any, len(validation.Fields))
		for field, problem := range validation.Fields {
			details[field] = problem
		}
		return &DomainError{Code: "VALIDATION_FAILED", Message: "invalid input", HTTPStatus: http.StatusBadRequest, Details: details, Err: err}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{Code: http.StatusText(fiberErr.Code), Message: fiberErr.Message, HTTPStatus: fiberErr.Code, Err: err}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrBadArgument):
		return &DomainError{Code: "VALIDATION_FAILED", Message: "invalid input", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, domain.ErrDuplicateEmail):
		return &DomainError{Code: "CONFLICT", Message: "email already registered", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrAccountDisabled):
		return &DomainError{Code: "AUTHENTICATION_FAILED", Message: authFailedMessage, HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, domain.ErrUnauthenticated):
		return &DomainError{Code: "UNAUTHORIZED", Message: unauthorizedMessage, HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, domain.ErrNotFound):
		return &DomainError{Code: "NOT_FOUND", Message: "resource not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, domain.ErrStorageUnavailable):
		return &DomainError{Code: "STORAGE_UNAVAILABLE", Message: "service temporarily unavailable, try again", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	case errors.Is(err, domain.ErrAnalysisUnavailable):
		return &DomainError{Code: "ANALYSIS_UNAVAILABLE", Message: "analysis service unavailable, try again", HTTPStatus: http.StatusBadGateway, Err: err}
	case errors.Is(err, domain.ErrRateLimited):
		return &DomainError{Code: "RATE_LIMITED", Message: "too many requests, slow down", HTTPStatus: http.StatusTooManyRequests, Err: err}
	}

	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
