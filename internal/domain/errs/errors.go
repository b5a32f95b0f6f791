// Package errs defines the application error taxonomy shared by every layer.
package errs

import (
	"errors"
	"maps"
	"net/http"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when access is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when an action is forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable is returned when a dependency cannot confirm liveness
	ErrUnavailable = errors.New("dependency unavailable")

	// ErrInvalidConfig is returned when required configuration is missing or malformed
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Kind identifies one entry of the closed error taxonomy.
type Kind int

// Error kinds.
const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindUnauthorized
	KindForbidden
	KindUnavailable
	KindConfiguration
)

// Stable machine-readable codes. External consumers match on these.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeUnavailable   = "DEPENDENCY_UNAVAILABLE"
	CodeConfiguration = "CONFIGURATION_ERROR"
)

type kindInfo struct {
	code       string
	statusCode int
	message    string
	sentinel   error
}

var kinds = map[Kind]kindInfo{
	KindNotFound:      {CodeNotFound, http.StatusNotFound, "Resource not found", ErrNotFound},
	KindValidation:    {CodeValidation, http.StatusBadRequest, "Validation failed", ErrInvalidInput},
	KindUnauthorized:  {CodeUnauthorized, http.StatusUnauthorized, "Unauthorized", ErrUnauthorized},
	KindForbidden:     {CodeForbidden, http.StatusForbidden, "Forbidden", ErrForbidden},
	KindUnavailable:   {CodeUnavailable, http.StatusServiceUnavailable, "Dependency unavailable", ErrUnavailable},
	KindConfiguration: {CodeConfiguration, http.StatusInternalServerError, "Invalid configuration", ErrInvalidConfig},
}

// String returns the taxonomy code of the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "UNKNOWN"
}

// AppError is an application error with a stable code and a protocol status hint.
// Values are built by the constructors below and are not mutated afterwards.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	StatusCode int
	Details    map[string]any

	cause error
}

func newAppError(kind Kind, message string, cause error) *AppError {
	info := kinds[kind]
	if message == "" {
		message = info.message
	}
	return &AppError{
		Kind:       kind,
		Code:       info.code,
		Message:    message,
		StatusCode: info.statusCode,
		cause:      cause,
	}
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return newAppError(KindNotFound, message, nil)
}

// Validation creates a 400 error.
func Validation(message string) *AppError {
	return newAppError(KindValidation, message, nil)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError(KindUnauthorized, message, nil)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newAppError(KindForbidden, message, nil)
}

// Unavailable creates a dependency-probe failure for the named dependency.
// The cause message becomes the error message so callers can surface it verbatim.
func Unavailable(dependency string, cause error) *AppError {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return newAppError(KindUnavailable, message, cause).WithDetail("dependency", dependency)
}

// Configuration creates a configuration failure.
func Configuration(message string, cause error) *AppError {
	return newAppError(KindConfiguration, message, cause)
}

// Error implements error.
func (e *AppError) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap exposes the cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the sentinel error for this kind.
func (e *AppError) Is(target error) bool {
	info, ok := kinds[e.Kind]
	return ok && target == info.sentinel
}

// WithDetail returns a copy of the error with an extra detail entry.
func (e *AppError) WithDetail(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	maps.Copy(cp.Details, e.Details)
	cp.Details[key] = value
	return &cp
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
