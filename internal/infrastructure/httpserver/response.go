package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// Response is the error envelope shared by every non-health failure.
type Response struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an error in the API response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes produced outside the application taxonomy.
const (
	CodeInternal         = "INTERNAL_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBadRequest       = "BAD_REQUEST"
)

// ErrorHandler returns an echo.HTTPErrorHandler rendering every error in the
// standard envelope. Handlers return application errors unchanged; this is
// the single place where they become responses.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		statusCode, apiError := mapError(err)
		if statusCode >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("code", apiError.Code),
				slog.String("error", err.Error()),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(statusCode)
		} else {
			writeErr = c.JSON(statusCode, Response{Success: false, Error: apiError})
		}
		if writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "failed to write error response",
				slog.String("error", writeErr.Error()),
			)
		}
	}
}

// mapError maps an error to an HTTP status code and API error.
func mapError(err error) (int, *Error) {
	if appErr, ok := errs.As(err); ok {
		return appErr.StatusCode, appErrorBody(appErr)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return mapHTTPError(he)
	}

	return http.StatusInternalServerError, &Error{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// appErrorBody renders an application error. Messages of dependency and
// configuration failures stay in the logs.
func appErrorBody(appErr *errs.AppError) *Error {
	switch appErr.Kind {
	case errs.KindNotFound, errs.KindValidation, errs.KindUnauthorized, errs.KindForbidden:
		return &Error{Code: appErr.Code, Message: appErr.Message}
	case errs.KindUnavailable:
		return &Error{Code: appErr.Code, Message: "A required dependency is unavailable"}
	case errs.KindConfiguration:
		return &Error{Code: appErr.Code, Message: "The service is misconfigured"}
	default:
		return &Error{Code: CodeInternal, Message: "An internal error occurred"}
	}
}

// mapHTTPError converts router-level errors into the envelope.
func mapHTTPError(he *echo.HTTPError) (int, *Error) {
	switch he.Code {
	case http.StatusNotFound:
		return mapError(errs.NotFound("The requested resource was not found"))
	case http.StatusMethodNotAllowed:
		return he.Code, &Error{Code: CodeMethodNotAllowed, Message: "Method not allowed"}
	case http.StatusUnauthorized:
		return mapError(errs.Unauthorized(""))
	case http.StatusForbidden:
		return mapError(errs.Forbidden(""))
	}

	if he.Code >= http.StatusBadRequest && he.Code < http.StatusInternalServerError {
		return he.Code, &Error{Code: CodeBadRequest, Message: http.StatusText(he.Code)}
	}
	return http.StatusInternalServerError, &Error{Code: CodeInternal, Message: "An internal error occurred"}
}
