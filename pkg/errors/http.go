package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTP status for each error code. Codes missing from the table map to 500.
var httpStatus = map[string]int{
	ErrInternal:          http.StatusInternalServerError,
	ErrNotFound:          http.StatusNotFound,
	ErrInvalidArgument:   http.StatusBadRequest,
	ErrConflict:          http.StatusConflict,
	ErrTimeout:           http.StatusGatewayTimeout,
	ErrNotImplemented:    http.StatusNotImplemented,
	ErrRouting:           http.StatusBadGateway,
	ErrClarification:     http.StatusBadGateway,
	ErrResearch:          http.StatusBadGateway,
	ErrWriter:            http.StatusBadGateway,
	ErrFactCheck:         http.StatusBadGateway,
	ErrBackgroundTimeout: http.StatusGatewayTimeout,
	ErrInvalidTransition: http.StatusConflict,
	ErrConfiguration:     http.StatusBadRequest,
}

// ToHTTPStatus converts an error code to an HTTP status code.
func ToHTTPStatus(code string) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToHTTPError converts an error into an Echo HTTP error.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return echo.NewHTTPError(ToHTTPStatus(appErr.Code()), appErr.Error())
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		return echoErr
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
