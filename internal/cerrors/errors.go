package cerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return "OK"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches sentinels by code so that copies made by WithCause/WithMessage
// still satisfy errors.Is against the original sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a shallow copy of e with Cause.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Cause = err
	return &c
}

// WithMessage returns a shallow copy with an overridden message.
func (e *AppError) WithMessage(msg string, a ...any) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	if len(a) > 0 {
		c.Message = fmt.Sprintf(msg, a...)
	} else {
		c.Message = msg
	}
	return &c
}

// CodeOf returns the code if err is *AppError; "UNKNOWN" otherwise; "OK" for nil.
func CodeOf(err error) string {
	if err == nil {
		return "OK"
	}
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return "UNKNOWN"
}

// HTTPStatusOf returns the HTTP status if err is *AppError; otherwise 500; 200 for nil.
func HTTPStatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *AppError
	if errors.As(err, &e) && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code string) bool {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func def(code, msg string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus}
}

var (
	OK = def("OK", "OK", http.StatusOK)
)

var (
	ErrGenericBadRequest     = def("400000", "bad request error", http.StatusBadRequest)
	ErrGenericUnknownAPIPath = def("400004", "unknown api path", http.StatusNotFound)
	ErrGenericInternalServer = def("500000", "internal server error", http.StatusInternalServerError)
	ErrRegistryNotReady      = def("500010", "sensor registry is not ready", http.StatusServiceUnavailable)
)

var (
	ErrSensorNotFound  = def("430000", "sensor not found", http.StatusNotFound)
	ErrHistoryNotFound = def("430001", "no history recorded for sensor", http.StatusNotFound)
)

// Pipeline sentinels. These never reach HTTP callers directly.
var (
	ErrNoData          = def("440000", "no valid data", http.StatusInternalServerError)
	ErrReadTimeout     = def("440001", "telemetry read timed out", http.StatusGatewayTimeout)
	ErrInvalidProfile  = def("440002", "invalid display profile", http.StatusInternalServerError)
	ErrInvalidFormula  = def("440003", "invalid formula", http.StatusInternalServerError)
	ErrUnknownViewer   = def("440004", "unknown viewer type", http.StatusInternalServerError)
	ErrUnknownPalette  = def("440005", "unknown color palette", http.StatusInternalServerError)
	ErrUnknownSensor   = def("440006", "viewer references unknown sensor", http.StatusInternalServerError)
	ErrInvalidSource   = def("440007", "sensor must declare exactly one source", http.StatusInternalServerError)
	ErrUnknownProduct  = def("440008", "no fallback profile for product", http.StatusInternalServerError)
	ErrHistoryPersist  = def("440009", "failed to persist history", http.StatusInternalServerError)
	ErrSourceKind      = def("440010", "unknown telemetry source kind", http.StatusInternalServerError)
	ErrMalformedReport = def("440011", "malformed telemetry value", http.StatusInternalServerError)
)
