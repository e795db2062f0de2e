package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an application error carrying a machine-readable code and the
// HTTP status it maps to at the edge.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so wrapped AppErrors compare with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code, message string, statusCode int, err error) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode, Err: err}
}

// Validation wraps a caller-fixable request problem. Surfaced verbatim.
func Validation(message string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, StatusCode: http.StatusBadRequest}
}

// GatewayUnavailable marks network failures, timeouts and 5xx responses from
// the payment processor. The payment stays pending and the caller may retry.
func GatewayUnavailable(gateway string, err error) *AppError {
	return &AppError{
		Code:       "GATEWAY_UNAVAILABLE",
		Message:    fmt.Sprintf("payment gateway '%s' is unreachable", gateway),
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// GatewayRejected marks processor-side validation failures.
func GatewayRejected(gateway, reason string) *AppError {
	return &AppError{
		Code:       "GATEWAY_REJECTED",
		Message:    fmt.Sprintf("payment gateway '%s' rejected the request: %s", gateway, reason),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// InvalidSignature is a security event: the webhook body did not match the
// signature header. Never retried, never mutates state.
func InvalidSignature(gateway string) *AppError {
	return &AppError{
		Code:       "INVALID_SIGNATURE",
		Message:    fmt.Sprintf("webhook signature verification failed for gateway '%s'", gateway),
		StatusCode: http.StatusUnauthorized,
	}
}

func DuplicateReference(reference string) *AppError {
	return &AppError{
		Code:       "DUPLICATE_REFERENCE",
		Message:    fmt.Sprintf("payment reference '%s' already exists", reference),
		StatusCode: http.StatusConflict,
	}
}

func PaymentNotFound(reference string) *AppError {
	return &AppError{
		Code:       "PAYMENT_NOT_FOUND",
		Message:    fmt.Sprintf("payment '%s' not found", reference),
		StatusCode: http.StatusNotFound,
	}
}

func NomineeNotFound(id string) *AppError {
	return &AppError{
		Code:       "NOMINEE_NOT_FOUND",
		Message:    fmt.Sprintf("nominee '%s' not found", id),
		StatusCode: http.StatusNotFound,
	}
}

func CategoryNotFound(id string) *AppError {
	return &AppError{
		Code:       "CATEGORY_NOT_FOUND",
		Message:    fmt.Sprintf("category '%s' not found", id),
		StatusCode: http.StatusNotFound,
	}
}

// RateLimited throttles vote initiation bursts. The caller should retry
// after the window passes.
func RateLimited(message string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: message, StatusCode: http.StatusTooManyRequests}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, StatusCode: http.StatusInternalServerError, Err: err}
}

// ErrorResponse is the JSON error envelope returned by handlers.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ToResponse(err *AppError) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: err.Code, Message: err.Message}}
}

// FromError extracts an AppError or wraps the error as internal.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}
