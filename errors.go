package pubkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCanceled          ErrorCode = "canceled"
	CodeInternal          ErrorCode = "internal"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
	CodeMalformedResponse ErrorCode = "malformed_response"
)

// Error is the failure detail carried by a Status.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// DefaultErrorTransformer maps an error raised while talking to the service
// to an Error with a code.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var pkErr *Error
	if errors.As(err, &pkErr) {
		return pkErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeDeadlineExceeded, "request timeout")
	}

	if errors.Is(err, context.Canceled) {
		return NewError(CodeCanceled, "request cancelled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(CodeDeadlineExceeded, "request timeout")
		}
		return NewError(CodeUnavailable, err.Error())
	}

	return NewError(CodeInternal, err.Error())
}

// CodeFromHTTPStatus maps a service HTTP status to an ErrorCode.
// It returns "" for non-error statuses.
func CodeFromHTTPStatus(status int) ErrorCode {
	switch {
	case status < 400:
		return ""
	case status == http.StatusBadRequest:
		return CodeInvalidArgument
	case status == http.StatusUnauthorized:
		return CodeUnauthenticated
	case status == http.StatusForbidden:
		return CodePermissionDenied
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeResourceExhausted
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return CodeDeadlineExceeded
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// Category returns the status category a failure with this code reports.
func (c ErrorCode) Category() Category {
	switch c {
	case "":
		return CategoryAcknowledgment
	case CodeInvalidArgument, CodeNotFound, CodeConflict, CodeMalformedResponse:
		return CategoryBadRequest
	case CodeUnauthenticated, CodePermissionDenied:
		return CategoryAccessDenied
	case CodeDeadlineExceeded:
		return CategoryTimeout
	case CodeCanceled:
		return CategoryCancelled
	case CodeUnavailable:
		return CategoryNetworkIssues
	default:
		return CategoryUnknown
	}
}

// formatValidationError converts a validator.FieldError to the message
// reported to callers. Field names come from the label tag.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required", "min":
		return "Missing " + ve.Field()
	case "oneof":
		return fmt.Sprintf("Invalid %s: must be one of %s", ve.Field(), ve.Param())
	default:
		return "Invalid " + ve.Field()
	}
}
