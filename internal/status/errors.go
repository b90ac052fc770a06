package status

import (
	"fmt"
	"net/http"
)

// Kind classifies every failure the pipeline can surface. The set is closed;
// anything that does not fit a specific kind is Unclassified.
type Kind int

const (
	KindAuthenticationDenied Kind = iota
	KindValidationFailed
	KindBackendFault
	KindNotFound
	KindUnsupportedOperation
	KindSaveFailed
	KindUnclassified
)

// Error is the single wire-visible error type. Code is the stable machine
// errorcode; an empty Code renders as "unknown" except for Unclassified,
// which renders as "uncaught_exception".
type Error struct {
	Kind       Kind
	HTTPStatus int
	Code       string
	Summary    string
	Details    string

	// Fault holds the raw backend fault body for KindBackendFault.
	Fault []byte

	err error
}

func (e *Error) Error() string {
	if e.Summary != "" {
		return e.Summary
	}
	if e.err != nil {
		return e.err.Error()
	}
	return "internal server error"
}

func (e *Error) Unwrap() error {
	return e.err
}

// WithDetails attaches human-readable detail text and returns the error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// Denied builds an authentication denial.
func Denied(httpStatus int, code, summary string) *Error {
	return &Error{
		Kind:       KindAuthenticationDenied,
		HTTPStatus: httpStatus,
		Code:       code,
		Summary:    summary,
	}
}

// NotFound builds a 404 for a missing resource or route.
func NotFound(summary string) *Error {
	return &Error{
		Kind:       KindNotFound,
		HTTPStatus: http.StatusNotFound,
		Code:       "not_found",
		Summary:    summary,
	}
}

// Validation builds a schema-validation failure; the validator's message
// travels in the details.
func Validation(details string) *Error {
	return &Error{
		Kind:       KindValidationFailed,
		HTTPStatus: http.StatusBadRequest,
		Code:       "validation_failed",
		Summary:    "XML validation failed",
		Details:    details,
	}
}

// InvalidMethod builds the error for an HTTP method an action does not support.
func InvalidMethod(method string) *Error {
	return &Error{
		Kind:       KindUnsupportedOperation,
		HTTPStatus: http.StatusBadRequest,
		Code:       "invalid_http_method",
		Summary:    fmt.Sprintf("Invalid HTTP Method: %s", method),
	}
}

// UnknownAction builds the error for an action no handler is bound to.
func UnknownAction(summary string) *Error {
	return &Error{
		Kind:       KindUnsupportedOperation,
		HTTPStatus: http.StatusForbidden,
		Code:       "unknown_action",
		Summary:    summary,
	}
}

// MissingParameter reports an absent required request parameter.
func MissingParameter(name string) *Error {
	return &Error{
		Kind:       KindValidationFailed,
		HTTPStatus: http.StatusBadRequest,
		Code:       "missing_parameter",
		Summary:    fmt.Sprintf("missing parameter '%s'", name),
	}
}

// UnknownCommand reports a cmd value the dispatch table does not know.
func UnknownCommand(cmd, path string) *Error {
	return &Error{
		Kind:       KindUnsupportedOperation,
		HTTPStatus: http.StatusBadRequest,
		Code:       "unknown_command",
		Summary:    fmt.Sprintf("Unknown command '%s' for path %s", cmd, path),
	}
}

// MissingQueryParameters reports absent required query parameters.
func MissingQueryParameters(names string) *Error {
	return &Error{
		Kind:       KindValidationFailed,
		HTTPStatus: http.StatusBadRequest,
		Code:       "missing_query_parameters",
		Summary:    fmt.Sprintf("missing query parameters: %s", names),
	}
}

// SaveError builds a record-save failure for the given domain object kind
// ("package" or "project").
func SaveError(object string, cause error) *Error {
	return &Error{
		Kind:       KindSaveFailed,
		HTTPStatus: http.StatusBadRequest,
		Code:       object + "_save_error",
		Summary:    fmt.Sprintf("error saving %s: %v", object, cause),
		err:        cause,
	}
}

// BackendError wraps a backend fault response. The raw fault body is kept
// for pass-through rendering; httpStatus is the backend's response status.
func BackendError(httpStatus int, fault []byte) *Error {
	return &Error{
		Kind:       KindBackendFault,
		HTTPStatus: httpStatus,
		Summary:    fmt.Sprintf("backend responded with status %d", httpStatus),
		Fault:      fault,
	}
}

// Unclassified wraps any failure no specific kind covers.
func Unclassified(cause error) *Error {
	return &Error{
		Kind:       KindUnclassified,
		HTTPStatus: http.StatusBadRequest,
		Code:       "uncaught_exception",
		Summary:    fmt.Sprintf("uncaught exception: %v", cause),
		err:        cause,
	}
}
