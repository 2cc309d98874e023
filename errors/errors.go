// Package errors provides unified error handling for dispatch.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection following RFC 7807 and Google AIP-193.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Generic Constructors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// ConnectionFailed creates a new AppError for a failed connection to a service.
func ConnectionFailed(service string) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s. Please verify the service is running.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// --- Dispatch Lifecycle Constructors ---

// CatalogEmpty creates the fatal startup error for an empty catalog.
func CatalogEmpty() *AppError {
	return &AppError{
		Code: ErrCodeCatalogEmpty, Message: "No dispatchable assets survived the catalog filter.",
		HTTPStatus: http.StatusNotFound, Retryable: false,
	}
}

// UpstreamUnavailable creates the fatal startup error for an unreachable
// release listing service.
func UpstreamUnavailable(cause error) *AppError {
	return &AppError{
		Code: ErrCodeUpstreamUnavailable, Message: "The release listing service is unreachable.",
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// TransferAborted creates the per-workload error for a client that
// disconnected mid-download.
func TransferAborted(workload string) *AppError {
	return &AppError{
		Code: ErrCodeTransferAborted, Message: fmt.Sprintf("Transfer of %s aborted by client disconnect.", workload),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"workload": workload},
	}
}

// BeaconMisaddressed creates the client error for a beacon call from an
// address with no assigned workload.
func BeaconMisaddressed(addr string) *AppError {
	return &AppError{
		Code: ErrCodeBeaconMisaddressed, Message: fmt.Sprintf("No workload is assigned to %s.", addr),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"client": addr},
	}
}

// InvalidTransition creates the client error for a beacon event that is
// inconsistent with the workload's current state.
func InvalidTransition(workload, from, to string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidTransition, Message: fmt.Sprintf("Workload %s cannot move from %s to %s.", workload, from, to),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"workload": workload, "from": from, "to": to},
	}
}

// SinkError creates the per-workload error for a result sink failure.
func SinkError(workload string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSinkError, Message: fmt.Sprintf("Filing the result for %s failed.", workload),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"workload": workload}, Cause: cause,
	}
}

// InternalInvariantViolation creates the fatal programming error for a
// broken invariant. Callers are expected to panic with it.
func InternalInvariantViolation(detail string) *AppError {
	return &AppError{
		Code: ErrCodeInvariantViolation, Message: fmt.Sprintf("Internal invariant violated: %s", detail),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
	}
}

// Wrap converts any error into an AppError. AppErrors (including wrapped
// ones) pass through unchanged; everything else becomes an Internal error.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}

// FormatResourceError creates a NotFound error with a stringified ID.
func FormatResourceError(resource string, id any) *AppError {
	return NotFound(resource, fmt.Sprintf("%v", id))
}
