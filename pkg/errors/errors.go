// Package errors provides structured error types for shipctl.
package errors

import (
	"fmt"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeInvalidDescriptor  ErrorCode = "INVALID_DESCRIPTOR"
	ErrCodeKeyCollision       ErrorCode = "KEY_COLLISION"
	ErrCodeProvisioning       ErrorCode = "PROVISIONING_ERROR"
	ErrCodeCredentialExchange ErrorCode = "CREDENTIAL_EXCHANGE_ERROR"
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeEngine             ErrorCode = "ENGINE_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnresolved         ErrorCode = "UNRESOLVED_OUTPUT"
)

// Error is the base error type for shipctl
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// InvalidDescriptor creates a descriptor validation error. Raised before
// any resource request is issued.
func InvalidDescriptor(message string) *Error {
	return New(ErrCodeInvalidDescriptor, message)
}

// KeyCollision creates an error for a key present in both env and secrets.
func KeyCollision(key string) *Error {
	return &Error{
		Code:    ErrCodeKeyCollision,
		Message: fmt.Sprintf("key %q is defined in both env and secrets", key),
		Details: map[string]interface{}{"key": key},
	}
}

// Provisioning creates an error for a failed resource request. The request
// ID is carried so the caller can decide on manual remediation.
func Provisioning(requestID string, cause error) *Error {
	return &Error{
		Code:    ErrCodeProvisioning,
		Message: fmt.Sprintf("request %s failed", requestID),
		Cause:   cause,
		Details: map[string]interface{}{"request_id": requestID},
	}
}

// CredentialExchange creates an error for registry credentials that could
// not be decoded. Fatal to the image-build branch only.
func CredentialExchange(message string) *Error {
	return New(ErrCodeCredentialExchange, message)
}

// ParseError creates a parse error for a descriptor file
func ParseError(path string, cause error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", path),
		Cause:   cause,
		Details: map[string]interface{}{"path": path},
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// IsCode reports whether err is a shipctl error with the given code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}

// RequestID extracts the failing request ID from a provisioning error,
// or "" if err is not a provisioning error.
func RequestID(err error) string {
	e, ok := err.(*Error)
	if !ok || e.Code != ErrCodeProvisioning {
		return ""
	}
	if id, ok := e.Details["request_id"].(string); ok {
		return id
	}
	return ""
}
