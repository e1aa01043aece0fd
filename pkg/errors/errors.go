package errors

import (
	stderrors "errors"
	"fmt"
)

// Error represents a typed error returned by the JWKS client
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeSourceUnavailable indicates a transport failure, a timeout or a
	// non-success HTTP status while fetching the key set
	ErrorTypeSourceUnavailable ErrorType = "SourceUnavailable"
	// ErrorTypeMalformedDocument indicates that fetched bytes are not a key set document
	ErrorTypeMalformedDocument ErrorType = "MalformedDocument"
	// ErrorTypeKeyNotFound indicates that a kid is absent after a fresh fetch
	ErrorTypeKeyNotFound ErrorType = "KeyNotFound"
	// ErrorTypeConfiguration indicates invalid construction input
	ErrorTypeConfiguration ErrorType = "ConfigurationError"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its Type.
var (
	ErrSourceUnavailable = &Error{Type: ErrorTypeSourceUnavailable}
	ErrMalformedDocument = &Error{Type: ErrorTypeMalformedDocument}
	ErrKeyNotFound       = &Error{Type: ErrorTypeKeyNotFound}
	ErrConfiguration     = &Error{Type: ErrorTypeConfiguration}
)

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" && e.Err == nil {
		return string(e.Type)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewError creates a new typed error
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or an empty
// ErrorType when there is none.
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// only the source being unreachable can change by trying again later,
	// a broken document or an unknown kid will not
	return TypeOf(err) == ErrorTypeSourceUnavailable
}

// NewSourceUnavailableError creates a new SourceUnavailable error
func NewSourceUnavailableError(message string, err error) *Error {
	return NewError(ErrorTypeSourceUnavailable, message, err)
}

// NewMalformedDocumentError creates a new MalformedDocument error
func NewMalformedDocumentError(message string, err error) *Error {
	return NewError(ErrorTypeMalformedDocument, message, err)
}

// NewKeyNotFoundError creates a new KeyNotFound error
func NewKeyNotFoundError(kid string) *Error {
	return NewError(ErrorTypeKeyNotFound, fmt.Sprintf("no key found for kid %q", kid), nil)
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(message string, err error) *Error {
	return NewError(ErrorTypeConfiguration, message, err)
}
