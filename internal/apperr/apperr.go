// Package apperr defines the structured error record shared by the core
// components and the HTTP adapter. Core code classifies failures by Kind;
// only the transport layer turns a Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
	"maps"
)

// Kind classifies an error for the outermost adapter.
type Kind int

const (
	KindServerInternal Kind = iota
	KindClientInput
	KindNotFound
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	default:
		return "server_internal"
	}
}

// Machine-readable error codes.
const (
	CodeSizeInvalidFormat = "SIZE_INVALID_FORMAT"
	CodeSizeOutOfBounds   = "SIZE_OUT_OF_BOUNDS"
	CodePrefixMissing     = "PREFIX_MISSING"
	CodePrefixInvalid     = "PREFIX_INVALID"
	CodeKeyMissing        = "KEY_MISSING"
	CodeKeyInvalid        = "KEY_INVALID"
	CodeNoFile            = "NO_FILE"
	CodeTooManyFiles      = "TOO_MANY_FILES"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodeEmptyFile         = "EMPTY_FILE"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeCorruptImage      = "CORRUPT_IMAGE"
	CodeImageTooLarge     = "IMAGE_TOO_LARGE"
	CodeDecryptionFailed  = "DECRYPTION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeCleanupFailed     = "CLEANUP_FAILED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeHealthCheckFailed = "HEALTH_CHECK_FAILED"
	CodeUnknown           = "UNKNOWN_ERROR"
)

// Error is the fixed error record. Message and Cause are safe to show to a
// client; err is kept for logs and errors.Is and never serialized.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   string
	Context map[string]string
	err     error
}

// New returns an Error without an underlying cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns an Error carrying err for logging and errors.Is.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, err: err}
}

// WithCause returns a copy with the client-visible cause set.
func (e *Error) WithCause(cause string) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

// With returns a copy with key=value added to the context map.
func (e *Error) With(key, value string) *Error {
	c := e.clone()
	if c.Context == nil {
		c.Context = make(map[string]string, 1)
	}
	c.Context[key] = value
	return c
}

func (e *Error) clone() *Error {
	c := *e
	if e.Context != nil {
		c.Context = maps.Clone(e.Context)
	}
	return &c
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the Kind of err, KindServerInternal when err is not an *Error.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindServerInternal
}

func ClientInput(code, message string) *Error {
	return New(KindClientInput, code, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func Unauthorized(message string) *Error {
	return New(KindAuth, CodeUnauthorized, message)
}

func Internal(code, message string, err error) *Error {
	return Wrap(KindServerInternal, code, message, err)
}
