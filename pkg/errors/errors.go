package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible classification of a failure.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit          Code = "RATE_LIMITED"
	CodeStorage            Code = "STORAGE_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata controls how a code is rendered. ExposeMessage lets the error's
// own message reach the client; otherwise PublicMessage is sent.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var catalog = map[Code]Metadata{
	CodeValidation:         {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:       {http.StatusUnauthorized, false, "authentication required", true, false},
	CodeForbidden:          {http.StatusForbidden, false, "access denied", true, false},
	CodeNotFound:           {http.StatusNotFound, false, "resource not found", true, false},
	CodeConflict:           {http.StatusConflict, false, "conflict detected", true, false},
	CodePreconditionFailed: {http.StatusUnprocessableEntity, false, "operation not allowed in current state", true, true},
	CodeIdempotency:        {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:          {http.StatusTooManyRequests, true, "too many requests", true, false},
	CodeStorage:            {http.StatusBadGateway, true, "file storage unavailable", false, false},
	CodeInternal:           {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:         {http.StatusServiceUnavailable, true, "dependency unavailable", false, true},
}

// Meta returns the rendering rules for c. Unknown codes render as internal errors.
func (c Code) Meta() Metadata {
	if m, ok := catalog[c]; ok {
		return m
	}
	return catalog[CodeInternal]
}

// Error is a coded error. The message is for the client when the code
// exposes it; the cause is for logs only.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails sets structured details and returns the receiver for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// PublicMessage is the text safe to send to the client.
func (e *Error) PublicMessage() string {
	meta := e.Code().Meta()
	if meta.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return string(e.code) + ": " + e.message
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return As(err).codeOr("") == code
}

func (e *Error) codeOr(fallback Code) Code {
	if e == nil {
		return fallback
	}
	return e.code
}
