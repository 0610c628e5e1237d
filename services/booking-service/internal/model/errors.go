package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores for a missing row.
var ErrNotFound = errors.New("not found")

// ErrOutOfRange is returned by stores when a balance would leave the range
// of MaxMoney.
var ErrOutOfRange = errors.New("money out of range")

type Code string

const (
	CodeSlotClosed          Code = "SLOT_CLOSED"
	CodeSlotFull            Code = "SLOT_FULL"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeUnknown             Code = "UNKNOWN"
)

// Error is the typed failure returned by every domain operation. Details
// carries the context a caller needs to render a specific message.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code Code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unknown wraps a backend failure.
func Unknown(op string, err error) *Error {
	return &Error{Code: CodeUnknown, Message: op + " failed, please retry", Err: err}
}

// CodeOf classifies err; anything that is not an *Error is UNKNOWN.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// AsError returns err as *Error, wrapping unclassified errors as UNKNOWN.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unknown("operation", err)
}
