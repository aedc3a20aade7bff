// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-fiber.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrAlreadyStarted   = errors.New("fiber already started")
	ErrFiberStopped     = errors.New("fiber is stopped")
	ErrSchedulerClosed  = errors.New("scheduler is closed")
	ErrEndOfStream      = errors.New("end of stream")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrCallbackFailure  = errors.New("callback failure")
	ErrUnknownFiberKind = errors.New("unknown fiber kind")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAlreadyStarted
	ErrCodeStopped
	ErrCodeSchedulerClosed
	ErrCodeEndOfStream
	ErrCodeCallbackFailure
	ErrCodeInternal
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument: ErrInvalidArgument,
	ErrCodeAlreadyStarted:  ErrAlreadyStarted,
	ErrCodeStopped:         ErrFiberStopped,
	ErrCodeSchedulerClosed: ErrSchedulerClosed,
	ErrCodeEndOfStream:     ErrEndOfStream,
	ErrCodeCallbackFailure: ErrCallbackFailure,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the sentinel behind the code and the wrapped cause, so
// errors.Is(err, ErrFiberStopped) holds for an ErrCodeStopped error.
func (e *Error) Unwrap() []error {
	var out []error
	if s, ok := codeSentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
