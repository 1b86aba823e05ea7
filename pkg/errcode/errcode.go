package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a business error
type Error struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// Status returns the HTTP status the error is surfaced with
func (e *Error) Status() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

// Is reports whether target carries the same code, so wrapped copies still
// match their sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates a new error with code, HTTP status and message
func New(code, status int, msg string) *Error {
	return &Error{Code: code, Msg: msg, status: status}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code:   e.Code,
		Msg:    fmt.Sprintf("%s: %v", e.Msg, err),
		status: e.status,
	}
}

// From extracts an *Error from err, falling back to ErrInternalServer
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServer
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, http.StatusOK, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, http.StatusBadRequest, "invalid parameter")
	ErrInternalServer = New(1002, http.StatusInternalServerError, "internal server error")
	ErrUnauthorized   = New(1003, http.StatusUnauthorized, "unauthorized")
	ErrNotFound       = New(1005, http.StatusNotFound, "not found")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, http.StatusUnauthorized, "token invalid")
	ErrTokenMissing  = New(2003, http.StatusUnauthorized, "token missing")
	ErrTokenMismatch = New(2004, http.StatusUnauthorized, "token user mismatch")
	ErrUserNotFound  = New(2006, http.StatusNotFound, "user not found")

	// Message errors (4xxx)
	ErrEmptyContent  = New(4001, http.StatusBadRequest, "message content is empty")
	ErrChannelExists = New(4002, http.StatusConflict, "channel already exists")
	ErrSendFailed    = New(4005, http.StatusInternalServerError, "message send failed")
	ErrPullFailed    = New(4006, http.StatusInternalServerError, "message pull failed")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, http.StatusServiceUnavailable, "connection over max limit")
	ErrInvalidProtocol = New(5003, http.StatusBadRequest, "invalid protocol")
)
