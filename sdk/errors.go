package sdk

import "fmt"

// Error represents an API error
type Error struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("status: %d, code: %d, msg: %s", e.Status, e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Is matches errors by code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam   = 1001
	CodeInternalServer = 1002
	CodeUnauthorized   = 1003
	CodeNotFound       = 1005

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenMissing  = 2003
	CodeTokenMismatch = 2004
	CodeUserNotFound  = 2006

	// Message errors (4xxx)
	CodeEmptyContent = 4001
	CodeSendFailed   = 4005
	CodePullFailed   = 4006
)

// Predefined errors
var (
	ErrInvalidParam   = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "unauthorized")
	ErrTokenInvalid   = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenMissing   = NewError(CodeTokenMissing, "token missing")
	ErrUserNotFound   = NewError(CodeUserNotFound, "user not found")
	ErrEmptyContent   = NewError(CodeEmptyContent, "message content is empty")
)
