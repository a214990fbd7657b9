package users

import "errors"

// ErrInvalidInput indicates a required field was missing or empty.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound indicates no record exists for the requested ID.
var ErrNotFound = errors.New("user not found")

// Error codes carried by ServiceError.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL"
)

// Client-facing messages. These are part of the HTTP contract.
const (
	MsgCreateFieldsRequired = "Both name and email are required."
	MsgUpdateFieldsRequired = "Both name and email are required for update."
	MsgUserNotFound         = "User not found."
	MsgInternal             = "Internal server error."
)

// ServiceError is returned by every failing Service operation.
//
// Code is one of the Code* constants, Message is safe to show to API clients,
// and Err is the underlying cause. errors.Is(err, ErrInvalidInput) and
// errors.Is(err, ErrNotFound) work through Unwrap.
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func invalidInput(msg string) *ServiceError {
	return &ServiceError{Code: CodeInvalidInput, Message: msg, Err: ErrInvalidInput}
}

func notFound() *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: MsgUserNotFound, Err: ErrNotFound}
}

func internal(err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: MsgInternal, Err: err}
}

// CodeOf returns the ServiceError code carried by err, or CodeInternal for any
// other non-nil error. It returns "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
