package usecase

import "fmt"

type ErrorCode string

const (
	ErrorTransport   ErrorCode = "TRANSPORT_ERROR"
	ErrorDecode      ErrorCode = "DECODE_ERROR"
	ErrorApplication ErrorCode = "APPLICATION_ERROR"
	ErrorTimedOut    ErrorCode = "TIMED_OUT"
	ErrorCanceled    ErrorCode = "CANCELED"
)

// Error is a failed submission. Message is the text the service sent back,
// set only for ErrorApplication.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
