package transport

import "fmt"

type ErrorCode string

const (
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeAuthFailed        ErrorCode = "AUTH_FAILED"
	ErrCodeMessageParseError ErrorCode = "MESSAGE_PARSE_ERROR"
	ErrCodeSendFailed        ErrorCode = "SEND_FAILED"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeUnexpectedClose   ErrorCode = "UNEXPECTED_CLOSE"
)

// Recoverable reports whether the error class is handled by the automatic
// backoff-reconnect path. Non-recoverable codes are surfaced once and leave
// the caller to re-authenticate or re-issue the operation.
func (c ErrorCode) Recoverable() bool {
	switch c {
	case ErrCodeConnectionFailed, ErrCodeTimeout, ErrCodeUnexpectedClose:
		return true
	}
	return false
}

type Error struct {
	Code    ErrorCode
	Message string

	cause error
}

func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}
