package protocol

import (
	"errors"
	"fmt"
)

// Code classifies a Protocol Error.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeTimeout             Code = "TIMEOUT"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeUnexpectedMessage   Code = "UNEXPECTED_MESSAGE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeDuplicateConnection Code = "DUPLICATE_CONNECTION"
	CodeMatchmakingFailed   Code = "MATCHMAKING_FAILED"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeMatchEnded          Code = "MATCH_ENDED"
)

// Error is the terminal message sent before a connection is closed. It
// doubles as the error value carried through the core.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	cause error
}

func (*Error) Kind() Kind { return KindError }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, &Error{Code: CodeTimeout}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// AsError converts any failure into the Protocol Error sent to the client.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return Wrap(CodeUnknown, err, "internal error")
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

var (
	ErrHeartbeatTimeout = Errorf(CodeTimeout, "heartbeat deadline exceeded")
	ErrHandshakeTimeout = Errorf(CodeTimeout, "handshake not completed in time")
	ErrMatchEnded       = Errorf(CodeMatchEnded, "match ended")
)

// Unexpected reports a valid message that is illegal in the current phase.
func Unexpected(kind Kind, phase fmt.Stringer) *Error {
	return Errorf(CodeUnexpectedMessage, "unexpected %s message while %s", kind, phase)
}
