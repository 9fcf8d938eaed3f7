package notify

import (
	"errors"
	"fmt"
)

// Code classifies a delivery failure.
type Code string

const (
	CodeInvalidToken  Code = "messaging/invalid-registration-token"
	CodeNotRegistered Code = "messaging/registration-token-not-registered"
	CodeRateLimited   Code = "messaging/message-rate-exceeded"
	CodeUnavailable   Code = "messaging/server-unavailable"
	CodeUnknown       Code = "messaging/unknown-error"
)

// SendError is a per-token or per-topic delivery failure.
type SendError struct {
	Code Code
	Err  error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the failure code from err. Errors that are not a SendError
// report CodeUnknown.
func CodeOf(err error) Code {
	var se *SendError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// IsPermanent reports whether err means the token will never accept
// deliveries again and should be pruned.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeInvalidToken, CodeNotRegistered:
		return true
	default:
		return false
	}
}
