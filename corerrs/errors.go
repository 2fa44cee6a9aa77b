// Package corerrs defines the core's error taxonomy, built on
// github.com/openimsdk/tools/errs instead of bare errors.New, so that
// every core error carries a stable code a host can switch on.
package corerrs

import (
	"errors"
	"fmt"

	"github.com/openimsdk/tools/errs"
)

// Codes for the error taxonomy. Values are stable and safe to persist in
// logs/metrics labels.
const (
	CodeNetwork              = 10001
	CodeAuthenticationFailed = 10002
	CodeInvalidSettings      = 10003
	CodeInvalidChallenge     = 10004
	CodeNotImplemented       = 10005
	CodeCancelled            = 10006
	CodeOtherServer          = 10007
)

// Sentinel taxonomy members. Use errors.Is against these, or wrap them
// with context via the constructor helpers below (Network,
// AuthenticationFailed, InvalidSettings, ...).
var (
	ErrNetwork              = errs.New("network error")
	ErrAuthenticationFailed = errs.New("authentication failed")
	ErrInvalidSettings      = errs.New("invalid account settings")
	ErrInvalidChallenge     = errs.New("invalid protocol challenge")
	ErrNotImplemented       = errs.New("capability not implemented")
	ErrCancelled            = errs.New("operation cancelled")
	ErrOtherServer          = errs.New("server refused the operation")
)

// taggedError pairs a taxonomy sentinel with a formatted detail message
// and an optional cause, while still answering errors.Is against its
// sentinel and errors.Unwrap to its cause.
type taggedError struct {
	code   int
	kind   error
	detail string
	cause  error
}

func (e *taggedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.detail, e.cause)
	}
	if e.detail != "" {
		return fmt.Sprintf("%s: %s", e.kind, e.detail)
	}
	return e.kind.Error()
}

func (e *taggedError) Unwrap() error { return e.cause }

func (e *taggedError) Is(target error) bool {
	return errors.Is(e.kind, target)
}

// Code returns the taxonomy code of err, or 0 if err was not produced by
// this package.
func Code(err error) int {
	var te *taggedError
	if errors.As(err, &te) {
		return te.code
	}
	return 0
}

func wrap(code int, kind error, cause error, format string, args ...any) error {
	return &taggedError{code: code, kind: kind, cause: cause, detail: fmt.Sprintf(format, args...)}
}

// Network builds a Network-taxonomy error wrapping cause with detail.
func Network(cause error, format string, args ...any) error {
	return wrap(CodeNetwork, ErrNetwork, cause, format, args...)
}

// AuthenticationFailed builds an AuthenticationFailed-taxonomy error.
func AuthenticationFailed(cause error, format string, args ...any) error {
	return wrap(CodeAuthenticationFailed, ErrAuthenticationFailed, cause, format, args...)
}

// InvalidSettings builds an InvalidSettings-taxonomy error.
func InvalidSettings(format string, args ...any) error {
	return wrap(CodeInvalidSettings, ErrInvalidSettings, nil, format, args...)
}

// InvalidChallenge builds an InvalidChallenge-taxonomy error; always
// fatal to the enclosing handshake.
func InvalidChallenge(format string, args ...any) error {
	return wrap(CodeInvalidChallenge, ErrInvalidChallenge, nil, format, args...)
}

// NotImplemented builds a NotImplemented-taxonomy error naming the
// missing capability.
func NotImplemented(capability string) error {
	return wrap(CodeNotImplemented, ErrNotImplemented, nil, "protocol does not implement %s", capability)
}

// Cancelled builds a Cancelled-taxonomy error.
func Cancelled() error {
	return wrap(CodeCancelled, ErrCancelled, nil, "")
}

// OtherServer builds an OtherServer-taxonomy error (semantically valid
// request, server-side refusal).
func OtherServer(format string, args ...any) error {
	return wrap(CodeOtherServer, ErrOtherServer, nil, format, args...)
}
