// Package errs is the structured-error type startup and config failures are
// built from, per §7: hot-path subsystems never return error (bool/sentinel
// zero values only), but anything outside the hot path gets a categorized,
// wrappable error. Grounded on abdoElHodaky/tradSys's
// internal/common/errors.TradSysError, trimmed to the error codes this
// module's own surface can actually produce (no HTTP/auth/DB codes — this
// is a single in-process binary with neither).
package errs

import (
	"fmt"
	"runtime"
	"time"
)

// Code categorizes an Error.
type Code string

const (
	CodeConfigMissing   Code = "CONFIG_MISSING"
	CodeConfigInvalid   Code = "CONFIG_INVALID"
	CodeGatewayInit     Code = "GATEWAY_INIT"
	CodeOrderRejected   Code = "ORDER_REJECTED"
	CodeRiskLimit       Code = "RISK_LIMIT_EXCEEDED"
	CodePositionLimit   Code = "POSITION_LIMIT_EXCEEDED"
)

// Error is a categorized, wrappable error carrying its call site and an
// optional structured detail set.
type Error struct {
	Code      Code
	Message   string
	Details   map[string]any
	Timestamp time.Time
	File      string
	Line      int
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value pair for structured logging at the catch
// site.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds an Error with no cause.
func New(code Code, message string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line}
}

// Wrap builds an Error around an existing error, or returns nil if err is
// nil, so call sites can write `return errs.Wrap(err, ...)` unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{Code: code, Message: message, Timestamp: time.Now(), File: file, Line: line, Cause: err}
}

// CodeOf extracts the Code from err's chain, or "" if none is found.
func CodeOf(err error) Code {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			target = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if target == nil {
		return ""
	}
	return target.Code
}
