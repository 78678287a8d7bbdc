// Package apperrors defines the error taxonomy shared by the extraction
// engine. Every failure surfaced to the aggregator carries a Kind so callers
// can react per category (retry, abort the kind, or just record).
package apperrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure. Values appear verbatim in the report's error
// list, so they are stable identifiers, not display strings.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindDangerousPattern Kind = "dangerous_pattern"
	KindUnknownTable     Kind = "unknown_table"
	KindAuth             Kind = "auth"
	KindRateLimited      Kind = "rate_limited"
	KindConnectionFailed Kind = "connection_failed"
	KindPermissionDenied Kind = "permission_denied"
	KindQueryRejected    Kind = "query_rejected"
	KindTimeout          Kind = "timeout"
	KindPartialExtract   Kind = "partial_extraction"
)

// Error is the engine's failure value. Source and Hint are optional.
type Error struct {
	Kind    Kind
	Message string
	// Pattern is set for dangerous_pattern errors: the exact blocked token,
	// so callers can log precisely what was rejected.
	Pattern string
	// Hint carries remediation advice (permission_denied only).
	Hint string
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient. Auth and permission
// failures are never retried; neither are validation or catalog rejections,
// which indicate bad input or a programming error rather than flaky I/O.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindConnectionFailed, KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

// Validation reports bad input that never reached the network.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// DangerousPattern reports input blocked by the dangerous-pattern scan.
func DangerousPattern(pattern, context string) *Error {
	return &Error{
		Kind:    KindDangerousPattern,
		Message: fmt.Sprintf("dangerous pattern %q detected in %s", pattern, context),
		Pattern: pattern,
	}
}

// UnknownTable reports a table name outside the catalog allow-list.
func UnknownTable(name string) *Error {
	return &Error{Kind: KindUnknownTable, Message: fmt.Sprintf("table %q is not in the allow-list", name)}
}

// Auth reports an authentication or authorization failure (HTTP 401/403).
func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// RateLimited reports an exhausted wait budget on the rate limiter.
func RateLimited(source string, err error) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf("rate limit wait budget exceeded for source %s", source), Err: err}
}

// ConnectionFailed reports a network-level failure (retryable).
func ConnectionFailed(message string, err error) *Error {
	return &Error{Kind: KindConnectionFailed, Message: message, Err: err}
}

// PermissionDenied reports insufficient privilege on the remote system.
func PermissionDenied(message, hint string, err error) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message, Hint: hint, Err: err}
}

// QueryRejected reports a statement the catalog validator refused. This
// indicates a defect in the catalog itself and is fatal to its kind.
func QueryRejected(message string, err error) *Error {
	return &Error{Kind: KindQueryRejected, Message: message, Err: err}
}

// Timeout reports an exceeded deadline.
func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// PartialExtraction wraps a failure that occurred after some entities were
// already collected, e.g. pagination breaking mid-run.
func PartialExtraction(collected int, err error) *Error {
	return &Error{
		Kind:    KindPartialExtract,
		Message: fmt.Sprintf("extraction failed after collecting %d entities", collected),
		Err:     err,
	}
}

// KindOf extracts the Kind from err, or an empty Kind for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is lets errors.Is match two taxonomy errors by Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}
