// Package apierr defines the typed error taxonomy shared by the submission
// API, dispatcher workers and nightly scheduler.
package apierr

import "errors"

// Kind is one of the named error conditions in the error-handling design.
type Kind string

const (
	InvalidRequest     Kind = "InvalidRequest"
	AuthFailed         Kind = "AuthFailed"
	QuotaExceeded      Kind = "QuotaExceeded"
	ModelForbidden     Kind = "ModelForbidden"
	ModelNotFound      Kind = "ModelNotFound"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	AllProvidersDown   Kind = "AllProvidersDown"
	UpstreamFailed     Kind = "UpstreamFailed"
	UpstreamEmpty      Kind = "UpstreamEmpty"
	NoResponse         Kind = "NoResponse"
	RetryableUpstream  Kind = "RetryableUpstream"
	AnalysisFailed     Kind = "AnalysisFailed"
	DBUpdateFailed     Kind = "DBUpdateFailed"
)

// Error wraps an underlying cause with a taxonomy Kind so callers can
// branch on classification without string matching.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether err should cause a nack/redelivery rather than
// a forced terminal-failure write (§4.4c).
func Retryable(err error) bool {
	return Is(err, RetryableUpstream) || Is(err, UpstreamUnavailable)
}
