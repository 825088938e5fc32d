package submission

import "errors"

// Kind classifies a failure so callers can tell "fix your input" from
// "not allowed right now".
type Kind string

const (
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindValidation       Kind = "VALIDATION_ERROR"
	KindConflict         Kind = "CONFLICT"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindInvalidState     Kind = "INVALID_STATE"
	KindIncompleteUpload Kind = "INCOMPLETE_UPLOAD"
	KindInternal         Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	// Missing lists document types for KindIncompleteUpload.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind carried by err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
