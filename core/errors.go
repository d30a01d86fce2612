package core

import "github.com/pkg/errors"

var (
	// ErrNotFound is the cause of every "row not found" error; the API maps it to 404.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is the cause of every permission error; the API maps it to 403.
	ErrForbidden = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// IsNotFound reports whether err was caused by ErrNotFound or a domain error wrapping it.
func IsNotFound(err error) bool {
	return isCause(err, ErrNotFound)
}

// IsForbidden reports whether err was caused by ErrForbidden.
func IsForbidden(err error) bool {
	return isCause(err, ErrForbidden)
}

func isCause(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		if nf, ok := err.(interface{ NotFound() bool }); ok && target == ErrNotFound && nf.NotFound() {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

// notFoundError names the missing thing while still being an ErrNotFound.
type notFoundError struct {
	what string
}

func (e notFoundError) Error() string  { return e.what + " not found" }
func (e notFoundError) NotFound() bool { return true }

// NewNotFoundError returns an error such that IsNotFound(err) is true.
func NewNotFoundError(what string) error {
	return notFoundError{what: what}
}
