package deb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies build failures.
type ErrorKind int

const (
	// ErrConfiguration reports a missing or empty required package attribute.
	ErrConfiguration ErrorKind = iota
	// ErrMetadataConflict reports a reserved or duplicated control field, or a duplicated template id.
	ErrMetadataConflict
	// ErrValidation reports a template entry lacking its id or short description.
	ErrValidation
	// ErrIO reports a stream, compression or temporary storage failure.
	ErrIO
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrConfiguration:
		return "Configuration"
	case ErrMetadataConflict:
		return "MetadataConflict"
	case ErrValidation:
		return "Validation"
	case ErrIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Error is returned by every failing build step. Subject names the field,
// template or member that caused it, so the misconfiguration can be located.
type Error struct {
	Kind    ErrorKind
	Subject string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Subject, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, subject string, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// ioError wraps err as an ErrIO failure unless it already carries a kind.
func ioError(subject string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrIO, Subject: subject, Err: err}
}

// KindOf returns the kind of the innermost *Error in err's chain.
// ok is false when err carries no kind.
func KindOf(err error) (kind ErrorKind, ok bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		kind, ok = e.Kind, true
		err = e.Err
	}
	return kind, ok
}

// BuildError is the error returned by Package.WriteTo and Package.WriteFile.
// No part of the output is valid when it is returned.
type BuildError struct {
	Package string
	// Stage is the build stage that failed, e.g. "writing control.tar.gz".
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building package %q: %s: %v", e.Package, e.Stage, e.Err)
}

// Unwrap returns the wrapped error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
