// Package wcerr defines the error taxonomy of the working-copy engine.
package wcerr

import (
	"errors"
	"fmt"
)

// Code identifies a class of working-copy error. Codes are stable; the CLI
// maps them to exit status and message text.
type Code string

const (
	// NotFound means the path is not under version control.
	NotFound Code = "not-found"
	// InvalidState means the path's current layered status forbids the
	// operation (deleting an excluded node, deleting the working-copy root).
	InvalidState Code = "invalid-state"
	// LocalModification means unsaved changes block a destructive operation
	// unless it is forced.
	LocalModification Code = "local-modification"
	// Conflicted means a residual conflict blocks the requested transition.
	Conflicted Code = "conflicted"
	// StoreCorruption means the store's format marker or a layer row could
	// not be read or parsed.
	StoreCorruption Code = "store-corruption"
	// IOFailure means a filesystem operation failed.
	IOFailure Code = "io-failure"
	// ProtocolViolation marks a programming error: reentrant use of a
	// repository session or a cross-context lock acquisition. It is fatal
	// and not something callers handle interactively.
	ProtocolViolation Code = "protocol-violation"
)

// Error is a working-copy error with a stable code and the path it concerns.
type Error struct {
	Code Code
	Path string
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Code)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Path != "" {
		s += " '" + e.Path + "'"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with a code, path, and formatted message.
func New(code Code, path, format string, args ...interface{}) *Error {
	return &Error{Code: code, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and path to an underlying error.
func Wrap(code Code, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}

// CodeOf returns the code of err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Fatal reports whether err is a programming error that callers must not
// attempt to recover from.
func Fatal(err error) bool {
	return Is(err, ProtocolViolation)
}
