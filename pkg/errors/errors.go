// Package errors defines the error taxonomy of the indexing pipeline. Every
// failure that crosses a package boundary is either one of the sentinels
// below or an *Error whose Kind is one of them, so callers can classify it
// with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrRead marks data that could not be read. For a source document it is
	// recoverable: the document is skipped and the run continues. For a
	// segment it aborts the merge.
	ErrRead = errors.New("read error")
	// ErrWrite marks a segment or final-index write failure.
	ErrWrite = errors.New("write error")
	// ErrFormat marks a segment that violates the on-disk structure or
	// sort invariant.
	ErrFormat = errors.New("format error")
	// ErrChannelClosed is returned by a stage whose peer terminated early.
	ErrChannelClosed = errors.New("channel closed")
	// ErrInvalidInput marks bad configuration or arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries the failing operation and file alongside its kind.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error() + ": " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func New(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func Read(op, path string, err error) *Error {
	return New(ErrRead, op, path, err)
}

func Write(op, path string, err error) *Error {
	return New(ErrWrite, op, path, err)
}

func Format(op, path string, err error) *Error {
	return New(ErrFormat, op, path, err)
}

// Formatf builds a format error from a message rather than a cause.
func Formatf(path string, format string, args ...any) *Error {
	return New(ErrFormat, fmt.Sprintf(format, args...), path, nil)
}

// RetainsSegments reports whether a run that failed with err should leave
// its segments on disk: after a format error they are kept for inspection,
// after a read error so that the merge can be retried.
func RetainsSegments(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, ErrRead)
}
