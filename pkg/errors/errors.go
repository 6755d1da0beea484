package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"linkvm/pkg/source"
)

// LinkvmError is the interface implemented by all errors raised while
// materializing, linking or running compiled units.
type LinkvmError interface {
	error
	Pos() Position
	Kind() string // e.g. "Reference", "Type", "Format"
	// Message returns the error message without position info.
	Message() string
	Unwrap() error
}

// Sentinel errors for conditions callers branch on.
var (
	// ErrUnitCleared is returned when a unit is used after its runtime tables were released.
	ErrUnitCleared = stderrors.New("compiled unit has been cleared")

	// ErrModuleNotFound is returned when no provider can supply a unit for a URL.
	ErrModuleNotFound = stderrors.New("module not found")

	// ErrChecksumMismatch is returned when a serialized unit fails checksum verification.
	ErrChecksumMismatch = stderrors.New("checksum mismatch")
)

// --- Concrete Error Types ---

// ReferenceError is raised when an import or re-export cannot be resolved.
type ReferenceError struct {
	Position
	Msg   string
	Cause error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("ReferenceError at %s: %s", e.Position, e.Msg)
}
func (e *ReferenceError) Pos() Position   { return e.Position }
func (e *ReferenceError) Kind() string    { return "Reference" }
func (e *ReferenceError) Message() string { return e.Msg }
func (e *ReferenceError) Unwrap() error   { return e.Cause }
func (e *ReferenceError) CausedBy(cause error) *ReferenceError {
	e.Cause = cause
	return e
}

// TypeError is raised when a value is consumed as something it is not,
// e.g. a null native module read as an object.
type TypeError struct {
	Position
	Msg   string
	Cause error
}

func (e *TypeError) Error() string {
	if !e.Position.IsValid() {
		return "TypeError: " + e.Msg
	}
	return fmt.Sprintf("TypeError at %s: %s", e.Position, e.Msg)
}
func (e *TypeError) Pos() Position   { return e.Position }
func (e *TypeError) Kind() string    { return "Type" }
func (e *TypeError) Message() string { return e.Msg }
func (e *TypeError) Unwrap() error   { return e.Cause }
func (e *TypeError) CausedBy(cause error) *TypeError {
	e.Cause = cause
	return e
}

// FormatError reports a serialized unit that cannot be used: bad magic,
// version or library hash mismatch, stale timestamp, moved source.
type FormatError struct {
	Position
	Msg   string
	Cause error
}

func (e *FormatError) Error() string {
	if e.File == "" {
		return "Format Error: " + e.Msg
	}
	return fmt.Sprintf("Format Error in %s: %s", e.File, e.Msg)
}
func (e *FormatError) Pos() Position   { return e.Position }
func (e *FormatError) Kind() string    { return "Format" }
func (e *FormatError) Message() string { return e.Msg }
func (e *FormatError) Unwrap() error   { return e.Cause }
func (e *FormatError) CausedBy(cause error) *FormatError {
	e.Cause = cause
	return e
}

// --- Error Reporting ---

// DisplayErrors writes a list of errors in a user-friendly format, one per line
// group, grouped under the position of the failing entry.
func DisplayErrors(w io.Writer, errs []LinkvmError) {
	DisplayErrorsWithSource(w, nil, errs)
}

// DisplayErrorsWithSource is DisplayErrors with the failing line of src and
// a column marker printed under each positioned error.
func DisplayErrorsWithSource(w io.Writer, src *source.File, errs []LinkvmError) {
	for _, err := range errs {
		pos := err.Pos()
		if src != nil && pos.File == "" {
			pos.File = src.DisplayPath()
		}
		fmt.Fprintf(w, "%s Error at %s: %s\n", err.Kind(), pos, err.Message())
		if src != nil {
			if line, ok := src.Line(pos.Line); ok {
				fmt.Fprintf(w, "  %s\n", line)
				if pos.Column > 0 {
					fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", pos.Column-1))
				}
			}
		}
		for cause := err.Unwrap(); cause != nil; cause = stderrors.Unwrap(cause) {
			fmt.Fprintf(w, "  caused by: %s\n", firstLine(cause.Error()))
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Is, As and Unwrap are re-exported so callers need only one errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error       { return stderrors.Unwrap(err) }
func New(text string) error         { return stderrors.New(text) }
