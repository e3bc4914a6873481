// Package equiperr provides the rustc-style error type shared across the
// pipeline: a tagged union of the kinds spec.md §7 names, each optionally
// carrying a source snippet for context.
//
// Grounded on the teacher's pkg/errors/enhanced.go: an EnhancedError
// (message, file position, source-line context, an optional caret
// annotation) rendered by a single Format method. The source-cache and
// go/token.FileSet plumbing there is Go-specific; equiperr instead carries
// a go_token.Position directly, since that's what rust/token already
// produces for every span.
package equiperr

import (
	"fmt"
	go_token "go/token"
	"strings"
)

// Kind tags the fatal error categories of spec.md §7. Warning is handled
// separately (it is never fatal, so it is never wrapped in an *Error).
type Kind int

const (
	KindParseError Kind = iota
	KindBrokenEdit
	KindMissingModuleFile
	KindMacroPanic
	KindHostError
	KindUnresolvedPath
)

func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "parse error"
	case KindBrokenEdit:
		return "broken edit"
	case KindMissingModuleFile:
		return "missing module file"
	case KindMacroPanic:
		return "macro panic"
	case KindHostError:
		return "host error"
	case KindUnresolvedPath:
		return "unresolved path"
	default:
		return "error"
	}
}

// Snippet is the rustc-style source context rendered alongside a message:
// the line the error occurs on, a caret under the offending span, and an
// optional annotation after the caret.
type Snippet struct {
	Filename   string
	Line       int // 1-indexed
	Column     int // 1-indexed
	Length     int
	SourceLine string
	Annotation string
}

// Error is a kind-tagged pipeline error with optional source context. Only
// the include stage returns it; edit, modexpand and procmacro report their
// failures through their own error types.
type Error struct {
	Kind    Kind
	Message string
	Snippet *Snippet
	Cause   error
}

// New creates a plain *Error with no source context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a plain *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At attaches a source snippet built from a go/token.Position and the full
// source text (used to extract the offending line).
func (e *Error) At(pos go_token.Position, src string, length int, annotation string) *Error {
	line := lineAt(src, pos.Line)
	e.Snippet = &Snippet{
		Filename:   pos.Filename,
		Line:       pos.Line,
		Column:     pos.Column,
		Length:     length,
		SourceLine: line,
		Annotation: annotation,
	}
	return e
}

// WithCause records the underlying error this one wraps, if any.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func lineAt(src string, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if line-1 >= len(lines) {
		return ""
	}
	return lines[line-1]
}

// Error implements the error interface, rendering the rustc-style
// multi-line diagnostic: a header line, then (if a Snippet is present) the
// source line with a caret underline, then the cause if any.
func (e *Error) Error() string {
	var buf strings.Builder
	if e.Snippet != nil && e.Snippet.Line > 0 {
		fmt.Fprintf(&buf, "%s: %s\n  --> %s:%d:%d\n", e.Kind, e.Message, e.Snippet.Filename, e.Snippet.Line, e.Snippet.Column)
		fmt.Fprintf(&buf, "   | %s\n", e.Snippet.SourceLine)
		length := e.Snippet.Length
		if length < 1 {
			length = 1
		}
		indent := e.Snippet.Column - 1
		if indent < 0 {
			indent = 0
		}
		fmt.Fprintf(&buf, "   | %s%s", strings.Repeat(" ", indent), strings.Repeat("^", length))
		if e.Snippet.Annotation != "" {
			fmt.Fprintf(&buf, " %s", e.Snippet.Annotation)
		}
		buf.WriteString("\n")
	} else {
		fmt.Fprintf(&buf, "%s: %s\n", e.Kind, e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&buf, "caused by: %v\n", e.Cause)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (e *Error) Unwrap() error { return e.Cause }

// Warning is spec.md §7's non-fatal diagnostic: a recoverable condition
// (a root-level renaming `extern crate`, a recoverable host error) that is
// reported to the caller's sink rather than aborting the run.
type Warning struct {
	Message string
}

func (w Warning) String() string { return w.Message }
