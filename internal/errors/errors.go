// Package errors implements the error taxonomy of spec.md §7, adapted
// from the teacher's internal/errors.SentraError: the same
// SourceLocation/StackFrame/Error() rendering shape, generalized from
// Sentra's four error kinds to the nine named by the specification.
package errors

import (
	"fmt"
	"strings"

	"github.com/kr/text"
	pkgerrors "github.com/pkg/errors"
)

// Kind names one of the nine error categories from spec.md §7.
type Kind string

const (
	ParseError       Kind = "ParseError"
	NameError        Kind = "NameError"
	ArityError       Kind = "ArityError"
	TypeError        Kind = "TypeError"
	ShapeError       Kind = "ShapeError"
	MutationError    Kind = "MutationError"
	LocalityError    Kind = "LocalityError"
	AssertionFailure Kind = "AssertionFailure"
	UserError        Kind = "UserError"
)

// SourceLocation is a position in PhySL source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is one frame in a primitive call stack, named by the
// primitive's hierarchical name (internal/primitive.Name.String()).
type StackFrame struct {
	Primitive string
	Line      int
	Column    int
}

// PhylanxError carries source location and an optional causal chain
// (wrapped via github.com/pkg/errors so embedding hosts can unwrap to
// the root cause with pkgerrors.Cause).
type PhylanxError struct {
	Kind      Kind
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	cause     error
}

func (e *PhylanxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", e.Kind, e.Message)

	if e.Location.File != "" || e.Location.Line != 0 {
		fmt.Fprintf(&b, "  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column)
		if e.Source != "" {
			fmt.Fprintf(&b, "\n  %d | %s\n", e.Location.Line, e.Source)
			prefix := fmt.Sprintf("%d | ", e.Location.Line)
			caret := strings.Repeat(" ", len(prefix))
			if e.Location.Column > 0 {
				caret += strings.Repeat(" ", e.Location.Column-1)
			}
			fmt.Fprintf(&b, "  %s^\n", caret)
		}
	}

	if len(e.CallStack) > 0 {
		b.WriteString("\nCall Stack:\n")
		for _, f := range e.CallStack {
			fmt.Fprintf(&b, "  at %s (%d:%d)\n", f.Primitive, f.Line, f.Column)
		}
	}

	if e.cause != nil {
		b.WriteString("\nCaused by:\n")
		b.WriteString(text.Indent(e.cause.Error(), "  "))
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap exposes the causal chain to errors.Is/errors.As and to
// github.com/pkg/errors.Cause.
func (e *PhylanxError) Unwrap() error { return e.cause }

func newErr(kind Kind, msg string, loc SourceLocation) *PhylanxError {
	return &PhylanxError{Kind: kind, Message: msg, Location: loc}
}

func NewParseError(msg, file string, line, col int) *PhylanxError {
	return newErr(ParseError, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewNameError(identifier, file string, line, col int) *PhylanxError {
	return newErr(NameError, fmt.Sprintf("unresolved identifier %q", identifier), SourceLocation{File: file, Line: line, Column: col})
}

func NewArityError(name string, expected, got int, file string, line, col int) *PhylanxError {
	msg := fmt.Sprintf("%s expects %d argument(s), got %d", name, expected, got)
	return newErr(ArityError, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewTypeError(msg string, file string, line, col int) *PhylanxError {
	return newErr(TypeError, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewShapeError(msg string, file string, line, col int) *PhylanxError {
	return newErr(ShapeError, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewMutationError(target string, file string, line, col int) *PhylanxError {
	return newErr(MutationError, fmt.Sprintf("cannot store into non-mutable target %q", target), SourceLocation{File: file, Line: line, Column: col})
}

func NewLocalityError(msg string, file string, line, col int) *PhylanxError {
	return newErr(LocalityError, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewAssertionFailure(msg string, file string, line, col int) *PhylanxError {
	return newErr(AssertionFailure, msg, SourceLocation{File: file, Line: line, Column: col})
}

func NewUserError(msg string, file string, line, col int) *PhylanxError {
	return newErr(UserError, msg, SourceLocation{File: file, Line: line, Column: col})
}

// WithSource attaches the offending source line for caret rendering.
func (e *PhylanxError) WithSource(src string) *PhylanxError {
	e.Source = src
	return e
}

// WithStack attaches a call stack (outermost frame last, matching the
// order primitives unwind as an error propagates to its nearest
// awaiter).
func (e *PhylanxError) WithStack(stack []StackFrame) *PhylanxError {
	e.CallStack = stack
	return e
}

// WithCause wraps an underlying error (e.g. a file-not-found from an
// external kernel) using github.com/pkg/errors so the chain survives
// at the embedding boundary.
func (e *PhylanxError) WithCause(cause error) *PhylanxError {
	e.cause = pkgerrors.WithStack(cause)
	return e
}

// AddStackFrame appends one frame to the call stack.
func (e *PhylanxError) AddStackFrame(primitiveName string, line, col int) *PhylanxError {
	e.CallStack = append(e.CallStack, StackFrame{Primitive: primitiveName, Line: line, Column: col})
	return e
}
