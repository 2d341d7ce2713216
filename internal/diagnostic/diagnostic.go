// Package diagnostic provides the structured error type Anubis uses to
// report failures from every stage of the build: lexing, parsing,
// resolution, projection, job execution, and external tool invocation.
package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a Diagnostic by the stage that raised it.
type Kind int

const (
	Lex Kind = iota
	Parse
	Resolve
	Projection
	UnknownField
	Cycle
	JobFailure
	ToolInvocation
	RejectedByDep
)

func (k Kind) String() string {
	switch k {
	case Lex:
		return "lex"
	case Parse:
		return "parse"
	case Resolve:
		return "resolve"
	case Projection:
		return "projection"
	case UnknownField:
		return "unknown field"
	case Cycle:
		return "cycle"
	case JobFailure:
		return "job failure"
	case ToolInvocation:
		return "tool invocation"
	case RejectedByDep:
		return "rejected by dependency"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks against a Diagnostic's Kind.
var (
	ErrLex            = errors.New("lex error")
	ErrParse          = errors.New("parse error")
	ErrResolve        = errors.New("resolve error")
	ErrProjection     = errors.New("projection error")
	ErrUnknownField   = errors.New("unknown field")
	ErrCycle          = errors.New("dependency cycle")
	ErrJobFailure     = errors.New("job failure")
	ErrToolInvocation = errors.New("tool invocation failed")
	ErrRejectedByDep  = errors.New("rejected by dependency")
)

func sentinelFor(k Kind) error {
	switch k {
	case Lex:
		return ErrLex
	case Parse:
		return ErrParse
	case Resolve:
		return ErrResolve
	case Projection:
		return ErrProjection
	case UnknownField:
		return ErrUnknownField
	case Cycle:
		return ErrCycle
	case JobFailure:
		return ErrJobFailure
	case ToolInvocation:
		return ErrToolInvocation
	case RejectedByDep:
		return ErrRejectedByDep
	default:
		return errors.New("diagnostic")
	}
}

// Frame is one link in a Diagnostic's contextual frame stack: config file,
// target, rule type, or source file, pushed as the error bubbles up through
// each layer.
type Frame struct {
	Label string // e.g. "target", "config file", "rule"
	Value string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s: %s", f.Label, f.Value)
}

// Diagnostic is a structured, contextual error. It wraps a sentinel error
// keyed by Kind so callers can use errors.Is against the package-level
// sentinels, while still carrying file/line and a frame stack for
// human-readable output.
type Diagnostic struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Column  int
	Frames  []Frame
	Cause   error
}

// New creates a bare Diagnostic with no location or frames.
func New(kind Kind, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message}
}

// Wrap creates a Diagnostic that wraps an existing error as its Cause.
func Wrap(kind Kind, message string, cause error) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, Cause: cause}
}

// At sets the Diagnostic's source location and returns it for chaining.
func (d *Diagnostic) At(file string, line, column int) *Diagnostic {
	d.File = file
	d.Line = line
	d.Column = column
	return d
}

// WithFrame pushes a context frame and returns the Diagnostic for chaining.
// Frames are pushed innermost-first and printed outermost-first by Error.
func (d *Diagnostic) WithFrame(label, value string) *Diagnostic {
	d.Frames = append(d.Frames, Frame{Label: label, Value: value})
	return d
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Kind.String())
	b.WriteString(" error")
	if d.File != "" {
		fmt.Fprintf(&b, " at %s:%d", d.File, d.Line)
		if d.Column > 0 {
			fmt.Fprintf(&b, ":%d", d.Column)
		}
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	for i := len(d.Frames) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "\n  in %s", d.Frames[i])
	}
	if d.Cause != nil {
		fmt.Fprintf(&b, "\n  caused by: %s", d.Cause)
	}
	return b.String()
}

// Unwrap exposes both the wrapped Cause and the Kind's sentinel, so
// errors.Is(err, diagnostic.ErrResolve) works alongside errors.Is(err,
// someUnderlyingCause).
func (d *Diagnostic) Unwrap() []error {
	errs := []error{sentinelFor(d.Kind)}
	if d.Cause != nil {
		errs = append(errs, d.Cause)
	}
	return errs
}
