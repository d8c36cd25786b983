package docrender

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by the library. Every *Error matches exactly one
// of ErrRender, ErrResource, ErrIO or ErrInvalid with errors.Is.
var (
	// ErrClosed is returned when attempting to use a closed backend.
	ErrClosed = errors.New("docrender: backend is closed")

	// ErrRender reports markup the backend could not lay out.
	ErrRender = errors.New("docrender: render failed")
	// ErrResource reports an exceeded time or memory ceiling.
	ErrResource = errors.New("docrender: resource limit exceeded")
	// ErrIO reports an unwritable output directory or a closed output stream.
	ErrIO = errors.New("docrender: output failed")
	// ErrInvalid reports a request that breaks the request invariants.
	ErrInvalid = errors.New("docrender: invalid request")

	// ErrWriterClosed marks an inline stream that stopped accepting output.
	// Writers may return it themselves; closed pipes, closed connections
	// and timed-out HTTP handlers are reported with it too. It always comes
	// wrapped in an ErrIO error.
	ErrWriterClosed = errors.New("docrender: output stream closed")
)

// Kind classifies an *Error.
type Kind int

const (
	KindRender Kind = iota + 1
	KindResource
	KindIO
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindResource:
		return "resource"
	case KindIO:
		return "io"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindRender:
		return ErrRender
	case KindResource:
		return ErrResource
	case KindIO:
		return ErrIO
	case KindInvalid:
		return ErrInvalid
	}
	return nil
}

// Error is the error type returned by [Renderer] operations.
type Error struct {
	Kind Kind
	Op   string // pipeline step, e.g. "validate", "render", "persist"
	Name string // request output name, if known
	Err  error
}

func (e *Error) Error() string {
	msg := "docrender: " + e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

func errorf(kind Kind, op, name, format string, args ...any) *Error {
	return newError(kind, op, name, fmt.Errorf(format, args...))
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// classify turns a backend failure into an *Error. Deadline expiry of the
// limit scope counts as a resource failure; anything else is a render error.
func classify(ctx context.Context, op, name string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindResource, op, name, err)
	}
	return newError(KindRender, op, name, err)
}
