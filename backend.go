package docrender

import "context"

// Backend is a layout engine that turns one resolved [Job] into a PDF.
//
// Implementations must be safe for concurrent use; every Render call owns
// its job and any engine state it creates.
type Backend interface {
	Kind() BackendKind
	Render(ctx context.Context, job *Job) (*Result, error)
	Close() error
}

// Job is a validated request with every default resolved.
type Job struct {
	ID          string
	HTML        string
	Name        string
	Title       string
	Size        PageSize
	Orientation Orientation
	Margins     Margins
	HeaderLogo  string

	// Uncapped lifts the backend's own per-render timeout, leaving the
	// context deadline as the only bound.
	Uncapped bool
}
