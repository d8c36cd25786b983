package docrender

import (
	"fmt"
	"strings"
)

// Delivery selects what happens to a rendered PDF.
type Delivery int

const (
	// InlineStream writes the PDF to the caller's writer.
	InlineStream Delivery = iota
	// PersistToPath writes the PDF under the renderer's output directory.
	PersistToPath
)

func (d Delivery) String() string {
	if d == PersistToPath {
		return "persist"
	}
	return "inline"
}

// ParseDelivery accepts "inline" and "persist".
func ParseDelivery(s string) (Delivery, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inline", "stream":
		return InlineStream, nil
	case "persist", "file":
		return PersistToPath, nil
	}
	return InlineStream, fmt.Errorf("docrender: unknown delivery %q", s)
}

// BackendKind names a layout engine.
type BackendKind string

const (
	// BackendBasic places basic inline HTML with a PDF writer.
	BackendBasic BackendKind = "basic"
	// BackendChrome lays out full HTML and CSS in headless Chrome.
	BackendChrome BackendKind = "chrome"
)

// ParseBackendKind accepts "basic" and "chrome".
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return BackendBasic, nil
	case BackendBasic, BackendChrome:
		return k, nil
	}
	return "", fmt.Errorf("docrender: unknown backend %q", s)
}

// Request describes one render.
//
// A zero-value Size, and each zero margin, resolve to the defaults of the
// operation that runs the request.
type Request struct {
	// HTML is the document to render. It must contain some content.
	HTML string

	// Name is the output name without extension. It must be a single path
	// element.
	Name string

	Orientation Orientation
	Size        PageSize
	Margins     Margins
	Delivery    Delivery

	// HeaderLogo is an optional path to a PNG, JPEG or GIF drawn at the top
	// of every page.
	HeaderLogo string

	// Backend selects the engine for [Renderer.Render]. Defaults to
	// BackendBasic. The preset operations ignore it.
	Backend BackendKind

	// Title is the document title stored in the PDF metadata. Defaults to
	// Name.
	Title string

	// Limits overrides the renderer's resource limits for this call only.
	Limits *Limits
}

// Validate checks the request invariants.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.HTML) == "" {
		return errorf(KindInvalid, "validate", r.Name, "empty HTML content")
	}
	if err := validName(r.Name); err != nil {
		return newError(KindInvalid, "validate", r.Name, err)
	}
	if err := r.Margins.validate(); err != nil {
		return newError(KindInvalid, "validate", r.Name, err)
	}
	if r.Size.Width < 0 || r.Size.Height < 0 {
		return errorf(KindInvalid, "validate", r.Name, "negative page size %+v", r.Size)
	}
	if (r.Size.Width == 0) != (r.Size.Height == 0) {
		return errorf(KindInvalid, "validate", r.Name, "incomplete page size %+v", r.Size)
	}
	if r.Limits != nil && (r.Limits.Timeout < 0 || r.Limits.MemoryLimit < 0) {
		return errorf(KindInvalid, "validate", r.Name, "negative limits %+v", *r.Limits)
	}
	return nil
}

// validName rejects names that could leave the output directory.
func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty output name")
	case name == "." || name == "..":
		return fmt.Errorf("output name %q is a directory reference", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("output name %q contains a path separator", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("output name %q contains a traversal component", name)
	}
	return nil
}

// FileName returns the file name for an output name, e.g. "invoice1.pdf"
// or, with prefix "pdf_", "pdf_invoice1.pdf".
func FileName(prefix, name string) string {
	return prefix + name + ".pdf"
}
