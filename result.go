package docrender

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"

	"github.com/porticus-lab/docrender/internal/pdf"
)

// Result holds a generated PDF and provides helpers for common output
// formats such as raw bytes, base64 encoding, and streaming readers.
//
// It is safe to call its methods multiple times; the underlying data is
// never modified.
type Result struct {
	data []byte
}

// NewResult wraps PDF bytes produced outside this package, for example by
// a custom [Backend].
func NewResult(data []byte) *Result {
	return &Result{data: data}
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Base64 returns the PDF encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	if err == nil && n < len(r.data) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// WriteToFile writes the PDF to the file at path, creating it if needed.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, r.data, perm)
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// Layout summarises the page structure of a PDF.
type Layout struct {
	Pages  int
	Width  float64 // first page, in points
	Height float64 // first page, in points
}

var errNoPages = errors.New("document has no pages")

// Layout parses the PDF and reports its page count and first page size.
func (r *Result) Layout() (Layout, error) {
	doc, err := pdf.Load(r.data)
	if err != nil {
		return Layout{}, err
	}
	n, err := doc.NumPages()
	if err != nil {
		return Layout{}, err
	}
	if n == 0 {
		return Layout{}, errNoPages
	}
	info, err := doc.PageInfo(0)
	if err != nil {
		return Layout{}, err
	}
	w, h := info.Width, info.Height
	if info.Rotation%180 != 0 {
		w, h = h, w
	}
	return Layout{Pages: n, Width: w, Height: h}, nil
}
