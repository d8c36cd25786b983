package docrender

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// outputDir is where persisted PDFs are written.
type outputDir struct {
	fs   afero.Fs
	path string
}

// writeInline streams res to w. When w is an http.ResponseWriter the
// response is labelled as an inline PDF named fileName. With flush set,
// output already buffered in w is flushed before the PDF is written.
func writeInline(w io.Writer, fileName string, res *Result, flush bool) error {
	if w == nil {
		return errors.New("no output writer")
	}
	if flush {
		if err := flushWriter(w); err != nil {
			return err
		}
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "application/pdf")
		h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": fileName}))
		h.Set("Content-Length", strconv.Itoa(res.Len()))
		h.Set("Cache-Control", "private, max-age=0, must-revalidate")
	}
	if _, err := res.WriteTo(w); err != nil {
		if streamClosed(err) && !errors.Is(err, ErrWriterClosed) {
			return fmt.Errorf("%w: %w", ErrWriterClosed, err)
		}
		return err
	}
	return nil
}

// streamClosed reports errors of a peer that went away mid-stream.
func streamClosed(err error) bool {
	return errors.Is(err, ErrWriterClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, http.ErrHandlerTimeout)
}

func flushWriter(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}

// persist writes res to fileName under the output directory and returns
// the absolute path. The data goes to a uniquely named sibling first and
// is renamed into place, so a failed write never leaves a partial file.
func (d outputDir) persist(fileName string, res *Result) (string, error) {
	if err := d.fs.MkdirAll(d.path, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	final := filepath.Join(d.path, fileName)
	tmp := filepath.Join(d.path, "."+fileName+"."+uuid.NewString()+".tmp")

	if err := afero.WriteFile(d.fs, tmp, res.Bytes(), 0o644); err != nil {
		_ = d.fs.Remove(tmp)
		return "", err
	}
	if err := d.fs.Rename(tmp, final); err != nil {
		_ = d.fs.Remove(tmp)
		return "", err
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		return final, nil
	}
	return abs, nil
}
