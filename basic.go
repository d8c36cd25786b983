package docrender

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Defaults for the basic backend.
const (
	DefaultFontFamily = "Helvetica"
	DefaultFontSize   = 6.0

	logoHeight = 12.0 // mm
	logoGap    = 3.0  // mm between logo and body
)

type basicConfig struct {
	fontFamily string
	fontSize   float64
	lineFactor float64
	creator    string
	fixedTime  time.Time
}

// BasicOption configures a [BasicBackend].
type BasicOption func(*basicConfig)

// WithFont sets the body font. family must be one of the PDF core fonts
// (Helvetica, Times, Courier); size is in points.
func WithFont(family string, size float64) BasicOption {
	return func(c *basicConfig) {
		if family != "" {
			c.fontFamily = family
		}
		if size > 0 {
			c.fontSize = size
		}
	}
}

// WithFixedTime stamps every document with t instead of the current time
// and sorts the document catalog, making output byte-for-byte repeatable.
func WithFixedTime(t time.Time) BasicOption {
	return func(c *basicConfig) {
		c.fixedTime = t
	}
}

// WithCreator sets the creator recorded in the document metadata.
func WithCreator(name string) BasicOption {
	return func(c *basicConfig) {
		c.creator = name
	}
}

// BasicBackend renders basic inline HTML with the fpdf writer. It supports
// bold, italic, underline, links and line breaks; everything else is laid
// out as plain text flowing across automatically broken pages.
//
// Text is set in a core font, so input is transcoded to Windows-1252 and
// characters outside it print as '?'.
type BasicBackend struct {
	cfg basicConfig
}

// NewBasicBackend creates a BasicBackend. It holds no resources.
func NewBasicBackend(opts ...BasicOption) *BasicBackend {
	cfg := basicConfig{
		fontFamily: DefaultFontFamily,
		fontSize:   DefaultFontSize,
		lineFactor: 1.5,
		creator:    "docrender",
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &BasicBackend{cfg: cfg}
}

// Kind returns BackendBasic.
func (b *BasicBackend) Kind() BackendKind { return BackendBasic }

// Close is a no-op.
func (b *BasicBackend) Close() error { return nil }

// Render lays the job out on one initial page and lets the writer add
// pages as the text reaches the bottom margin.
func (b *BasicBackend) Render(ctx context.Context, job *Job) (*Result, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if job.HeaderLogo != "" {
		if _, err := os.Stat(job.HeaderLogo); err != nil {
			return nil, newError(KindIO, "logo", job.Name, err)
		}
	}

	w, h := job.Size.oriented(Portrait)
	orientation := "P"
	if job.Orientation == Landscape {
		orientation = "L"
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})

	pdf.SetDisplayMode("real", "default")
	pdf.SetTitle(job.Title, true)
	pdf.SetCreator(b.cfg.creator, true)
	if !b.cfg.fixedTime.IsZero() {
		pdf.SetCreationDate(b.cfg.fixedTime)
		pdf.SetModificationDate(b.cfg.fixedTime)
		pdf.SetCatalogSort(true)
	}
	pdf.SetFont(b.cfg.fontFamily, "", b.cfg.fontSize)
	pdf.SetMargins(job.Margins.Left, job.Margins.Top, job.Margins.Right())
	pdf.SetAutoPageBreak(true, job.Margins.Bottom)

	if job.HeaderLogo != "" {
		logo, left, top := job.HeaderLogo, job.Margins.Left, job.Margins.Top
		pdf.SetHeaderFunc(func() {
			pdf.ImageOptions(logo, left, top, 0, logoHeight, false,
				fpdf.ImageOptions{ReadDpi: true}, 0, "")
			pdf.SetY(top + logoHeight + logoGap)
		})
	}

	pdf.AddPage()
	_, unitSize := pdf.GetFontSize()
	html := pdf.HTMLBasicNew()
	html.Write(unitSize*b.cfg.lineFactor, toWindows1252(basicMarkup(job.HTML)))

	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return &Result{data: buf.Bytes()}, nil
}

// ctxErr is ctx.Err, except that a passed deadline counts as exceeded
// before the context's timer has fired.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

// toWindows1252 transcodes UTF-8 text to the code page of the core fonts.
func toWindows1252(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteByte(byte(r))
			continue
		}
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}
