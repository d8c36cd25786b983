package docrender

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porticus-lab/docrender/internal/pdf"
)

func basicJob(html string) *Job {
	return &Job{
		ID:      "test",
		HTML:    html,
		Name:    "test",
		Title:   "test",
		Size:    A4,
		Margins: DefaultMargins,
	}
}

// writePNG writes a small solid PNG and returns its path.
func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := range 8 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func pageText(t *testing.T, data []byte, page int) string {
	t.Helper()
	doc, err := pdf.Load(data)
	require.NoError(t, err)
	text, err := doc.Text(page)
	require.NoError(t, err)
	return text
}

func TestBasicBackendInvoice(t *testing.T) {
	res, err := NewBasicBackend().Render(context.Background(), basicJob("<h1>Invoice</h1><p>Total: $100</p>"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(res.Bytes(), []byte("%PDF-")))

	layout, err := res.Layout()
	require.NoError(t, err)
	assert.Equal(t, 1, layout.Pages)
	assert.InDelta(t, 595.28, layout.Width, 0.5)
	assert.InDelta(t, 841.89, layout.Height, 0.5)

	text := pageText(t, res.Bytes(), 0)
	assert.Contains(t, text, "Invoice")
	assert.Contains(t, text, "Total: $100")
}

func TestBasicBackendLandscape(t *testing.T) {
	job := basicJob("<p>wide</p>")
	job.Orientation = Landscape
	res, err := NewBasicBackend().Render(context.Background(), job)
	require.NoError(t, err)

	layout, err := res.Layout()
	require.NoError(t, err)
	assert.Greater(t, layout.Width, layout.Height)
	assert.InDelta(t, 841.89, layout.Width, 0.5)
}

func TestBasicBackendPageBreaks(t *testing.T) {
	var b strings.Builder
	for i := range 400 {
		b.WriteString("<p>Line ")
		b.WriteString(strings.Repeat("x", i%40))
		b.WriteString("</p>")
	}
	res, err := NewBasicBackend().Render(context.Background(), basicJob(b.String()))
	require.NoError(t, err)

	layout, err := res.Layout()
	require.NoError(t, err)
	assert.Greater(t, layout.Pages, 1)
	assert.Contains(t, pageText(t, res.Bytes(), layout.Pages-1), "Line")
}

func TestBasicBackendTranscodes(t *testing.T) {
	res, err := NewBasicBackend().Render(context.Background(), basicJob("<p>café 10€ 日本</p>"))
	require.NoError(t, err)
	assert.Contains(t, pageText(t, res.Bytes(), 0), "café 10€ ??")
}

func TestBasicBackendRepeatable(t *testing.T) {
	b := NewBasicBackend(WithFixedTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	job := basicJob("<h1>Invoice</h1><p>Total: $100</p>")

	first, err := b.Render(context.Background(), job)
	require.NoError(t, err)
	second, err := b.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestBasicBackendOptions(t *testing.T) {
	b := NewBasicBackend(WithFont("Courier", 10), WithCreator("billing"))
	res, err := b.Render(context.Background(), basicJob("<p>mono</p>"))
	require.NoError(t, err)
	assert.Contains(t, string(res.Bytes()), "/BaseFont /Courier")

	// Empty values keep the defaults.
	def := NewBasicBackend(WithFont("", 0))
	assert.Equal(t, DefaultFontFamily, def.cfg.fontFamily)
	assert.Equal(t, DefaultFontSize, def.cfg.fontSize)
}

func TestBasicBackendLogo(t *testing.T) {
	job := basicJob("<p>with logo</p>")
	job.HeaderLogo = writePNG(t)
	res, err := NewBasicBackend().Render(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, string(res.Bytes()), "/Subtype /Image")
	assert.Contains(t, pageText(t, res.Bytes(), 0), "with logo")

	job.HeaderLogo = filepath.Join(t.TempDir(), "missing.png")
	_, err = NewBasicBackend().Render(context.Background(), job)
	assert.ErrorIs(t, err, ErrIO)
}

func TestBasicBackendContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := NewBasicBackend().Render(ctx, basicJob("<p>late</p>"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBasicBackendKind(t *testing.T) {
	b := NewBasicBackend()
	assert.Equal(t, BackendBasic, b.Kind())
	assert.NoError(t, b.Close())
}
