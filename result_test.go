package docrender

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4 fake content for testing")

func newResult() *Result {
	return NewResult(samplePDF)
}

func TestResult_Bytes(t *testing.T) {
	assert.Equal(t, samplePDF, newResult().Bytes())
}

func TestResult_Base64(t *testing.T) {
	assert.Equal(t, base64.StdEncoding.EncodeToString(samplePDF), newResult().Base64())
}

func TestResult_Reader(t *testing.T) {
	r := newResult()
	reader := r.Reader()
	require.Equal(t, len(samplePDF), reader.Len())

	buf := make([]byte, len(samplePDF))
	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, buf[:n])

	// Each call returns an independent reader.
	assert.Equal(t, r.Reader().Len(), r.Reader().Len())
}

func TestResult_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := newResult().WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(samplePDF)), n)
	assert.Equal(t, samplePDF, buf.Bytes())
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestResult_WriteToErrors(t *testing.T) {
	_, err := newResult().WriteTo(shortWriter{})
	assert.ErrorIs(t, err, io.ErrShortWrite)

	boom := errors.New("boom")
	_, err = newResult().WriteTo(failingWriter{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestResult_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, newResult().WriteToFile(path, 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
}

func TestResult_Len(t *testing.T) {
	assert.Equal(t, len(samplePDF), newResult().Len())
}

func TestResult_LayoutRejectsGarbage(t *testing.T) {
	_, err := newResult().Layout()
	assert.Error(t, err)

	_, err = NewResult([]byte("not a pdf")).Layout()
	assert.Error(t, err)
}

func TestResult_LayoutEmptyPageTree(t *testing.T) {
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"trailer\n<< /Root 1 0 R >>\n%%EOF\n")
	_, err := NewResult(data).Layout()
	assert.ErrorIs(t, err, errNoPages)
}

func TestResult_LayoutRotated(t *testing.T) {
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Rotate 90 >>\nendobj\n" +
		"trailer\n<< /Root 1 0 R >>\n%%EOF\n")
	layout, err := NewResult(data).Layout()
	require.NoError(t, err)
	assert.Equal(t, Layout{Pages: 1, Width: 792, Height: 612}, layout)
}
