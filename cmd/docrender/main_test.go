package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porticus-lab/docrender/internal/pdf"
)

func testCLI(out io.Writer) *CLI {
	return &CLI{
		logger: slog.New(slog.DiscardHandler),
		stdout: out,
	}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func defaultRender(input string) *RenderCmd {
	return &RenderCmd{Input: input, Preset: "none", Orientation: "portrait"}
}

func TestRenderMarkdownInline(t *testing.T) {
	input := writeInput(t, "invoice.md", "# Invoice\n\nTotal: $100\n")

	var out bytes.Buffer
	cmd := defaultRender(input)
	cmd.Backend = "basic"
	require.NoError(t, cmd.Run(context.Background(), testCLI(&out)))

	doc, err := pdf.Load(out.Bytes())
	require.NoError(t, err)
	text, err := doc.Text(0)
	require.NoError(t, err)
	assert.Contains(t, text, "Invoice")
	assert.Contains(t, text, "Total: $100")
}

func TestRenderPersistWithMetrics(t *testing.T) {
	input := writeInput(t, "report.html", "<h1>Report</h1><p>Quarterly</p>")
	dir := t.TempDir()
	metrics := filepath.Join(dir, "docrender.prom")

	cmd := defaultRender(input)
	cmd.Preset = "basic"
	cmd.Persist = true
	cmd.OutDir = filepath.Join(dir, "out")
	cmd.Metrics = metrics
	cmd.Orientation = "landscape"
	require.NoError(t, cmd.Run(context.Background(), testCLI(io.Discard)))

	doc, err := pdf.Open(filepath.Join(dir, "out", "report.pdf"))
	require.NoError(t, err)
	info, err := doc.PageInfo(0)
	require.NoError(t, err)
	assert.Greater(t, info.Width, info.Height)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docrender_renders_total{backend="basic",delivery="persist",outcome="success"} 1`)
}

func TestRenderToOutputFile(t *testing.T) {
	input := writeInput(t, "letter.html", "<p>Dear customer</p>")
	target := filepath.Join(t.TempDir(), "letter.pdf")

	cmd := defaultRender(input)
	cmd.Backend = "basic"
	cmd.Size = "Letter"
	cmd.Output = target
	require.NoError(t, cmd.Run(context.Background(), testCLI(io.Discard)))

	doc, err := pdf.Open(target)
	require.NoError(t, err)
	info, err := doc.PageInfo(0)
	require.NoError(t, err)
	assert.InDelta(t, 612, info.Width, 0.5)
	assert.InDelta(t, 792, info.Height, 0.5)
}

func TestRenderRequest(t *testing.T) {
	input := writeInput(t, "summary.html", "<p>x</p>")

	cmd := defaultRender(input)
	cmd.MarginLeft = 10
	cmd.Title = "Summary"
	req, err := cmd.request()
	require.NoError(t, err)
	assert.Equal(t, "summary", req.Name)
	assert.Equal(t, "Summary", req.Title)
	assert.Empty(t, req.Backend)
	assert.Equal(t, 10.0, req.Margins.Left)

	cmd.Size = "B5"
	_, err = cmd.request()
	assert.Error(t, err)
}

func TestRenderInvalidMarkup(t *testing.T) {
	input := writeInput(t, "broken.html", "<p>x</div>")
	cmd := defaultRender(input)
	cmd.Backend = "basic"

	var out bytes.Buffer
	assert.Error(t, cmd.Run(context.Background(), testCLI(&out)))
	assert.Zero(t, out.Len())
}

func TestRenderFailureLeavesNoOutputFile(t *testing.T) {
	input := writeInput(t, "broken.html", "<p>x</div>")
	target := filepath.Join(t.TempDir(), "broken.pdf")

	cmd := defaultRender(input)
	cmd.Backend = "basic"
	cmd.Output = target
	require.Error(t, cmd.Run(context.Background(), testCLI(io.Discard)))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func renderFixture(t *testing.T) string {
	t.Helper()
	input := writeInput(t, "fixture.html", "<h1>Fixture</h1><p>Second line</p>")
	target := filepath.Join(t.TempDir(), "fixture.pdf")
	cmd := defaultRender(input)
	cmd.Backend = "basic"
	cmd.Output = target
	require.NoError(t, cmd.Run(context.Background(), testCLI(io.Discard)))
	return target
}

func TestInspectText(t *testing.T) {
	file := renderFixture(t)

	var out bytes.Buffer
	cmd := &InspectCmd{File: file, Text: true, Format: "text"}
	require.NoError(t, cmd.Run(testCLI(&out)))

	s := out.String()
	assert.Contains(t, s, "Pages:   1")
	assert.Contains(t, s, "Page 1: 595 x 842 pt")
	assert.Contains(t, s, "Fixture")
	assert.Contains(t, s, "Title:   fixture")
}

func TestInspectJSON(t *testing.T) {
	file := renderFixture(t)

	var out bytes.Buffer
	cmd := &InspectCmd{File: file, Format: "json"}
	require.NoError(t, cmd.Run(testCLI(&out)))

	var rep report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	require.Len(t, rep.Pages, 1)
	assert.Equal(t, 1, rep.Pages[0].Page)
	assert.Empty(t, rep.Pages[0].Text)
	assert.NotEmpty(t, rep.Version)
}

func TestInspectNotPDF(t *testing.T) {
	cmd := &InspectCmd{File: writeInput(t, "x.pdf", "plain text"), Format: "text"}
	assert.Error(t, cmd.Run(testCLI(io.Discard)))
}

func TestParseFlags(t *testing.T) {
	input := writeInput(t, "in.html", "<p>x</p>")

	var cli CLI
	parser, err := kong.New(&cli, kong.Name("docrender"))
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"-v", "render", input, "--preset", "logo", "--margin-top", "20", "--persist"})
	require.NoError(t, err)
	assert.Equal(t, "render <input>", kctx.Command())
	assert.True(t, cli.Verbose)
	assert.NotNil(t, cli.logger)
	assert.Equal(t, "logo", cli.Render.Preset)
	assert.Equal(t, 20.0, cli.Render.MarginTop)
	assert.True(t, cli.Render.Persist)

	_, err = parser.Parse([]string{"render", input, "--preset", "fancy"})
	assert.Error(t, err)

	kctx, err = parser.Parse([]string{"inspect", input, "--format", "json"})
	require.NoError(t, err)
	assert.Equal(t, "inspect <file>", kctx.Command())
	assert.Equal(t, "json", cli.Inspect.Format)
}
