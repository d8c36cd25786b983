// docrender renders HTML or Markdown documents to PDF and inspects PDF
// files.
//
// Usage:
//
//	docrender render [flags] <input.html|input.md>
//	docrender inspect [--text] [--format text|json] <file.pdf>
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"

	"github.com/porticus-lab/docrender"
	"github.com/porticus-lab/docrender/internal/config"
	"github.com/porticus-lab/docrender/internal/pdf"
)

// CLI is the command line definition.
type CLI struct {
	Config  string `short:"c" help:"Configuration file (YAML)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Render  RenderCmd  `cmd:"" help:"Render an HTML or Markdown file to PDF"`
	Inspect InspectCmd `cmd:"" help:"Show version, page dimensions and text of a PDF file"`

	logger *slog.Logger
	stdout io.Writer
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := CLI{stdout: os.Stdout}
	kctx := kong.Parse(&cli,
		kong.Name("docrender"),
		kong.Description("Render HTML documents to PDF."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&cli),
	)

	if err := kctx.Run(); err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}

// RenderCmd renders one document.
type RenderCmd struct {
	Input string `arg:"" type:"existingfile" help:"HTML or Markdown (.md) input file"`

	Name        string  `help:"Output name without extension (default: input file name)"`
	Backend     string  `enum:",basic,chrome" default:"" help:"Engine for the plain render (default from config)"`
	Preset      string  `enum:"none,basic,full,logo" default:"none" help:"Render operation: none (plain), basic, full or logo"`
	Orientation string  `enum:"portrait,landscape" default:"portrait" help:"Page orientation"`
	Size        string  `help:"Page size: A3, A4, A5, Letter, Legal or Tabloid"`
	MarginLeft  float64 `name:"margin-left" help:"Left and right margin in mm"`
	MarginTop   float64 `name:"margin-top" help:"Top margin in mm"`
	MarginBot   float64 `name:"margin-bottom" help:"Bottom margin in mm"`
	Logo        string  `type:"existingfile" help:"Image drawn at the top of every page"`
	Title       string  `help:"Document title (default: name)"`
	Persist     bool    `help:"Write <name>.pdf (pdf_<name>.pdf with --preset full) to the output directory instead of streaming"`
	OutDir      string  `name:"out-dir" help:"Output directory for --persist (default from config)"`
	Output      string  `short:"o" help:"Write the streamed PDF to this file instead of stdout"`
	Metrics     string  `name:"metrics-file" type:"path" help:"Write Prometheus metrics in text format to this file"`
}

// Run renders the input.
func (c *RenderCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	req, err := c.request()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	outDir := cfg.OutputDir
	if c.OutDir != "" {
		outDir = c.OutDir
	}
	opts := []docrender.RendererOption{
		docrender.WithBackend(docrender.NewBasicBackend(cfg.BasicOptions()...)),
		docrender.WithOutputDir(afero.NewOsFs(), outDir),
		docrender.WithLogger(cli.logger),
		docrender.WithRecorder(docrender.NewPrometheusRecorder(reg)),
		docrender.WithDefaultLimits(cfg.Limits()),
		docrender.WithInlineCopy(cfg.InlineCopy),
	}
	if c.needsChrome(cfg) {
		chrome, err := docrender.NewChromeBackend(cfg.ChromeOptions()...)
		if err != nil {
			return err
		}
		opts = append(opts, docrender.WithBackend(chrome))
	}
	r := docrender.NewRenderer(opts...)
	defer r.Close()

	if req.Backend == "" {
		req.Backend = cfg.BackendKind()
	}

	// -o output is buffered so a failed render creates no file.
	var (
		w   io.Writer
		buf bytes.Buffer
	)
	if !c.Persist {
		w = cli.stdout
		if c.Output != "" {
			w = &buf
		}
	}

	render := r.Render
	switch c.Preset {
	case "basic":
		render = r.RenderBasic
	case "full":
		render = r.RenderFull
	case "logo":
		render = r.RenderWithLogo
	}
	if _, err := render(ctx, w, req); err != nil {
		return err
	}
	if !c.Persist && c.Output != "" {
		if err := os.WriteFile(c.Output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
	}

	if c.Metrics != "" {
		if err := prometheus.WriteToTextfile(c.Metrics, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

func (c *RenderCmd) needsChrome(cfg *config.Config) bool {
	switch c.Preset {
	case "full":
		return true
	case "none":
		if c.Backend != "" {
			return c.Backend == string(docrender.BackendChrome)
		}
		return cfg.BackendKind() == docrender.BackendChrome
	}
	return false
}

func (c *RenderCmd) request() (docrender.Request, error) {
	html, err := readInput(c.Input)
	if err != nil {
		return docrender.Request{}, err
	}
	name := c.Name
	if name == "" {
		base := filepath.Base(c.Input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	orientation, err := docrender.ParseOrientation(c.Orientation)
	if err != nil {
		return docrender.Request{}, err
	}
	var backend docrender.BackendKind
	if c.Backend != "" {
		if backend, err = docrender.ParseBackendKind(c.Backend); err != nil {
			return docrender.Request{}, err
		}
	}

	req := docrender.Request{
		HTML:        html,
		Name:        name,
		Title:       c.Title,
		Orientation: orientation,
		Margins:     docrender.Margins{Left: c.MarginLeft, Top: c.MarginTop, Bottom: c.MarginBot},
		HeaderLogo:  c.Logo,
		Backend:     backend,
	}
	if c.Size != "" {
		size, ok := docrender.PageSizeByName(c.Size)
		if !ok {
			return docrender.Request{}, fmt.Errorf("unknown page size %q", c.Size)
		}
		req.Size = size
	}
	if c.Persist {
		req.Delivery = docrender.PersistToPath
	}
	return req, nil
}

// readInput returns the input as HTML, converting Markdown files.
func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		var buf bytes.Buffer
		if err := goldmark.Convert(data, &buf); err != nil {
			return "", fmt.Errorf("converting %s: %w", path, err)
		}
		return buf.String(), nil
	}
	return string(data), nil
}

// InspectCmd prints information about a PDF file.
type InspectCmd struct {
	File   string `arg:"" type:"existingfile" help:"PDF file"`
	Text   bool   `help:"Include the extracted text of every page"`
	Format string `short:"f" enum:"text,json" default:"text" help:"Output format: text or json"`
}

type pageReport struct {
	Page     int     `json:"page"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation,omitempty"`
	Text     string  `json:"text,omitempty"`
}

type report struct {
	File    string            `json:"file"`
	Version string            `json:"version"`
	Info    map[string]string `json:"info,omitempty"`
	Pages   []pageReport      `json:"pages"`
}

// Run prints the report.
func (c *InspectCmd) Run(cli *CLI) error {
	rep, err := c.inspect()
	if err != nil {
		return err
	}
	if c.Format == "json" {
		enc := json.NewEncoder(cli.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	writeReport(cli.stdout, rep)
	return nil
}

func (c *InspectCmd) inspect() (*report, error) {
	doc, err := pdf.Open(c.File)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.File, err)
	}
	n, err := doc.NumPages()
	if err != nil {
		return nil, fmt.Errorf("reading pages: %w", err)
	}

	rep := &report{File: c.File, Version: doc.Version(), Info: doc.Info()}
	for i := range n {
		info, err := doc.PageInfo(i)
		if err != nil {
			return nil, err
		}
		p := pageReport{Page: i + 1, Width: info.Width, Height: info.Height, Rotation: info.Rotation}
		if c.Text {
			text, err := doc.Text(i)
			if err != nil {
				slog.Warn("Text extraction failed", "page", i+1, "error", err)
			}
			p.Text = text
		}
		rep.Pages = append(rep.Pages, p)
	}
	return rep, nil
}

func writeReport(w io.Writer, rep *report) {
	fmt.Fprintf(w, "File:    %s\n", rep.File)
	fmt.Fprintf(w, "Version: PDF-%s\n", rep.Version)
	if title := rep.Info["Title"]; title != "" {
		fmt.Fprintf(w, "Title:   %s\n", title)
	}
	fmt.Fprintf(w, "Pages:   %d\n", len(rep.Pages))

	for _, p := range rep.Pages {
		fmt.Fprintf(w, "\nPage %d: %.0f x %.0f pt", p.Page, p.Width, p.Height)
		if p.Rotation != 0 {
			fmt.Fprintf(w, " (rotated %d°)", p.Rotation)
		}
		fmt.Fprintln(w)
		if p.Text != "" {
			fmt.Fprintln(w, p.Text)
		}
	}
}
