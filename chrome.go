package docrender

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeBackend lays out full HTML and CSS in headless Chrome.
//
// A ChromeBackend manages one browser process that is reused across
// renders; every render gets its own tab. It is safe for concurrent use.
//
// Call [ChromeBackend.Close] when the backend is no longer needed to release
// browser resources.
type ChromeBackend struct {
	cfg           chromeConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChromeBackend starts a headless browser with the given options.
// Errors starting the browser surface here rather than on first render.
func NewChromeBackend(opts ...ChromeOption) (*ChromeBackend, error) {
	cfg := defaultChromeConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser()
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("docrender: starting browser: %w", err)
	}

	return &ChromeBackend{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Kind returns BackendChrome.
func (c *ChromeBackend) Kind() BackendKind { return BackendChrome }

// Close releases the browser process. Close is idempotent.
func (c *ChromeBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

// Render loads the job's HTML from a temporary file and prints it.
func (c *ChromeBackend) Render(ctx context.Context, job *Job) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	header, err := logoTemplate(job.HeaderLogo, job.Margins.Left)
	if err != nil {
		return nil, newError(KindIO, "logo", job.Name, err)
	}

	f, err := os.CreateTemp("", "docrender-*.html")
	if err != nil {
		return nil, newError(KindIO, "stage", job.Name, err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(job.HTML); err != nil {
		f.Close()
		return nil, newError(KindIO, "stage", job.Name, err)
	}
	if err := f.Close(); err != nil {
		return nil, newError(KindIO, "stage", job.Name, err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, newError(KindIO, "stage", job.Name, err)
	}
	return c.printToPDF(ctx, "file://"+abs, job, header)
}

// printToPDF performs the navigation and PDF generation.
func (c *ChromeBackend) printToPDF(ctx context.Context, targetURL string, job *Job, header string) (*Result, error) {
	if d := c.renderTimeout(job); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	// The tab lives under the browser context; tie it to the caller's
	// context as well so deadlines and cancellation reach it.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	// Chrome swaps width and height itself when landscape is set.
	width, height := job.Size.oriented(Portrait)
	m := job.Margins

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPaperWidth(mmToInches(width)).
				WithPaperHeight(mmToInches(height)).
				WithMarginTop(mmToInches(m.Top)).
				WithMarginRight(mmToInches(m.Right())).
				WithMarginBottom(mmToInches(m.Bottom)).
				WithMarginLeft(mmToInches(m.Left)).
				WithPrintBackground(c.cfg.printBackground).
				WithLandscape(job.Orientation == Landscape).
				WithDisplayHeaderFooter(header != "")

			if header != "" {
				params = params.
					WithHeaderTemplate(header).
					WithFooterTemplate("<span></span>")
			}

			var err error
			buf, _, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("printing: %w", cerr)
		}
		return nil, fmt.Errorf("printing: %w", err)
	}

	return &Result{data: buf}, nil
}

// renderTimeout is the backend cap for job, zero when there is none.
func (c *ChromeBackend) renderTimeout(job *Job) time.Duration {
	if job.Uncapped || c.cfg.timeout <= 0 {
		return 0
	}
	return c.cfg.timeout
}

func (c *ChromeBackend) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// logoTemplate returns a print header template showing the image at path
// inline, or "" when path is empty. Header templates cannot load files, so
// the image is embedded as a data URI.
func logoTemplate(path string, left float64) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(typ, "image/") {
		return "", fmt.Errorf("unsupported logo type %q", filepath.Ext(path))
	}
	return fmt.Sprintf(
		`<div style="width:100%%;margin-left:%.1fmm"><img style="height:%.1fmm" src="data:%s;base64,%s"></div>`,
		left, logoHeight, typ, base64.StdEncoding.EncodeToString(data),
	), nil
}
