package docrender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultOutputDir is the directory, relative to the working directory,
// that receives persisted PDFs unless [WithOutputDir] says otherwise.
const DefaultOutputDir = "tmp"

// Outcome describes a finished render.
type Outcome struct {
	ID       string
	Name     string // file name, e.g. "invoice1.pdf"
	Path     string // absolute path of the persisted file, if any
	Bytes    int
	Pages    int
	Width    float64 // first page width in points
	Height   float64 // first page height in points
	Backend  BackendKind
	Delivery Delivery
	Duration time.Duration
}

// Renderer turns render requests into PDFs using its configured backends.
//
// A Renderer holds no per-request state and is safe for concurrent use.
// Concurrent requests that persist under the same Name overwrite each
// other; callers must keep names unique.
type Renderer struct {
	backends   map[BackendKind]Backend
	out        outputDir
	logger     *slog.Logger
	recorder   Recorder
	limits     Limits
	inlineCopy bool
}

// RendererOption configures a [Renderer].
type RendererOption func(*Renderer)

// WithBackend registers b under its kind, replacing any backend of the
// same kind. The basic backend is registered by default; the chrome
// backend has to be added explicitly since it starts a browser.
func WithBackend(b Backend) RendererOption {
	return func(r *Renderer) {
		r.backends[b.Kind()] = b
	}
}

// WithOutputDir sets where persisted PDFs are written.
func WithOutputDir(fs afero.Fs, dir string) RendererOption {
	return func(r *Renderer) {
		r.out = outputDir{fs: fs, path: dir}
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) RendererOption {
	return func(r *Renderer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithDefaultLimits sets the limits used when neither the operation nor
// the request sets any.
func WithDefaultLimits(l Limits) RendererOption {
	return func(r *Renderer) {
		r.limits = l
	}
}

// WithInlineCopy makes inline renders also write <name>.pdf to the output
// directory.
func WithInlineCopy(enabled bool) RendererOption {
	return func(r *Renderer) {
		r.inlineCopy = enabled
	}
}

// NewRenderer creates a Renderer with the basic backend registered.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		backends: map[BackendKind]Backend{BackendBasic: NewBasicBackend()},
		out:      outputDir{fs: afero.NewOsFs(), path: DefaultOutputDir},
		logger:   slog.New(slog.DiscardHandler),
		recorder: NoopRecorder{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Close closes every registered backend.
func (r *Renderer) Close() error {
	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// preset holds the fixed settings of one render operation.
type preset struct {
	op       string
	backend  BackendKind // forced backend, "" keeps the request's
	size     PageSize    // forced page size
	portrait bool        // force portrait orientation
	prefix   string      // file name prefix for persisted output
	flush    bool        // flush the writer before streaming
	uncapped bool        // drop the backend's own render timeout
	limits   *Limits
}

var (
	presetRender = preset{op: "render"}
	presetBasic  = preset{op: "render_basic", backend: BackendBasic}
	presetFull   = preset{op: "render_full", backend: BackendChrome, prefix: "pdf_", uncapped: true, limits: &DefaultFullLimits}
	presetLogo   = preset{op: "render_with_logo", backend: BackendBasic, size: Letter, portrait: true, flush: true}
)

// Render runs req on the backend it names.
//
// The request is validated and its markup checked, the backend renders
// inside a limit scope, the output is verified to be a PDF with at least
// one page, and it is then streamed to w or persisted according to
// req.Delivery. w may be nil for persisted renders.
func (r *Renderer) Render(ctx context.Context, w io.Writer, req Request) (*Outcome, error) {
	return r.render(ctx, w, req, presetRender)
}

// RenderBasic renders req with the basic backend: A4 unless the request
// sets a size, 15 mm margins unless set, no header or footer, Helvetica
// 6pt, automatic page breaks at the bottom margin. Inline output is named
// <name>.pdf.
func (r *Renderer) RenderBasic(ctx context.Context, w io.Writer, req Request) (*Outcome, error) {
	return r.render(ctx, w, req, presetBasic)
}

// RenderFull renders req in headless Chrome with full CSS support: Letter
// unless the request sets a size, with the memory ceiling raised to
// [DefaultFullLimits] for the duration of the call. The backend's own
// render timeout ([WithTimeout]) does not apply; only [Limits.Timeout] and
// the caller's context bound the call. Persisted output is named
// pdf_<name>.pdf.
func (r *Renderer) RenderFull(ctx context.Context, w io.Writer, req Request) (*Outcome, error) {
	return r.render(ctx, w, req, presetFull)
}

// RenderWithLogo renders req with the basic backend on portrait Letter
// pages, drawing req.HeaderLogo at the top of each page when set. Output
// pending in w is flushed before the PDF is streamed.
func (r *Renderer) RenderWithLogo(ctx context.Context, w io.Writer, req Request) (*Outcome, error) {
	return r.render(ctx, w, req, presetLogo)
}

func (r *Renderer) render(ctx context.Context, w io.Writer, req Request, p preset) (*Outcome, error) {
	start := time.Now()
	if p.backend != "" {
		req.Backend = p.backend
	}
	if req.Backend == "" {
		req.Backend = BackendBasic
	}
	out := &Outcome{ID: uuid.NewString(), Backend: req.Backend, Delivery: req.Delivery}

	log := r.logger.With(
		slog.String("render_id", out.ID),
		slog.String("op", p.op),
		slog.String("name", req.Name),
		slog.String("backend", string(req.Backend)),
		slog.String("delivery", req.Delivery.String()),
	)
	log.Debug("Render started", slog.Int("html_bytes", len(req.HTML)))

	err := r.run(ctx, w, req, p, out)
	out.Duration = time.Since(start)
	durationMS := float64(out.Duration.Microseconds()) / 1000

	if err != nil {
		kind := KindOf(err).String()
		r.recorder.ObserveRender(req.Backend, req.Delivery, kind, out.Duration, 0)
		log.Warn("Render failed",
			slog.String("kind", kind),
			slog.Float64("duration_ms", durationMS),
			slog.String("error", err.Error()))
		return nil, err
	}

	r.recorder.ObserveRender(req.Backend, req.Delivery, outcomeSuccess, out.Duration, out.Bytes)
	log.Info("Render finished",
		slog.String("file", out.Name),
		slog.String("path", out.Path),
		slog.Int("bytes", out.Bytes),
		slog.Int("pages", out.Pages),
		slog.Float64("duration_ms", durationMS))
	return out, nil
}

func (r *Renderer) run(ctx context.Context, w io.Writer, req Request, p preset, out *Outcome) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := checkMarkup(req.HTML); err != nil {
		return newError(KindRender, "parse", req.Name, err)
	}
	backend, ok := r.backends[req.Backend]
	if !ok {
		return errorf(KindInvalid, "select", req.Name, "backend %q is not configured", req.Backend)
	}
	job := p.job(out.ID, req)

	limits := r.limits
	if p.limits != nil {
		limits = p.limits.merge(limits)
	}
	if req.Limits != nil {
		limits = req.Limits.merge(limits)
	}
	ctx, release := enterLimits(ctx, limits)
	defer release()

	res, err := backend.Render(ctx, job)
	if err != nil {
		return classify(ctx, "render", req.Name, err)
	}
	layout, err := res.Layout()
	if err != nil {
		return newError(KindRender, "verify", req.Name, err)
	}
	out.Bytes = res.Len()
	out.Pages = layout.Pages
	out.Width, out.Height = layout.Width, layout.Height

	if req.Delivery == PersistToPath {
		out.Name = FileName(p.prefix, req.Name)
		path, err := r.out.persist(out.Name, res)
		if err != nil {
			return newError(KindIO, "persist", req.Name, err)
		}
		out.Path = path
		return nil
	}

	out.Name = FileName("", req.Name)
	if err := writeInline(w, out.Name, res, p.flush); err != nil {
		return newError(KindIO, "stream", req.Name, err)
	}
	// The copy is only kept for streams that were delivered.
	if r.inlineCopy {
		path, err := r.out.persist(out.Name, res)
		if err != nil {
			return newError(KindIO, "persist", req.Name, err)
		}
		out.Path = path
	}
	return nil
}

// job resolves the request against the preset and backend defaults.
func (p preset) job(id string, req Request) *Job {
	j := &Job{
		ID:          id,
		HTML:        req.HTML,
		Name:        req.Name,
		Title:       req.Title,
		Size:        req.Size,
		Orientation: req.Orientation,
		Margins:     req.Margins,
		HeaderLogo:  req.HeaderLogo,
		Uncapped:    p.uncapped,
	}
	switch {
	case p.size != (PageSize{}):
		j.Size = p.size
	case j.Size == (PageSize{}):
		j.Size = defaultSize(req.Backend)
	}
	if p.portrait {
		j.Orientation = Portrait
	}
	j.Margins = j.Margins.withDefaults(DefaultMargins)
	if j.Title == "" {
		j.Title = req.Name
	}
	return j
}

func defaultSize(kind BackendKind) PageSize {
	if kind == BackendChrome {
		return Letter
	}
	return A4
}
