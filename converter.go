package dompdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/porticus-lab/go-dom-pdf/browser"
	"github.com/porticus-lab/go-dom-pdf/dom"
	"github.com/porticus-lab/go-dom-pdf/layout"
	"github.com/porticus-lab/go-dom-pdf/pagebreak"
	"github.com/porticus-lab/go-dom-pdf/paginate"
	"github.com/porticus-lab/go-dom-pdf/pdfout"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

// Converter turns visual trees into paginated PDF documents.
//
// A Converter owns a staging host and a rasterizer. Conversions on one
// Converter are serialized; it is safe to call from multiple goroutines.
//
// Call [Converter.Close] when the Converter is no longer needed to release
// engine resources.
type Converter struct {
	cfg    converterConfig
	host   stage.Host
	raster stage.Rasterizer
	closer interface{ Close() error }

	mu     sync.Mutex
	closed atomic.Bool
	state  atomic.Int32
}

// NewConverter creates a Converter with the given options. Without
// [WithEngine], [WithHost] or [WithRasterizer] it uses the in-process
// layout engine.
func NewConverter(opts ...Option) (*Converter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return newConverter(cfg, nil)
}

// NewChromeConverter creates a Converter backed by a headless Chrome
// process. The caller must call [Converter.Close] when finished.
func NewChromeConverter(opts ...Option) (*Converter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	b, err := browser.New(append(cfg.chrome, browser.WithLogger(cfg.logger))...)
	if err != nil {
		return nil, fmt.Errorf("dompdf: %w", err)
	}
	cfg.host, cfg.rasterizer = b, b
	c, err := newConverter(cfg, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	return c, nil
}

func newConverter(cfg converterConfig, closer interface{ Close() error }) (*Converter, error) {
	host, raster := cfg.host, cfg.rasterizer
	if host == nil && raster == nil {
		e := layout.New(layout.WithLogger(cfg.logger))
		host, raster = e, e
	}
	if raster == nil {
		raster, _ = host.(stage.Rasterizer)
	}
	if host == nil {
		host, _ = raster.(stage.Host)
	}
	if host == nil || raster == nil {
		return nil, errors.New("dompdf: a staging host and a rasterizer are both required")
	}
	return &Converter{cfg: cfg, host: host, raster: raster, closer: closer}, nil
}

// Close releases the resources held by the Converter, waiting for a
// running conversion to finish. Close is idempotent.
func (c *Converter) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// State returns the state of the current or most recent conversion.
func (c *Converter) State() State {
	return State(c.state.Load())
}

// Convert renders root into a PDF and saves it to opts.Filename.
//
// onDone, if not nil, is called exactly once after the conversion reaches
// a terminal state, whether it succeeded or failed. No file is written
// unless the whole document was produced.
func (c *Converter) Convert(ctx context.Context, root *dom.Node, opts ConvertOptions, onDone func()) error {
	if onDone != nil {
		defer onDone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts.Filename == "" {
		c.setState(StateFailed)
		return ErrNoFilename
	}
	res, err := c.render(ctx, root, opts)
	if err != nil {
		return err
	}
	if err := res.WriteToFile(opts.Filename, 0o644); err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("%w: %w", ErrWriter, err)
	}
	c.setState(StateSaved)
	c.cfg.logger.Info("document saved", "filename", opts.Filename, "pages", res.Pages(), "bytes", res.Len())
	return nil
}

// Render runs the same pipeline as [Converter.Convert] but returns the
// document in memory.
func (c *Converter) Render(ctx context.Context, root *dom.Node, opts ConvertOptions) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.render(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	c.setState(StateSaved)
	return res, nil
}

// RenderHTML parses an HTML document or fragment and renders its body.
func (c *Converter) RenderHTML(ctx context.Context, html string, opts ConvertOptions) (*Result, error) {
	doc, err := dom.ParseString(html)
	if err != nil {
		return nil, err
	}
	return c.Render(ctx, dom.Body(doc), opts)
}

func (c *Converter) setState(s State) {
	c.state.Store(int32(s))
	c.cfg.logger.Debug("conversion state", "state", s.String())
	if c.cfg.stateHook != nil {
		c.cfg.stateHook(s)
	}
}

// render runs snapshot, staging, page breaking, rasterization and
// pagination. The stage is detached exactly once on every path after a
// successful attach. The caller holds c.mu.
func (c *Converter) render(ctx context.Context, root *dom.Node, opts ConvertOptions) (res *Result, err error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.state.Store(int32(StateIdle))
	defer func() {
		if err != nil {
			c.setState(StateFailed)
		}
	}()

	if root == nil {
		return nil, ErrNilRoot
	}
	if opts.OverrideWidth < 0 {
		return nil, fmt.Errorf("%w: negative override width %v", ErrStaging, opts.OverrideWidth)
	}
	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}
	log := c.cfg.logger
	if opts.Filename != "" {
		log = log.With("filename", opts.Filename)
	}

	replica := dom.Snapshot(root, opts.IncludeScripts)
	st, err := c.host.Attach(ctx, replica, stage.AttachOptions{Width: opts.OverrideWidth, ProxyURL: opts.ProxyURL})
	if err != nil {
		return nil, fmt.Errorf("%w: attaching replica: %w", ErrStaging, err)
	}
	c.setState(StateStaged)

	detached := false
	detach := func() error {
		if detached {
			return nil
		}
		detached = true
		if err := st.Detach(context.WithoutCancel(ctx)); err != nil {
			log.Warn("detaching stage", "error", err)
			return fmt.Errorf("dompdf: detaching stage: %w", err)
		}
		return nil
	}
	defer func() {
		if derr := detach(); derr != nil && err != nil {
			err = errors.Join(err, derr)
		}
	}()

	if err := st.RestoreScroll(ctx); err != nil {
		return nil, fmt.Errorf("%w: restoring scroll offsets: %w", ErrStaging, err)
	}
	width := opts.OverrideWidth
	if width == 0 {
		width = st.ContentWidth()
	}
	geom, err := paginate.NewGeometry(width)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}
	breaks, err := pagebreak.Apply(ctx, st, float64(geom.PageHeightPx), log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}
	log.Debug("page breaks applied", "page_height_px", geom.PageHeightPx, "spacers", len(breaks))

	c.setState(StateRasterizing)
	raster, err := c.raster.Rasterize(ctx, st, stage.RasterOptions{
		Filter:   dom.ExclusionFilter(opts.ExcludeClassNames),
		ProxyURL: opts.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	// A detach failure is logged inside detach; the raster is already complete.
	_ = detach()

	c.setState(StatePaginating)
	doc := pdfout.New(c.cfg.meta)
	stats, err := paginate.Emit(raster, geom, doc, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriter, err)
	}
	pages := doc.PageCount()
	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriter, err)
	}
	log.Info("document rendered",
		"pages", pages,
		"segments", stats.Segments,
		"skipped", len(stats.Skipped),
		"width_px", raster.Bounds().Dx(),
		"height_px", raster.Bounds().Dy(),
	)

	return &Result{
		data:     data,
		pages:    pages,
		segments: stats.Segments,
		skipped:  stats.Skipped,
		spacers:  len(breaks),
	}, nil
}

// --- Package-level convenience functions ---

// RenderHTML renders an HTML document or fragment with a temporary
// [Converter]. For repeated use, create a Converter with [NewConverter].
func RenderHTML(ctx context.Context, html string, opts ConvertOptions, copts ...Option) (*Result, error) {
	conv, err := NewConverter(copts...)
	if err != nil {
		return nil, err
	}
	defer conv.Close()
	return conv.RenderHTML(ctx, html, opts)
}

// ConvertHTML renders an HTML document or fragment with a temporary
// [Converter] and saves it to opts.Filename.
func ConvertHTML(ctx context.Context, html string, opts ConvertOptions, copts ...Option) error {
	conv, err := NewConverter(copts...)
	if err != nil {
		return err
	}
	defer conv.Close()
	doc, err := dom.ParseString(html)
	if err != nil {
		return err
	}
	return conv.Convert(ctx, dom.Body(doc), opts, nil)
}

// ParseExcludeList splits a comma separated list of class names.
func ParseExcludeList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
