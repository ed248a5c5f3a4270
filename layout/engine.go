// Package layout is an in-process staging host and rasterizer. It lays a
// replica out as stacked blocks with wrapped monospaced text and paints it
// without a browser.
//
// The engine understands inline style attributes for box sizes, margins,
// padding, borders, colours, overflow clipping and display:none. It draws
// canvas surfaces, <img> elements (data: and http(s) sources) and form
// controls with their current values.
package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/porticus-lab/go-dom-pdf/dom"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

// DefaultWidth is the container width used when none is requested.
const DefaultWidth = 800

// MaxRasterPixels bounds the canvas allocated by one Rasterize call.
const MaxRasterPixels = 1 << 27

var (
	// ErrDetached is returned when a detached stage is used.
	ErrDetached = errors.New("layout: stage is detached")

	// ErrRasterTooLarge is returned when the laid-out content needs a
	// canvas of more than MaxRasterPixels.
	ErrRasterTooLarge = errors.New("layout: raster too large")
)

var _ stage.Engine = (*Engine)(nil)

// Engine implements [stage.Engine].
type Engine struct {
	width  float64
	client *http.Client
	log    *slog.Logger
}

// Option configures an [Engine].
type Option func(*Engine)

// WithWidth sets the default container width in CSS pixels.
func WithWidth(px float64) Option {
	return func(e *Engine) {
		e.width = px
	}
}

// WithHTTPClient sets the client used to fetch remote images.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// WithLogger sets the logger for image fetch failures and layout events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New returns an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		width:  DefaultWidth,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Attach wraps replica in a fresh container and loads its images.
func (e *Engine) Attach(ctx context.Context, replica *dom.Node, opts stage.AttachOptions) (stage.Stage, error) {
	if replica == nil {
		return nil, errors.New("layout: nil replica")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width := opts.Width
	if width <= 0 {
		width = e.width
	}

	container := dom.NewElement("div")
	container.AppendChild(replica)
	s := &Stage{
		engine:    e,
		container: container,
		replica:   replica,
		width:     width,
		images:    make(map[*dom.Node]image.Image),
		dirty:     true,
	}
	s.loadImages(ctx, opts.ProxyURL, false)
	return s, nil
}

// Rasterize paints a stage created by this engine.
func (e *Engine) Rasterize(ctx context.Context, st stage.Stage, opts stage.RasterOptions) (image.Image, error) {
	s, ok := st.(*Stage)
	if !ok || s.engine != e {
		return nil, fmt.Errorf("layout: cannot rasterize a %T", st)
	}
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if opts.ProxyURL != "" {
		s.loadImages(ctx, opts.ProxyURL, true)
	}

	t := s.layout()
	wf, hf := math.Ceil(s.width), math.Ceil(max(t.root.h, 0))
	if area := wf * hf; math.IsNaN(area) || area > MaxRasterPixels || wf > MaxRasterPixels {
		return nil, fmt.Errorf("%w: %vx%v pixels", ErrRasterTooLarge, wf, hf)
	}
	w, h := int(wf), int(hf)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	p := &painter{dst: dst, filter: opts.Filter, images: s.images}
	for _, c := range t.root.children {
		p.paint(c, dst.Bounds(), 0, 0)
	}
	e.log.Debug("rasterized stage", "width", w, "height", h)
	return dst, nil
}

// Stage is a replica attached to an [Engine]. Layout is recomputed lazily
// after the tree changes.
type Stage struct {
	engine    *Engine
	container *dom.Node
	replica   *dom.Node
	width     float64
	images    map[*dom.Node]image.Image

	tree     tree
	dirty    bool
	detached bool
}

// loadImages fetches every <img> source not loaded yet. Failures leave
// the element empty. With retry set only remote sources are attempted.
func (s *Stage) loadImages(ctx context.Context, proxyURL string, retry bool) {
	dom.Walk(s.replica, func(n *dom.Node) bool {
		if !n.IsElement("img") {
			return true
		}
		if _, ok := s.images[n]; ok {
			return true
		}
		src, ok := n.Get("src")
		if !ok || src == "" {
			return true
		}
		if retry && !isRemote(src) {
			return true
		}
		img, err := fetchImage(ctx, s.engine.client, proxyURL, src)
		if err != nil {
			s.engine.log.Warn("image not loaded", "src", truncate(src, 80), "error", err)
			return true
		}
		s.images[n] = img
		s.dirty = true
		return true
	})
}

func (s *Stage) check(ctx context.Context) error {
	if s.detached {
		return ErrDetached
	}
	return ctx.Err()
}

func (s *Stage) layout() tree {
	if s.dirty {
		s.tree = layoutTree(s.container, s.width, s.images)
		s.dirty = false
	}
	return s.tree
}

// Container returns the staging container.
func (s *Stage) Container() *dom.Node { return s.container }

// ContentWidth returns the container width, or 0 when the replica is
// not rendered at all.
func (s *Stage) ContentWidth() float64 {
	if _, ok := s.layout().boxes[s.replica]; !ok {
		return 0
	}
	return s.width
}

// Rect returns the border box of el. Elements without a box, such as
// those under display:none, measure as an empty rect at the origin.
func (s *Stage) Rect(ctx context.Context, el *dom.Node) (stage.Rect, error) {
	if err := s.check(ctx); err != nil {
		return stage.Rect{}, err
	}
	b, ok := s.layout().boxes[el]
	if !ok {
		return stage.Rect{}, nil
	}
	return stage.Rect{Top: b.y, Bottom: b.bottom(), Left: b.x, Right: b.x + b.w}, nil
}

// InsertSpacer inserts a block spacer before el.
func (s *Stage) InsertSpacer(ctx context.Context, before *dom.Node, height float64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if before.Parent == nil {
		return fmt.Errorf("layout: <%s> has no parent", before.Tag)
	}
	spacer := dom.NewElement("div", dom.Attribute{Key: "style", Val: stage.SpacerStyle(height)})
	before.Parent.InsertBefore(spacer, before)
	s.dirty = true
	return nil
}

// RestoreScroll applies captured scroll offsets, clamped to each box's
// scroll range.
func (s *Stage) RestoreScroll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	boxes := s.layout().boxes
	return dom.RestoreScroll(s.container, func(n *dom.Node, top, left float64) error {
		maxTop, maxLeft := 0.0, 0.0
		if b, ok := boxes[n]; ok {
			maxTop, maxLeft = b.maxScroll()
		}
		n.ScrollTop = math.Max(0, math.Min(top, maxTop))
		n.ScrollLeft = math.Max(0, math.Min(left, maxLeft))
		return nil
	})
}

// Detach removes the replica from the container. Later calls are no-ops.
func (s *Stage) Detach(context.Context) error {
	if s.detached {
		return nil
	}
	s.detached = true
	s.container.RemoveChild(s.replica)
	s.tree = tree{}
	return nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
