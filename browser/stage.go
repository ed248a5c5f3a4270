package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"

	"github.com/porticus-lab/go-dom-pdf/dom"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

// captureTile is the tallest slice taken in one screenshot. Chrome
// refuses captures beyond its maximum texture size.
const captureTile = 4096

// ErrDetached is returned when a detached stage is used.
var ErrDetached = errors.New("browser: stage is detached")

// Stage is a replica loaded into its own browser tab.
type Stage struct {
	browser   *Browser
	tabCtx    context.Context
	tabCancel context.CancelFunc

	container *dom.Node
	replica   *dom.Node
	ids       map[*dom.Node]string
	next      int
	width     float64
	detached  bool
}

type containerBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type jsRect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Attach opens a tab, loads the replica markup with form values and
// canvas surfaces, and waits for its images.
func (b *Browser) Attach(ctx context.Context, replica *dom.Node, opts stage.AttachOptions) (stage.Stage, error) {
	if replica == nil {
		return nil, errors.New("browser: nil replica")
	}
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	s := &Stage{
		browser:   b,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		container: dom.NewElement("div", dom.Attribute{Key: "id", Val: containerID}),
		replica:   replica,
		ids:       make(map[*dom.Node]string),
	}
	s.container.AppendChild(replica)
	dom.Walk(replica, func(n *dom.Node) bool {
		if n.Kind == dom.ElementNode {
			s.assign(n)
		}
		return true
	})

	if err := s.load(ctx, opts); err != nil {
		tabCancel()
		s.container.RemoveChild(replica)
		return nil, err
	}
	return s, nil
}

func (s *Stage) load(ctx context.Context, opts stage.AttachOptions) error {
	markup, err := dom.RenderString(s.replica, dom.RenderOptions{
		ExtraAttrs: func(n *dom.Node) []dom.Attribute {
			if id, ok := s.ids[n]; ok {
				return []dom.Attribute{{Key: idAttr, Val: id}}
			}
			return nil
		},
		TagName: stagedTag,
	})
	if err != nil {
		return fmt.Errorf("browser: rendering replica: %w", err)
	}

	viewport := opts.Width
	if viewport <= 0 {
		viewport = DefaultWidth
	}
	style := "position: relative; margin: 0; padding: 0; display: flow-root"
	if opts.Width > 0 {
		style += "; width: " + strconv.FormatFloat(opts.Width, 'f', -1, 64) + "px"
	}
	doc := fmt.Sprintf(documentTemplate, style, markup)

	if err := s.run(ctx,
		chromedp.Navigate("about:blank"),
		emulation.SetDeviceMetricsOverride(int64(math.Ceil(viewport)), 600, 1, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("#"+containerID, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: loading stage: %w", err)
	}

	if err := s.pushSurfaces(ctx); err != nil {
		return err
	}
	if err := s.routeImages(ctx, opts.ProxyURL); err != nil {
		return err
	}

	var box containerBox
	if err := s.eval(ctx, &box, containerBoxJS); err != nil {
		return fmt.Errorf("browser: measuring container: %w", err)
	}
	s.width = box.Width
	return nil
}

// stagedTag renders document-level elements as plain blocks so they can
// sit inside the staging container.
func stagedTag(n *dom.Node) string {
	switch n.Tag {
	case "html", "body":
		return "div"
	case "head":
		return "template"
	}
	return ""
}

func (s *Stage) assign(n *dom.Node) string {
	s.next++
	id := strconv.Itoa(s.next)
	s.ids[n] = id
	return id
}

// run executes actions in the stage's tab. Cancelling ctx closes the tab.
func (s *Stage) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.detached {
		return ErrDetached
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.tabCancel)
	defer stop()
	if err := chromedp.Run(s.tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// eval calls a JS function expression with args and decodes its result
// into res.
func (s *Stage) eval(ctx context.Context, res any, fn string, args ...any) error {
	expr, err := call(fn, args...)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.Evaluate(expr, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

// pushSurfaces draws each canvas surface into its staged counterpart.
func (s *Stage) pushSurfaces(ctx context.Context) error {
	var err error
	dom.Walk(s.replica, func(n *dom.Node) bool {
		if err != nil {
			return false
		}
		if !n.IsElement("canvas") || n.Surface == nil {
			return true
		}
		var buf bytes.Buffer
		if err = imaging.Encode(&buf, n.Surface, imaging.PNG); err != nil {
			err = fmt.Errorf("browser: encoding canvas: %w", err)
			return false
		}
		url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		var ok bool
		if err = s.eval(ctx, &ok, surfaceJS, s.ids[n], url); err != nil {
			err = fmt.Errorf("browser: drawing canvas: %w", err)
		}
		return true
	})
	return err
}

// routeImages points remote <img> sources at the proxy and waits for
// every image to settle.
func (s *Stage) routeImages(ctx context.Context, proxyURL string) error {
	srcs := make(map[string]string)
	if proxyURL != "" {
		dom.Walk(s.replica, func(n *dom.Node) bool {
			if src, ok := n.Get("src"); ok && n.IsElement("img") {
				if p := stage.ProxiedURL(proxyURL, src); p != src {
					srcs[s.ids[n]] = p
				}
			}
			return true
		})
	}
	var ok bool
	if len(srcs) > 0 {
		if err := s.eval(ctx, &ok, setSrcJS, srcs); err != nil {
			return fmt.Errorf("browser: proxying images: %w", err)
		}
	}
	if err := s.eval(ctx, &ok, waitImagesJS); err != nil {
		return fmt.Errorf("browser: waiting for images: %w", err)
	}
	return nil
}

// Container returns the staging container node.
func (s *Stage) Container() *dom.Node { return s.container }

// ContentWidth returns the container width measured after load.
func (s *Stage) ContentWidth() float64 { return s.width }

// Rect measures el with getBoundingClientRect, relative to the container.
func (s *Stage) Rect(ctx context.Context, el *dom.Node) (stage.Rect, error) {
	id, ok := s.ids[el]
	if !ok {
		return stage.Rect{}, nil
	}
	var r *jsRect
	if err := s.eval(ctx, &r, rectJS, id); err != nil {
		return stage.Rect{}, err
	}
	if r == nil {
		return stage.Rect{}, nil
	}
	return stage.Rect{Top: r.Top, Bottom: r.Bottom, Left: r.Left, Right: r.Right}, nil
}

// InsertSpacer inserts the spacer in the page and in the replica.
func (s *Stage) InsertSpacer(ctx context.Context, before *dom.Node, height float64) error {
	ref, ok := s.ids[before]
	if !ok || before.Parent == nil {
		return fmt.Errorf("browser: <%s> is not staged", before.Tag)
	}
	style := stage.SpacerStyle(height)
	spacer := dom.NewElement("div", dom.Attribute{Key: "style", Val: style})
	id := s.assign(spacer)

	var inserted bool
	if err := s.eval(ctx, &inserted, insertSpacerJS, ref, id, style); err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("browser: <%s> vanished from the page", before.Tag)
	}
	before.Parent.InsertBefore(spacer, before)
	return nil
}

// RestoreScroll applies captured scroll offsets in the page.
func (s *Stage) RestoreScroll(ctx context.Context) error {
	return dom.RestoreScroll(s.container, func(n *dom.Node, top, left float64) error {
		id, ok := s.ids[n]
		if !ok {
			return nil
		}
		var done bool
		return s.eval(ctx, &done, scrollJS, id, top, left)
	})
}

// Detach closes the tab. Later calls are no-ops.
func (s *Stage) Detach(context.Context) error {
	if s.detached {
		return nil
	}
	s.detached = true
	s.tabCancel()
	s.container.RemoveChild(s.replica)
	return nil
}

// Rasterize screenshots the whole container, hiding filtered elements
// for the duration of the capture.
func (b *Browser) Rasterize(ctx context.Context, st stage.Stage, opts stage.RasterOptions) (image.Image, error) {
	s, ok := st.(*Stage)
	if !ok || s.browser != b {
		return nil, fmt.Errorf("browser: cannot rasterize a %T", st)
	}
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if opts.ProxyURL != "" {
		if err := s.routeImages(ctx, opts.ProxyURL); err != nil {
			return nil, err
		}
	}

	var hidden []string
	if opts.Filter != nil {
		dom.Walk(s.container, func(n *dom.Node) bool {
			if n.Kind != dom.ElementNode || opts.Filter(n) {
				return true
			}
			if id, ok := s.ids[n]; ok {
				hidden = append(hidden, id)
			}
			return false
		})
	}
	var done bool
	if len(hidden) > 0 {
		if err := s.eval(ctx, &done, hideJS, hidden, true); err != nil {
			return nil, fmt.Errorf("browser: hiding excluded nodes: %w", err)
		}
		defer s.eval(context.WithoutCancel(ctx), &done, hideJS, hidden, false)
	}

	var box containerBox
	if err := s.eval(ctx, &box, containerBoxJS); err != nil {
		return nil, fmt.Errorf("browser: measuring container: %w", err)
	}
	w, h := int(math.Ceil(box.Width)), int(math.Ceil(box.Height))
	raster := imaging.New(w, h, color.White)

	for y := 0; y < h; y += captureTile {
		th := min(captureTile, h-y)
		var buf []byte
		if err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(&page.Viewport{X: box.X, Y: box.Y + float64(y), Width: float64(w), Height: float64(th), Scale: 1}).
				Do(ctx)
			return err
		})); err != nil {
			return nil, fmt.Errorf("browser: capturing screenshot: %w", err)
		}
		tile, err := imaging.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("browser: decoding screenshot: %w", err)
		}
		draw.Draw(raster, image.Rect(0, y, w, y+th), tile, tile.Bounds().Min, draw.Src)
	}
	b.cfg.log.Debug("captured stage", "width", w, "height", h)
	return raster, nil
}
