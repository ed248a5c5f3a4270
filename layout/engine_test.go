package layout

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porticus-lab/go-dom-pdf/dom"
	"github.com/porticus-lab/go-dom-pdf/pagebreak"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

func attach(t *testing.T, e *Engine, fragment string, opts stage.AttachOptions) (*Stage, *dom.Node) {
	t.Helper()
	root, err := dom.ParseFragment(fragment)
	require.NoError(t, err)
	st, err := e.Attach(context.Background(), root, opts)
	require.NoError(t, err)
	t.Cleanup(func() { st.Detach(context.Background()) })
	return st.(*Stage), root
}

func rectOf(t *testing.T, s *Stage, root *dom.Node, id string) stage.Rect {
	t.Helper()
	el := dom.FindByID(root, id)
	require.NotNil(t, el, "no element #%s", id)
	r, err := s.Rect(context.Background(), el)
	require.NoError(t, err)
	return r
}

func pixel(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func pngDataURL(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, c)))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

func TestStage_StacksBlocks(t *testing.T) {
	s, root := attach(t, New(), `<div id="a" style="height: 100px"></div>`+
		`<div id="b" style="height: 50px; margin-top: 10px"></div>`, stage.AttachOptions{})

	assert.Equal(t, stage.Rect{Top: 0, Bottom: 100, Left: 0, Right: 800}, rectOf(t, s, root, "a"))
	assert.Equal(t, stage.Rect{Top: 110, Bottom: 160, Left: 0, Right: 800}, rectOf(t, s, root, "b"))
	assert.Equal(t, 800.0, s.ContentWidth())
	assert.Same(t, root, s.Container().Children[0])
}

func TestStage_PaddingAndBorder(t *testing.T) {
	s, root := attach(t, New(), `<div id="p" style="padding: 10px; border: 2px solid red">`+
		`<div id="c" style="height: 20px"></div></div>`, stage.AttachOptions{Width: 400})

	assert.Equal(t, stage.Rect{Top: 12, Bottom: 32, Left: 12, Right: 388}, rectOf(t, s, root, "c"))
	assert.Equal(t, stage.Rect{Top: 0, Bottom: 44, Left: 0, Right: 400}, rectOf(t, s, root, "p"))
}

func TestStage_WrapsText(t *testing.T) {
	s, root := attach(t, New(), `<p id="t">aaaaaa bbbbbb cccccc</p><div id="after"></div>`,
		stage.AttachOptions{Width: 100})

	p := rectOf(t, s, root, "t")
	assert.Equal(t, 8.0, p.Top)
	assert.Equal(t, 2.0*lineHeight, p.Height())
	assert.Equal(t, p.Bottom+8, rectOf(t, s, root, "after").Top)
}

func TestStage_InlineElementRect(t *testing.T) {
	s, root := attach(t, New(), `<p><span id="s">hello</span> world</p>`, stage.AttachOptions{})

	r := rectOf(t, s, root, "s")
	assert.Equal(t, stage.Rect{Top: 8, Bottom: 8 + lineHeight, Left: 0, Right: 5 * charWidth}, r)
}

func TestStage_HiddenAndEmptyContent(t *testing.T) {
	s, root := attach(t, New(), `<div id="none" style="display: none; height: 50px"></div>`+
		`<div id="ws">   
	 </div><div id="next" style="height: 10px"></div>`, stage.AttachOptions{})

	assert.Equal(t, stage.Rect{}, rectOf(t, s, root, "none"))
	assert.Zero(t, rectOf(t, s, root, "ws").Height())
	assert.Equal(t, 0.0, rectOf(t, s, root, "next").Top)
}

func TestStage_ControlSizes(t *testing.T) {
	s, root := attach(t, New(), `<textarea id="ta" rows="3">x</textarea><input id="in" value="v">`+
		`<canvas id="cv" width="40" height="30"></canvas>`, stage.AttachOptions{})

	assert.Equal(t, 3.0*lineHeight, rectOf(t, s, root, "ta").Height())
	assert.Equal(t, float64(controlHeight), rectOf(t, s, root, "in").Height())
	cv := rectOf(t, s, root, "cv")
	assert.Equal(t, 30.0, cv.Height())
	assert.Equal(t, 40.0, cv.Right-cv.Left)
}

func TestStage_SpacerShiftsLaterSiblings(t *testing.T) {
	s, root := attach(t, New(), `<div id="a" style="height: 100px"></div><div id="b" style="height: 50px"></div>`,
		stage.AttachOptions{})
	b := dom.FindByID(root, "b")

	require.NoError(t, s.InsertSpacer(context.Background(), b, 60))

	assert.Equal(t, 160.0, rectOf(t, s, root, "b").Top)
	assert.Len(t, root.Children, 3)
}

func TestStage_PageBreakScenarios(t *testing.T) {
	t.Run("straddling element moves to next page", func(t *testing.T) {
		s, root := attach(t, New(), `<div style="height: 950px"></div><div id="x" style="height: 100px"></div>`,
			stage.AttachOptions{})

		breaks, err := pagebreak.Apply(context.Background(), s, 1000, nil)
		require.NoError(t, err)

		require.Len(t, breaks, 1)
		assert.Equal(t, 50.0, breaks[0].Spacer)
		assert.Equal(t, 1000.0, rectOf(t, s, root, "x").Top)
	})

	t.Run("oversized element is left to split", func(t *testing.T) {
		s, root := attach(t, New(), `<div id="big" style="height: 2500px"></div>`, stage.AttachOptions{})

		breaks, err := pagebreak.Apply(context.Background(), s, 1000, nil)
		require.NoError(t, err)

		assert.Empty(t, breaks)
		assert.Equal(t, 0.0, rectOf(t, s, root, "big").Top)
	})
}

func TestEngine_RasterizeSizeAndFilter(t *testing.T) {
	e := New()
	s, _ := attach(t, e, `<div class="secret" style="height: 20px; background: #ff0000"></div>`+
		`<div style="height: 20px; background-color: rgb(0, 0, 255)"></div>`, stage.AttachOptions{Width: 50})

	img, err := e.Rasterize(context.Background(), s, stage.RasterOptions{Filter: dom.ExclusionFilter([]string{"secret"})})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(img, 10, 5))
	assert.Equal(t, blue, pixel(img, 10, 25))
}

func TestStage_NegativeHeightIgnored(t *testing.T) {
	const tail = `<p id="b">b</p>`
	plain, plainRoot := attach(t, New(), `<p>a</p><div id="d">x</div>`+tail, stage.AttachOptions{})
	neg, negRoot := attach(t, New(), `<p>a</p><div id="d" style="height: -3000px; background: red">x</div>`+tail,
		stage.AttachOptions{})

	assert.Equal(t, rectOf(t, plain, plainRoot, "d"), rectOf(t, neg, negRoot, "d"))
	assert.Equal(t, rectOf(t, plain, plainRoot, "b"), rectOf(t, neg, negRoot, "b"))
	assert.Positive(t, rectOf(t, neg, negRoot, "b").Top)
}

func TestEngine_RasterizeRejectsHugeCanvas(t *testing.T) {
	e := New()
	s, _ := attach(t, e, `<div style="height: 5000000px"></div>`, stage.AttachOptions{})

	_, err := e.Rasterize(context.Background(), s, stage.RasterOptions{})
	assert.ErrorIs(t, err, ErrRasterTooLarge)

	wide, _ := attach(t, e, `<p>x</p>`, stage.AttachOptions{Width: 1e7})
	_, err = e.Rasterize(context.Background(), wide, stage.RasterOptions{})
	assert.ErrorIs(t, err, ErrRasterTooLarge)
}

func TestEngine_RasterizeNegativeMarginClampsHeight(t *testing.T) {
	e := New()
	s, _ := attach(t, e, `<div style="margin-top: -500px; height: 10px"></div>`, stage.AttachOptions{Width: 20})

	img, err := e.Rasterize(context.Background(), s, stage.RasterOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, img.Bounds().Dy(), 0)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestEngine_RasterizeCanvasSurface(t *testing.T) {
	e := New()
	cv := dom.NewElement("canvas", dom.Attribute{Key: "width", Val: "10"}, dom.Attribute{Key: "height", Val: "10"})
	cv.Surface = solid(10, 10, red)
	src := dom.NewElement("div")
	src.AppendChild(cv)

	st, err := e.Attach(context.Background(), dom.Snapshot(src, false), stage.AttachOptions{Width: 20})
	require.NoError(t, err)
	defer st.Detach(context.Background())

	img, err := e.Rasterize(context.Background(), st, stage.RasterOptions{})
	require.NoError(t, err)
	assert.Equal(t, red, pixel(img, 2, 2))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(img, 15, 2))
}

func TestEngine_RestoredScrollOffsetsClip(t *testing.T) {
	src, err := dom.ParseFragment(`<div id="box" style="height: 50px; overflow: hidden">` +
		`<div style="height: 50px; background: red"></div>` +
		`<div style="height: 50px; background: blue"></div></div>`)
	require.NoError(t, err)
	box := dom.FindByID(src, "box")
	box.ScrollTop = 80

	e := New()
	replica := dom.Snapshot(src, false)
	st, err := e.Attach(context.Background(), replica, stage.AttachOptions{Width: 20})
	require.NoError(t, err)
	defer st.Detach(context.Background())
	require.NoError(t, st.RestoreScroll(context.Background()))

	assert.Equal(t, 50.0, dom.FindByID(replica, "box").ScrollTop, "offset is clamped to the scroll range")
	img, err := e.Rasterize(context.Background(), st, stage.RasterOptions{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 50), img.Bounds())
	assert.Equal(t, blue, pixel(img, 5, 10))
}

func TestEngine_DataURLImage(t *testing.T) {
	e := New()
	s, root := attach(t, e, `<img id="i" src="`+pngDataURL(t, 4, 2, red)+`">`, stage.AttachOptions{Width: 10})

	r := rectOf(t, s, root, "i")
	assert.Equal(t, 2.0, r.Height())
	assert.Equal(t, 4.0, r.Right-r.Left)

	img, err := e.Rasterize(context.Background(), s, stage.RasterOptions{})
	require.NoError(t, err)
	assert.Equal(t, red, pixel(img, 1, 1))
}

func TestEngine_RemoteImageThroughProxy(t *testing.T) {
	const remote = "http://images.example/logo.png"
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, solid(6, 3, blue))
	}))
	defer srv.Close()

	s, root := attach(t, New(WithHTTPClient(srv.Client())), `<img id="i" src="`+remote+`">`,
		stage.AttachOptions{ProxyURL: srv.URL + "/proxy"})

	assert.Equal(t, remote, <-got)
	r := rectOf(t, s, root, "i")
	assert.Equal(t, 3.0, r.Height())
	assert.Equal(t, 6.0, r.Right-r.Left)
}

func TestEngine_BrokenImageIsEmpty(t *testing.T) {
	s, root := attach(t, New(), `<img id="i" src="relative/path.png" width="20" height="10">`, stage.AttachOptions{})

	assert.Equal(t, 10.0, rectOf(t, s, root, "i").Height())
}

func TestStage_Detach(t *testing.T) {
	e := New()
	root := dom.NewElement("div")
	st, err := e.Attach(context.Background(), root, stage.AttachOptions{})
	require.NoError(t, err)

	require.NoError(t, st.Detach(context.Background()))
	require.NoError(t, st.Detach(context.Background()))

	assert.Empty(t, st.Container().Children)
	_, err = st.Rect(context.Background(), root)
	assert.ErrorIs(t, err, ErrDetached)
	_, err = e.Rasterize(context.Background(), st, stage.RasterOptions{})
	assert.ErrorIs(t, err, ErrDetached)
}

func TestStage_ZeroWidthWhenNotRendered(t *testing.T) {
	root := dom.NewElement("div", dom.Attribute{Key: "style", Val: "display: none"})
	st, err := New().Attach(context.Background(), root, stage.AttachOptions{})
	require.NoError(t, err)
	defer st.Detach(context.Background())

	assert.Zero(t, st.ContentWidth())
}

func TestEngine_RejectsForeignStage(t *testing.T) {
	st, err := New().Attach(context.Background(), dom.NewElement("div"), stage.AttachOptions{})
	require.NoError(t, err)

	_, err = New().Rasterize(context.Background(), st, stage.RasterOptions{})
	assert.Error(t, err)
}

func TestEngine_AttachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Attach(ctx, dom.NewElement("div"), stage.AttachOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three\nfour", 8*charWidth)
	assert.Equal(t, []string{"one two", "three", "four"}, lines)
	assert.Equal(t, []string{""}, wrapText("", 100))
}

func TestSelectedLabel(t *testing.T) {
	root, err := dom.ParseFragment(`<select id="s"><option value="a">Ay</option><option value="b">Bee</option></select>`)
	require.NoError(t, err)
	sel := dom.FindByID(root, "s")

	sel.Value = "b"
	assert.Equal(t, "Bee", selectedLabel(sel))
	sel.Value = "missing"
	assert.Equal(t, "Ay", selectedLabel(sel))
	assert.Empty(t, selectedLabel(dom.NewElement("select")))
}
