package paginate

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a PageWriter that remembers what it was asked to do.
type recorder struct {
	ops    []string
	images []*image.NRGBA
	sizes  [][2]float64
	err    error
}

func (r *recorder) AddPage() { r.ops = append(r.ops, "page") }

func (r *recorder) AddImage(img image.Image, x, y, w, h float64) error {
	if r.err != nil {
		return r.err
	}
	r.ops = append(r.ops, "image")
	r.images = append(r.images, img.(*image.NRGBA))
	r.sizes = append(r.sizes, [2]float64{w, h})
	return nil
}

// geometry1000 returns geometry whose pages are exactly 1000px tall.
func geometry1000(t *testing.T) Geometry {
	t.Helper()
	g, err := NewGeometryFor(500, 1000, 500)
	require.NoError(t, err)
	require.Equal(t, 1000, g.PageHeightPx)
	return g
}

// raster returns a white image of the given size with a grey band drawn
// in every row range of ink.
func raster(w, h int, ink ...[2]int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for _, band := range ink {
		draw.Draw(img, image.Rect(0, band[0], w, band[1]), image.NewUniform(color.Gray{Y: 80}), image.Point{}, draw.Src)
	}
	return img
}

func TestNewGeometry_A4(t *testing.T) {
	g, err := NewGeometry(800)
	require.NoError(t, err)

	assert.Equal(t, A4WidthPt, g.PageWidthPt)
	assert.Equal(t, A4HeightPt, g.PageHeightPt)
	assert.Equal(t, int(math.Floor(800*A4HeightPt/A4WidthPt)), g.PageHeightPx)
	assert.Equal(t, 1131, g.PageHeightPx)
}

func TestNewGeometry_ZeroWidth(t *testing.T) {
	for _, w := range []float64{0, -10, math.NaN()} {
		_, err := NewGeometry(w)
		assert.ErrorIs(t, err, ErrZeroWidth)
	}
}

func TestPageCount(t *testing.T) {
	for _, ph := range []int{1, 7, 999, 1000, 1131} {
		for _, h := range []int{1, 2, 999, 1000, 1001, 2500, 3000, 12345} {
			want := int(math.Ceil(float64(h) / float64(ph)))
			assert.Equal(t, want, PageCount(h, ph), "height %d page %d", h, ph)
		}
	}
	assert.Zero(t, PageCount(0, 1000))
}

func TestSegments_TrimsFinalSegment(t *testing.T) {
	g := geometry1000(t)

	segs := Segments(400, 2500, g)

	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Index: 0, Y: 0, Height: 1000, OutputHeightPt: 1000}, segs[0])
	assert.Equal(t, Segment{Index: 1, Y: 1000, Height: 1000, OutputHeightPt: 1000}, segs[1])
	assert.Equal(t, 2000, segs[2].Y)
	assert.Equal(t, 500, segs[2].Height)
	assert.InDelta(t, 500*g.PageWidthPt/400, segs[2].OutputHeightPt, 1e-9)
}

func TestSegments_ExactMultiple(t *testing.T) {
	segs := Segments(500, 3000, geometry1000(t))

	require.Len(t, segs, 3)
	for _, s := range segs {
		assert.Equal(t, 1000, s.Height)
		assert.Equal(t, 1000.0, s.OutputHeightPt)
	}
}

func TestIsBlank(t *testing.T) {
	for _, h := range []int{1, 17, 500, 1000} {
		img := RenderSegment(raster(30, h), Segment{Height: h})
		assert.True(t, IsBlank(img), "white segment of height %d", h)
	}

	img := RenderSegment(raster(30, 100), Segment{Height: 100})
	img.Set(29, 99, color.NRGBA{R: 255, G: 255, B: 254, A: 255})
	assert.False(t, IsBlank(img))
}

func TestRenderSegment_TransparentBecomesWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 20))

	img := RenderSegment(src, Segment{Y: 10, Height: 10})

	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
	assert.True(t, IsBlank(img))
}

func TestRenderSegment_CopiesRows(t *testing.T) {
	src := raster(10, 300, [2]int{150, 160})

	img := RenderSegment(src, Segment{Y: 100, Height: 100})

	assert.Equal(t, color.NRGBA{R: 80, G: 80, B: 80, A: 255}, img.NRGBAAt(5, 55))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.NRGBAAt(5, 45))
}

func TestRenderSegment_OffsetBounds(t *testing.T) {
	full := raster(10, 300, [2]int{150, 160})
	sub := full.SubImage(image.Rect(0, 100, 10, 300))

	img := RenderSegment(sub, Segment{Y: 50, Height: 10})

	assert.False(t, IsBlank(img))
}

func TestEmit_ScenarioA_AllPagesFull(t *testing.T) {
	w := &recorder{}

	st, err := Emit(raster(500, 3000, [2]int{0, 3000}), geometry1000(t), w, nil)
	require.NoError(t, err)

	assert.Equal(t, Stats{Segments: 3, Pages: 3}, st)
	assert.Equal(t, []string{"image", "page", "image", "page", "image"}, w.ops)
	for _, s := range w.sizes {
		assert.Equal(t, [2]float64{500, 1000}, s)
	}
}

func TestEmit_ScenarioB_BlankTailElided(t *testing.T) {
	w := &recorder{}

	st, err := Emit(raster(500, 3000, [2]int{0, 2000}), geometry1000(t), w, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, st.Pages)
	assert.Equal(t, []int{2}, st.Skipped)
	assert.Equal(t, []string{"image", "page", "image"}, w.ops)
}

func TestEmit_BlankFirstSegmentUsesImplicitPage(t *testing.T) {
	w := &recorder{}

	st, err := Emit(raster(500, 2500, [2]int{1200, 1300}, [2]int{2100, 2200}), geometry1000(t), w, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, st.Skipped)
	assert.Equal(t, []string{"image", "page", "image"}, w.ops)
}

func TestEmit_ScenarioE_TrimmedLastPage(t *testing.T) {
	w := &recorder{}
	g := geometry1000(t)

	st, err := Emit(raster(400, 2500, [2]int{0, 2500}), g, w, nil)
	require.NoError(t, err)

	require.Equal(t, 3, st.Pages)
	assert.Equal(t, 500, w.images[2].Bounds().Dy())
	assert.InDelta(t, 500*g.PageWidthPt/400, w.sizes[2][1], 1e-9)
	assert.NotEqual(t, g.PageHeightPt, w.sizes[2][1])
}

func TestEmit_PreservesVerticalOrder(t *testing.T) {
	// Each page carries a marker band whose grey level identifies the
	// source segment; blank segments in between are dropped.
	img := raster(20, 5000)
	levels := map[int]uint8{0: 10, 2: 20, 3: 30}
	for seg, y := range levels {
		draw.Draw(img, image.Rect(0, seg*1000+10, 20, seg*1000+20), image.NewUniform(color.Gray{Y: y}), image.Point{}, draw.Src)
	}
	w := &recorder{}

	st, err := Emit(img, geometry1000(t), w, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4}, st.Skipped)
	require.Len(t, w.images, 3)
	var got []uint8
	for _, p := range w.images {
		got = append(got, p.NRGBAAt(0, 15).R)
	}
	assert.Equal(t, []uint8{10, 20, 30}, got)
}

func TestEmit_WriterError(t *testing.T) {
	boom := errors.New("disk full")
	w := &recorder{err: boom}

	_, err := Emit(raster(500, 1000, [2]int{0, 10}), geometry1000(t), w, nil)
	assert.ErrorIs(t, err, boom)
}
