package paginate

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Segment is a horizontal slice of the raster that becomes one page.
type Segment struct {
	Index int
	// Y and Height are in raster pixels.
	Y      int
	Height int
	// OutputHeightPt is the height the slice occupies on the page.
	OutputHeightPt float64
}

// Segments slices a raster of the given size into page segments. Full
// segments fill the page height; a shorter final segment keeps the
// raster's aspect ratio so it is never stretched.
func Segments(rasterWidth, rasterHeight int, g Geometry) []Segment {
	n := PageCount(rasterHeight, g.PageHeightPx)
	segs := make([]Segment, 0, n)
	for p := 0; p < n; p++ {
		s := Segment{
			Index:          p,
			Y:              p * g.PageHeightPx,
			Height:         g.PageHeightPx,
			OutputHeightPt: g.PageHeightPt,
		}
		if rem := rasterHeight % g.PageHeightPx; p == n-1 && rem != 0 {
			s.Height = rem
			s.OutputHeightPt = float64(rem) * g.PageWidthPt / float64(rasterWidth)
		}
		segs = append(segs, s)
	}
	return segs
}

// RenderSegment draws the raster rows of s onto a white canvas of the
// segment's size. Transparent raster pixels come out white.
func RenderSegment(raster image.Image, s Segment) *image.NRGBA {
	b := raster.Bounds()
	canvas := imaging.New(b.Dx(), s.Height, color.White)
	src := imaging.Crop(raster, image.Rect(b.Min.X, b.Min.Y+s.Y, b.Max.X, b.Min.Y+s.Y+s.Height))
	return imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)
}

// IsBlank reports whether every pixel of img is opaque white.
func IsBlank(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			if v != 0xff {
				return false
			}
		}
	}
	return true
}

// PageWriter receives the non-blank segments in order. The writer starts
// with one implicit page; AddPage is called before every page after the
// first.
type PageWriter interface {
	AddPage()
	AddImage(img image.Image, x, y, w, h float64) error
}

// Stats summarises an [Emit] run.
type Stats struct {
	Segments int
	Pages    int
	// Skipped lists the indices of elided blank segments.
	Skipped []int
}

// Emit slices raster into pages and writes every non-blank segment to w in
// top-to-bottom order.
func Emit(raster image.Image, g Geometry, w PageWriter, log *slog.Logger) (Stats, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := raster.Bounds()
	segs := Segments(b.Dx(), b.Dy(), g)
	st := Stats{Segments: len(segs)}

	for _, s := range segs {
		page := RenderSegment(raster, s)
		if IsBlank(page) {
			log.Debug("skipping blank segment", "index", s.Index, "y", s.Y, "height", s.Height)
			st.Skipped = append(st.Skipped, s.Index)
			continue
		}
		if st.Pages > 0 {
			w.AddPage()
		}
		if err := w.AddImage(page, 0, 0, g.PageWidthPt, s.OutputHeightPt); err != nil {
			return st, fmt.Errorf("paginate: page %d: %w", st.Pages+1, err)
		}
		st.Pages++
	}
	return st, nil
}
