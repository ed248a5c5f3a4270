// Package paginate cuts a tall raster into page-sized segments, drops the
// blank ones and feeds the rest to a page writer.
package paginate

import (
	"errors"
	"fmt"
	"math"
)

// A4 portrait page size in points (1/72 inch).
const (
	A4WidthPt  = 595.28
	A4HeightPt = 841.89
)

// ErrZeroWidth is returned when the staged content has no width.
var ErrZeroWidth = errors.New("paginate: content width must be positive")

// Geometry relates output page units to raster pixels for one conversion.
type Geometry struct {
	PageWidthPt    float64
	PageHeightPt   float64
	ContentWidthPx float64
	// PageHeightPx is the number of raster rows that fill one page.
	PageHeightPx int
}

// NewGeometry derives A4 portrait geometry for content that is
// contentWidthPx pixels wide.
func NewGeometry(contentWidthPx float64) (Geometry, error) {
	return NewGeometryFor(A4WidthPt, A4HeightPt, contentWidthPx)
}

// NewGeometryFor derives geometry for an arbitrary fixed page size.
func NewGeometryFor(pageWidthPt, pageHeightPt, contentWidthPx float64) (Geometry, error) {
	if !(contentWidthPx > 0) || math.IsInf(contentWidthPx, 0) {
		return Geometry{}, fmt.Errorf("%w: got %v", ErrZeroWidth, contentWidthPx)
	}
	if pageWidthPt <= 0 || pageHeightPt <= 0 {
		return Geometry{}, fmt.Errorf("paginate: invalid page size %vx%v", pageWidthPt, pageHeightPt)
	}
	g := Geometry{
		PageWidthPt:    pageWidthPt,
		PageHeightPt:   pageHeightPt,
		ContentWidthPx: contentWidthPx,
		PageHeightPx:   int(math.Floor(contentWidthPx * pageHeightPt / pageWidthPt)),
	}
	if g.PageHeightPx < 1 {
		return Geometry{}, fmt.Errorf("%w: %vpx yields an empty page", ErrZeroWidth, contentWidthPx)
	}
	return g, nil
}

// PageCount returns how many segments a raster of the given height yields.
func PageCount(rasterHeight, pageHeightPx int) int {
	if rasterHeight <= 0 || pageHeightPx <= 0 {
		return 0
	}
	return (rasterHeight + pageHeightPx - 1) / pageHeightPx
}
