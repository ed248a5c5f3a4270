// Package stage defines the contract between the converter and the engines
// that give a replica tree real layout geometry and turn it into pixels.
//
// A [Host] attaches a replica to an invisible container and returns a
// [Stage]. The Stage is a scoped resource: it is owned by one conversion
// and must be released with Detach exactly once. A [Rasterizer] renders a
// Stage into a single tall image.
package stage

import (
	"context"
	"image"

	"github.com/porticus-lab/go-dom-pdf/dom"
)

// Rect is an element's border box in the container's coordinate space, in
// CSS pixels. Top is measured from the top edge of the container.
type Rect struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// AttachOptions configures a staging container.
type AttachOptions struct {
	// Width forces the container width in CSS pixels. Zero means the
	// host's natural width.
	Width float64
	// ProxyURL routes cross-origin resource loads made while staging
	// through a proxy. See [ProxiedURL].
	ProxyURL string
}

// Host attaches replica trees to a staging container.
type Host interface {
	Attach(ctx context.Context, replica *dom.Node, opts AttachOptions) (Stage, error)
}

// Stage is a replica attached to a staging container.
type Stage interface {
	// Container returns the staging container node; the replica is its
	// only child.
	Container() *dom.Node
	// ContentWidth returns the container's laid-out width in CSS pixels.
	ContentWidth() float64
	// Rect measures an element against the current layout.
	Rect(ctx context.Context, el *dom.Node) (Rect, error)
	// InsertSpacer inserts a block element of the given height directly
	// before el, in the replica and in the staged layout.
	InsertSpacer(ctx context.Context, before *dom.Node, height float64) error
	// RestoreScroll re-applies the scroll offsets captured at snapshot time.
	RestoreScroll(ctx context.Context) error
	// Detach removes the container and releases its resources.
	Detach(ctx context.Context) error
}

// RasterOptions configures a rasterization.
type RasterOptions struct {
	// Filter drops nodes, and their subtrees, from the output when it
	// returns false. A nil Filter keeps everything.
	Filter dom.Filter
	// ProxyURL routes cross-origin resource loads through a proxy.
	ProxyURL string
}

// Rasterizer renders a staged container into one image whose width is the
// container width and whose height is the full content height.
type Rasterizer interface {
	Rasterize(ctx context.Context, s Stage, opts RasterOptions) (image.Image, error)
}

// Engine is a Host that can also rasterize its own stages.
type Engine interface {
	Host
	Rasterizer
}

// SpacerStyle is the inline style of a spacer of the given height.
func SpacerStyle(height float64) string {
	return "display: block; height: " + formatPx(height) + "px"
}
