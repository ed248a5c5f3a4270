// Package pagebreak pushes elements that would be cut by a page boundary
// down to the start of the next page.
package pagebreak

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/porticus-lab/go-dom-pdf/dom"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

// Rule is the break decision for one element.
type Rule struct {
	// AvoidSplit asks that the element is not cut by a page boundary.
	AvoidSplit bool
	// ForceBefore starts the element on a new page.
	ForceBefore bool
	// ForceAfter starts the following content on a new page. It is never
	// set by [Evaluate].
	ForceAfter bool
}

// Evaluate returns the rule for an element occupying r when pages are
// pageHeight pixels tall. An element straddling a boundary is forced onto
// the next page unless it is itself taller than one page, in which case it
// is left to split.
func Evaluate(r stage.Rect, pageHeight float64) Rule {
	rule := Rule{AvoidSplit: true}
	if !rule.AvoidSplit || rule.ForceBefore {
		return rule
	}
	startPage := math.Floor(r.Top / pageHeight)
	endPage := math.Floor(r.Bottom / pageHeight)
	span := math.Abs(r.Bottom-r.Top) / pageHeight
	if startPage != endPage && span <= 1 {
		rule.ForceBefore = true
	}
	return rule
}

// SpacerHeight is the height of the spacer that moves an element whose top
// edge is at top to the next page boundary.
func SpacerHeight(top, pageHeight float64) float64 {
	return pageHeight - math.Mod(top, pageHeight)
}

// Break records a spacer inserted by [Apply].
type Break struct {
	Element *dom.Node
	Rect    stage.Rect
	Rule    Rule
	Spacer  float64
}

// Apply walks every element of the staged container in document order and
// inserts a spacer before each element that must start on a new page.
// Elements are measured one at a time against the live layout, so a spacer
// shifts everything measured after it.
func Apply(ctx context.Context, s stage.Stage, pageHeight float64, log *slog.Logger) ([]Break, error) {
	if pageHeight <= 0 {
		return nil, fmt.Errorf("pagebreak: invalid page height %v", pageHeight)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var breaks []Break
	for _, el := range dom.Elements(s.Container()) {
		r, err := s.Rect(ctx, el)
		if err != nil {
			return breaks, fmt.Errorf("pagebreak: measuring <%s>: %w", el.Tag, err)
		}
		rule := Evaluate(r, pageHeight)
		if !rule.ForceBefore {
			continue
		}
		h := SpacerHeight(r.Top, pageHeight)
		if err := s.InsertSpacer(ctx, el, h); err != nil {
			return breaks, fmt.Errorf("pagebreak: inserting spacer before <%s>: %w", el.Tag, err)
		}
		log.Debug("inserted page break spacer",
			"tag", el.Tag,
			"top", r.Top,
			"bottom", r.Bottom,
			"spacer", h,
		)
		breaks = append(breaks, Break{Element: el, Rect: r, Rule: rule, Spacer: h})
	}
	return breaks, nil
}
