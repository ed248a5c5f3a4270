package layout

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/porticus-lab/go-dom-pdf/dom"
)

var (
	controlBorder = color.NRGBA{118, 118, 118, 255}
	buttonFace    = color.NRGBA{239, 239, 239, 255}
)

// painter draws a laid-out tree onto an RGBA canvas.
type painter struct {
	dst    *image.RGBA
	filter dom.Filter
	images map[*dom.Node]image.Image
}

// pixelRect converts a float rectangle shifted by (dx, dy) to pixels.
func pixelRect(x, y, w, h, dx, dy float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x+dx)), int(math.Round(y+dy)),
		int(math.Round(x+w+dx)), int(math.Round(y+h+dy)),
	)
}

func (p *painter) keep(n *dom.Node) bool {
	return p.filter == nil || p.filter(n)
}

func (p *painter) fill(r, clip image.Rectangle, c color.Color) {
	r = r.Intersect(clip)
	if r.Empty() || c == nil {
		return
	}
	draw.Draw(p.dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// paint draws b and its descendants. clip bounds every pixel written;
// (dx, dy) is the scroll shift accumulated from clipping ancestors.
func (p *painter) paint(b *box, clip image.Rectangle, dx, dy float64) {
	if clip.Empty() {
		return
	}
	if b.node == nil {
		p.lines(b, clip, dx, dy)
		return
	}
	if b.node.Kind == dom.ElementNode && !p.keep(b.node) {
		return
	}
	if b.style.hidden {
		return
	}

	p.fill(pixelRect(b.x, b.y, b.w, b.h, dx, dy), clip, b.style.background)
	p.border(b, clip, dx, dy)
	p.replaced(b, clip, dx, dy)

	childClip := clip
	if b.style.clip {
		x, y, w, h := b.paddingBox()
		childClip = clip.Intersect(pixelRect(x, y, w, h, dx, dy))
		dx -= b.node.ScrollLeft
		dy -= b.node.ScrollTop
	}
	for _, c := range b.children {
		p.paint(c, childClip, dx, dy)
	}
}

func (p *painter) border(b *box, clip image.Rectangle, dx, dy float64) {
	bd := b.style.border
	if bd == (edges{}) {
		return
	}
	c := b.style.borderColor
	if c == nil {
		c = b.style.color
	}
	if c == nil {
		c = color.Black
	}
	p.fill(pixelRect(b.x, b.y, b.w, bd.top, dx, dy), clip, c)
	p.fill(pixelRect(b.x, b.bottom()-bd.bottom, b.w, bd.bottom, dx, dy), clip, c)
	p.fill(pixelRect(b.x, b.y, bd.left, b.h, dx, dy), clip, c)
	p.fill(pixelRect(b.x+b.w-bd.right, b.y, bd.right, b.h, dx, dy), clip, c)
}

// outline draws a one pixel frame just inside r.
func (p *painter) outline(r, clip image.Rectangle, c color.Color) {
	p.fill(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), clip, c)
	p.fill(image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), clip, c)
	p.fill(image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), clip, c)
	p.fill(image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), clip, c)
}

// replaced paints canvas surfaces, images and form controls into the
// content box.
func (p *painter) replaced(b *box, clip image.Rectangle, dx, dy float64) {
	n := b.node
	x, y, w, h := b.contentBox()
	r := pixelRect(x, y, w, h, dx, dy)
	ink := b.style.color
	if ink == nil {
		ink = color.Black
	}

	switch n.Tag {
	case "canvas":
		if n.Surface != nil {
			p.image(n.Surface, r, clip)
		}
	case "img":
		if img, ok := p.images[n]; ok {
			p.image(img, r, clip)
		}
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "hidden":
		case "checkbox", "radio":
			p.outline(r, clip, controlBorder)
			if _, checked := n.Get("checked"); checked {
				p.fill(r.Inset(3), clip, ink)
			}
		default:
			p.outline(r, clip, controlBorder)
			text := n.Value
			if strings.EqualFold(attr(n, "type"), "password") {
				text = strings.Repeat("*", utf8.RuneCountInString(text))
			}
			p.text(text, x+4, y+(h-lineHeight)/2, dx, dy, ink, clip.Intersect(r))
		}
	case "select":
		p.outline(r, clip, controlBorder)
		p.text(selectedLabel(n), x+4, y+(h-lineHeight)/2, dx, dy, ink, clip.Intersect(r))
	case "textarea":
		p.outline(r, clip, controlBorder)
		for i, ln := range wrapText(n.Value, w-8) {
			p.text(ln, x+4, y+float64(i*lineHeight), dx, dy, ink, clip.Intersect(r))
		}
	case "button":
		if b.style.background == nil {
			p.fill(r, clip, buttonFace)
		}
		p.outline(r, clip, controlBorder)
		label := strings.Join(strings.Fields(n.TextContent()), " ")
		p.text(label, x+8, y+(h-lineHeight)/2, dx, dy, ink, clip.Intersect(r))
	}
}

// image scales src to r and composites it.
func (p *painter) image(src image.Image, r, clip image.Rectangle) {
	if r.Empty() {
		return
	}
	if src.Bounds().Dx() != r.Dx() || src.Bounds().Dy() != r.Dy() {
		src = imaging.Resize(src, r.Dx(), r.Dy(), imaging.Linear)
	}
	vis := r.Intersect(clip)
	if vis.Empty() {
		return
	}
	sp := src.Bounds().Min.Add(vis.Min.Sub(r.Min))
	draw.Draw(p.dst, vis, src, sp, draw.Over)
}

// lines paints an anonymous inline run.
func (p *painter) lines(b *box, clip image.Rectangle, dx, dy float64) {
	for _, ln := range b.lines {
		for _, r := range ln.runs {
			if r.hidden || !p.keepAll(r.owners) {
				continue
			}
			c := r.color
			if c == nil {
				c = color.Black
			}
			p.text(r.text, b.x+r.x, ln.y, dx, dy, c, clip)
			if r.bold {
				p.text(r.text, b.x+r.x+1, ln.y, dx, dy, c, clip)
			}
			if r.underline {
				w := float64(utf8.RuneCountInString(r.text) * charWidth)
				p.fill(pixelRect(b.x+r.x, ln.y+baselineOffset+2, w, 1, dx, dy), clip, c)
			}
		}
	}
}

func (p *painter) keepAll(owners []*dom.Node) bool {
	for _, o := range owners {
		if !p.keep(o) {
			return false
		}
	}
	return true
}

// text draws s with its line box top at (x, y), restricted to clip.
func (p *painter) text(s string, x, y, dx, dy float64, c color.Color, clip image.Rectangle) {
	if s == "" || clip.Empty() {
		return
	}
	dst, ok := p.dst.SubImage(clip).(*image.RGBA)
	if !ok || dst.Bounds().Empty() {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(x+dx)), int(math.Round(y+dy))+baselineOffset),
	}
	d.DrawString(s)
}

// wrapText breaks s into lines no wider than width, honouring newlines.
func wrapText(s string, width float64) []string {
	maxChars := max(1, int(width)/charWidth)
	var out []string
	for _, para := range strings.Split(s, "\n") {
		var cur string
		for _, w := range strings.Fields(para) {
			switch {
			case cur == "":
				cur = w
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(w) <= maxChars:
				cur += " " + w
			default:
				out = append(out, cur)
				cur = w
			}
		}
		out = append(out, cur)
	}
	return out
}

// selectedLabel returns the visible text of a select's current option.
func selectedLabel(sel *dom.Node) string {
	var first, match *dom.Node
	dom.Walk(sel, func(n *dom.Node) bool {
		if !n.IsElement("option") {
			return true
		}
		if first == nil {
			first = n
		}
		v, ok := n.Get("value")
		if !ok {
			v = strings.TrimSpace(n.TextContent())
		}
		if match == nil && v == sel.Value {
			match = n
		}
		return false
	})
	if match == nil {
		match = first
	}
	if match == nil {
		return ""
	}
	return strings.Join(strings.Fields(match.TextContent()), " ")
}
