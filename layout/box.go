package layout

import (
	"image"
	"image/color"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/porticus-lab/go-dom-pdf/dom"
)

// Text metrics of basicfont.Face7x13 on a 16px line.
const (
	charWidth      = 7
	lineHeight     = 16
	baselineOffset = 12
)

// Intrinsic sizes of form controls.
const (
	controlWidth  = 160
	controlHeight = 24
	checkboxSize  = 13
	textareaRows  = 2
	textareaCols  = 20
)

// box is the laid-out border box of an element. A box without a node is
// an anonymous run of inline content.
type box struct {
	node  *dom.Node
	style style
	// x, y, w, h are the border box in container coordinates.
	x, y, w, h float64
	children   []*box
	lines      []line
	// scrollH and scrollW measure the content including overflow, from
	// the padding edge.
	scrollH, scrollW float64
}

type line struct {
	y    float64
	runs []run
}

// run is one word placed on a line.
type run struct {
	x         float64
	text      string
	color     color.Color
	bold      bool
	underline bool
	hidden    bool
	// owners are the inline elements the word sits in, innermost last.
	owners []*dom.Node
}

func (b *box) bottom() float64 { return b.y + b.h }

// paddingBox returns the padding edge of b.
func (b *box) paddingBox() (x, y, w, h float64) {
	bd := b.style.border
	return b.x + bd.left, b.y + bd.top, b.w - bd.horizontal(), b.h - bd.vertical()
}

// contentBox returns the content edge of b.
func (b *box) contentBox() (x, y, w, h float64) {
	x, y, w, h = b.paddingBox()
	p := b.style.padding
	return x + p.left, y + p.top, max(0, w-p.horizontal()), max(0, h-p.vertical())
}

// maxScroll returns how far b can be scrolled. Only clipping boxes scroll.
func (b *box) maxScroll() (top, left float64) {
	if !b.style.clip {
		return 0, 0
	}
	_, _, w, h := b.paddingBox()
	return max(0, b.scrollH-h), max(0, b.scrollW-w)
}

// tree is the result of one layout pass.
type tree struct {
	root  *box
	boxes map[*dom.Node]*box
}

// layouter stacks block boxes vertically and wraps inline content into
// fixed-height lines.
type layouter struct {
	images map[*dom.Node]image.Image
	boxes  map[*dom.Node]*box
}

// layoutTree lays out container and its subtree at the given width.
func layoutTree(container *dom.Node, width float64, images map[*dom.Node]image.Image) tree {
	l := &layouter{images: images, boxes: make(map[*dom.Node]*box)}
	root := &box{node: container, w: width}
	bottom := l.flow(root, container.Children, 0, 0, width, color.Black)
	root.h = bottom
	root.scrollH = bottom
	root.scrollW = width
	l.boxes[container] = root
	return tree{root: root, boxes: l.boxes}
}

// block lays out element n as a block box whose margin edge starts at
// (x, y) inside a containing block availW wide.
func (l *layouter) block(n *dom.Node, x, y, availW float64, inherited color.Color) *box {
	st := computeStyle(n, inherited)
	b := &box{node: n, style: st}
	b.x = x + st.margin.left
	b.y = y + st.margin.top

	frame := st.padding.horizontal() + st.border.horizontal()
	iw, ih, replaced := l.intrinsicSize(n, st, availW-st.margin.horizontal()-frame)
	switch {
	case st.hasWidth:
		b.w = st.width + frame
	case replaced:
		b.w = iw + frame
	default:
		b.w = max(0, availW-st.margin.horizontal())
	}

	cx := b.x + st.border.left + st.padding.left
	cy := b.y + st.border.top + st.padding.top
	cw := max(0, b.w-frame)

	var contentH float64
	if replaced {
		contentH = ih
		if st.hasWidth && !st.hasHeight && iw > 0 && n.IsElement("img", "canvas") {
			contentH = ih * cw / iw
		}
		b.scrollH, b.scrollW = contentH, cw
	} else {
		contentH = l.flow(b, n.Children, cx, cy, cw, st.color) - cy
		b.scrollH = contentH + st.padding.vertical()
		b.scrollW = cw + st.padding.horizontal()
		for _, c := range b.children {
			b.scrollW = max(b.scrollW, c.x+c.w-(b.x+st.border.left))
		}
	}
	if st.hasHeight {
		contentH = st.height
	}
	b.h = contentH + st.padding.vertical() + st.border.vertical()
	l.boxes[n] = b
	return b
}

// flow places children top to bottom inside a content box and returns
// the y coordinate below the last one.
func (l *layouter) flow(parent *box, children []*dom.Node, cx, cy, cw float64, inherited color.Color) float64 {
	cursor := cy
	var pending []*dom.Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ib := l.inline(pending, cx, cursor, cw, inherited)
		if ib.h > 0 {
			parent.children = append(parent.children, ib)
		}
		cursor = ib.bottom()
		pending = nil
	}

	for _, c := range children {
		switch c.Kind {
		case dom.TextNode:
			pending = append(pending, c)
			continue
		case dom.ElementNode:
		default:
			continue
		}
		st := computeStyle(c, inherited)
		if st.display == "none" {
			continue
		}
		if l.isInline(c, st) {
			pending = append(pending, c)
			continue
		}
		flush()
		cb := l.block(c, cx, cursor, cw, inherited)
		parent.children = append(parent.children, cb)
		cursor = cb.bottom() + cb.style.margin.bottom
	}
	flush()
	return cursor
}

// isInline reports whether n flows inside a line: it must be an inline
// element holding only text and other inline elements.
func (l *layouter) isInline(n *dom.Node, st style) bool {
	if st.display != "inline" {
		return false
	}
	for _, c := range n.Children {
		if c.Kind != dom.ElementNode {
			continue
		}
		cs := computeStyle(c, st.color)
		if cs.display == "none" {
			continue
		}
		if !l.isInline(c, cs) {
			return false
		}
	}
	return true
}

// word is a unit of inline content before line breaking. A word with
// empty text and brk set is a forced line break.
type word struct {
	text   string
	st     style
	owners []*dom.Node
	brk    bool
}

// inline wraps a run of text nodes and inline elements into lines and
// records a box for every inline element it contains.
func (l *layouter) inline(nodes []*dom.Node, cx, y, cw float64, inherited color.Color) *box {
	var words []word
	var empty []*dom.Node
	var collect func(n *dom.Node, st style, owners []*dom.Node)
	collect = func(n *dom.Node, st style, owners []*dom.Node) {
		switch n.Kind {
		case dom.TextNode:
			for _, f := range strings.Fields(n.Text()) {
				words = append(words, word{text: f, st: st, owners: owners})
			}
		case dom.ElementNode:
			cs := computeStyle(n, st.color)
			if cs.display == "none" {
				return
			}
			cs.bold = cs.bold || st.bold
			cs.underline = cs.underline || st.underline
			cs.hidden = cs.hidden || st.hidden
			inner := append(owners[:len(owners):len(owners)], n)
			if n.IsElement("br") {
				words = append(words, word{st: cs, owners: inner, brk: true})
				return
			}
			before := len(words)
			for _, c := range n.Children {
				collect(c, cs, inner)
			}
			if len(words) == before {
				empty = append(empty, n)
			}
		}
	}
	base := style{color: inherited}
	for _, n := range nodes {
		collect(n, base, nil)
	}

	ib := &box{x: cx, y: y, w: cw}
	spans := make(map[*dom.Node]*[4]float64)
	var cur *line
	var penX float64
	newLine := func() {
		ib.lines = append(ib.lines, line{y: y + float64(len(ib.lines))*lineHeight})
		cur = &ib.lines[len(ib.lines)-1]
		penX = 0
	}

	for _, w := range words {
		if cur == nil {
			newLine()
		}
		if w.brk {
			record(spans, w.owners, len(ib.lines)-1, penX, penX)
			newLine()
			continue
		}
		width := float64(utf8.RuneCountInString(w.text) * charWidth)
		gap := 0.0
		if len(cur.runs) > 0 {
			gap = charWidth
		}
		if len(cur.runs) > 0 && penX+gap+width > cw {
			newLine()
			gap = 0
		}
		x := penX + gap
		cur.runs = append(cur.runs, run{
			x:         x,
			text:      w.text,
			color:     w.st.color,
			bold:      w.st.bold,
			underline: w.st.underline,
			hidden:    w.st.hidden,
			owners:    w.owners,
		})
		record(spans, w.owners, len(ib.lines)-1, x, x+width)
		penX = x + width
	}

	ib.h = float64(len(ib.lines)) * lineHeight
	ib.scrollH, ib.scrollW = ib.h, cw

	for n, s := range spans {
		l.boxes[n] = &box{
			node:  n,
			style: computeStyle(n, inherited),
			x:     cx + s[2],
			y:     y + s[0]*lineHeight,
			w:     s[3] - s[2],
			h:     (s[1] - s[0] + 1) * lineHeight,
		}
	}
	last := max(0, len(ib.lines)-1)
	for _, n := range empty {
		if _, ok := l.boxes[n]; !ok {
			l.boxes[n] = &box{node: n, style: computeStyle(n, inherited), x: cx, y: y + float64(last)*lineHeight}
		}
	}
	return ib
}

// record widens the line and x extents of every owner to include a word
// on line ln spanning [x0, x1).
func record(spans map[*dom.Node]*[4]float64, owners []*dom.Node, ln int, x0, x1 float64) {
	for _, o := range owners {
		s, ok := spans[o]
		if !ok {
			spans[o] = &[4]float64{float64(ln), float64(ln), x0, x1}
			continue
		}
		s[1] = max(s[1], float64(ln))
		s[2] = min(s[2], x0)
		s[3] = max(s[3], x1)
	}
}

// intrinsicSize returns the content size of replaced elements and form
// controls. replaced is false for ordinary containers.
func (l *layouter) intrinsicSize(n *dom.Node, st style, availW float64) (w, h float64, replaced bool) {
	switch n.Tag {
	case "canvas":
		cw, ch := n.CanvasSize()
		return float64(cw), float64(ch), true
	case "img":
		w, h = attrPx(n, "width"), attrPx(n, "height")
		if img, ok := l.images[n]; ok {
			nw, nh := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
			switch {
			case w == 0 && h == 0:
				w, h = nw, nh
			case w == 0 && nh > 0:
				w = h * nw / nh
			case h == 0 && nw > 0:
				h = w * nh / nw
			}
		}
		if st.hasHeight && !st.hasWidth && h > 0 {
			w = w * st.height / h
		}
		return w, h, true
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "hidden":
			return 0, 0, true
		case "checkbox", "radio":
			return checkboxSize, checkboxSize, true
		}
		return controlWidth, controlHeight, true
	case "select":
		return controlWidth, controlHeight, true
	case "button":
		text := strings.Join(strings.Fields(n.TextContent()), " ")
		return float64(utf8.RuneCountInString(text)*charWidth + 16), controlHeight, true
	case "textarea":
		cols := attrInt(n, "cols", textareaCols)
		rows := attrInt(n, "rows", textareaRows)
		w = float64(cols*charWidth + 8)
		if w > availW && availW > 0 {
			w = availW
		}
		return w, float64(rows * lineHeight), true
	}
	return 0, 0, false
}

func attr(n *dom.Node, key string) string {
	v, _ := n.Get(key)
	return v
}

func attrPx(n *dom.Node, key string) float64 {
	v, ok := n.Get(key)
	if !ok {
		return 0
	}
	f, ok := parseLength(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func attrInt(n *dom.Node, key string, def int) int {
	if v, ok := n.Get(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
			return i
		}
	}
	return def
}
