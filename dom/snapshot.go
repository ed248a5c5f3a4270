package dom

import (
	"image"
	"image/draw"
	"strconv"
)

// Snapshot returns an inert, fully independent copy of the tree rooted at
// root. Script elements are dropped unless includeScripts is set. Canvas
// pixels and form field values are captured explicitly, and each element
// copy remembers the source's scroll offsets so they can be re-applied
// with [RestoreScroll] once the copy has been laid out.
func Snapshot(root *Node, includeScripts bool) *Node {
	if root == nil {
		return nil
	}
	return copyNode(root, includeScripts)
}

func copyNode(n *Node, includeScripts bool) *Node {
	switch n.Kind {
	case TextNode:
		return NewText(n.Tag)
	case ElementNode:
		return copyElement(n, includeScripts)
	default:
		return &Node{Kind: n.Kind, Tag: n.Tag}
	}
}

func copyElement(n *Node, includeScripts bool) *Node {
	c := &Node{Kind: ElementNode, Tag: n.Tag}
	if len(n.Attr) > 0 {
		c.Attr = make([]Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}

	for _, ch := range n.Children {
		if !includeScripts && ch.IsElement("script") {
			continue
		}
		c.AppendChild(copyNode(ch, includeScripts))
	}

	switch n.Tag {
	case "canvas":
		copySurface(c, n)
	case "textarea", "select", "input":
		c.Value = n.Value
	}

	c.pending = &scrollOffset{top: n.ScrollTop, left: n.ScrollLeft}
	return c
}

// copySurface gives dst a fresh surface of the source canvas's size and
// redraws the source pixels onto it.
func copySurface(dst, src *Node) {
	w, h := src.CanvasSize()
	dst.Set("width", strconv.Itoa(w))
	dst.Set("height", strconv.Itoa(h))
	dst.Surface = image.NewRGBA(image.Rect(0, 0, w, h))
	if src.Surface != nil {
		draw.Draw(dst.Surface, dst.Surface.Bounds(), src.Surface, src.Surface.Bounds().Min, draw.Src)
	}
}

// RestoreScroll applies the scroll offsets captured by [Snapshot] to every
// element below root. apply is called once per element with a non-zero
// offset so a staging host can mirror the change; a nil apply only updates
// the nodes. Each captured offset is consumed on first use.
func RestoreScroll(root *Node, apply func(n *Node, top, left float64) error) error {
	var err error
	Walk(root, func(n *Node) bool {
		if err != nil {
			return false
		}
		p := n.pending
		if p == nil {
			return true
		}
		n.pending = nil
		n.ScrollTop, n.ScrollLeft = p.top, p.left
		if apply != nil && (p.top != 0 || p.left != 0) {
			err = apply(n, p.top, p.left)
		}
		return true
	})
	return err
}
