// Package dom models the visual tree exported by the converter.
//
// A [Node] is a small, self-contained replacement for a browser DOM node: it
// carries the structural data (kind, tag, attributes, children) plus the
// widget state a structural copy would lose, namely canvas surfaces, form
// field values and scroll offsets.
package dom

import (
	"image"
	"strconv"
	"strings"
)

// Kind identifies the kind of a node.
type Kind int

const (
	// ElementNode is a tagged element such as <div>.
	ElementNode Kind = iota
	// TextNode holds character data.
	TextNode
	// OtherNode covers comments, doctypes and document nodes.
	OtherNode
)

func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	default:
		return "other"
	}
}

// Attribute is a single name/value pair on an element.
type Attribute struct {
	Key string
	Val string
}

// Node is a node of a visual tree. Children are owned by their parent; a
// node belongs to at most one tree at a time.
type Node struct {
	Kind Kind
	// Tag is the lower-case element name for elements. For text and other
	// nodes it holds the character data.
	Tag  string
	Attr []Attribute

	Parent   *Node
	Children []*Node

	// Surface holds the pixels of a canvas element.
	Surface *image.RGBA
	// Value is the live value of textarea, select and input elements.
	Value string
	// ScrollTop and ScrollLeft are the live scroll offsets of the element.
	ScrollTop  float64
	ScrollLeft float64

	// pending is a scroll position captured at snapshot time and applied
	// once the node has been staged.
	pending *scrollOffset
}

type scrollOffset struct {
	top, left float64
}

// NewElement returns a detached element with the given tag and attributes.
func NewElement(tag string, attrs ...Attribute) *Node {
	return &Node{Kind: ElementNode, Tag: strings.ToLower(tag), Attr: attrs}
}

// NewText returns a detached text node.
func NewText(text string) *Node {
	return &Node{Kind: TextNode, Tag: text}
}

// Text returns the character data of a text node, or "" for other kinds.
func (n *Node) Text() string {
	if n.Kind != TextNode {
		return ""
	}
	return n.Tag
}

// IsElement reports whether n is an element with one of the given tags.
// With no tags it reports whether n is an element at all.
func (n *Node) IsElement(tags ...string) bool {
	if n == nil || n.Kind != ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Tag == t {
			return true
		}
	}
	return false
}

// Get returns the value of the named attribute.
func (n *Node) Get(key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// Set sets or replaces the named attribute.
func (n *Node) Set(key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, Attribute{Key: key, Val: val})
}

// ID returns the id attribute.
func (n *Node) ID() string {
	v, _ := n.Get("id")
	return v
}

// Classes returns the class list of an element.
func (n *Node) Classes() []string {
	v, ok := n.Get("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClass reports whether the element's class list contains name.
func (n *Node) HasClass(name string) bool {
	for _, c := range n.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// CanvasSize returns the numeric width and height of a canvas element,
// falling back to the HTML defaults of 300x150.
func (n *Node) CanvasSize() (int, int) {
	w, h := 300, 150
	if v, ok := n.Get("width"); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i >= 0 {
			w = i
		}
	}
	if v, ok := n.Get("height"); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i >= 0 {
			h = i
		}
	}
	return w, h
}

// AppendChild adds c as the last child of n, detaching it from any previous parent.
func (n *Node) AppendChild(c *Node) {
	c.detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// InsertBefore inserts c immediately before ref, which must be a child of n.
// A nil ref appends.
func (n *Node) InsertBefore(c, ref *Node) {
	if ref == nil {
		n.AppendChild(c)
		return
	}
	c.detach()
	i := n.indexOf(ref)
	if i < 0 {
		n.AppendChild(c)
		return
	}
	c.Parent = n
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = c
}

// RemoveChild removes c from n. It is a no-op when c is not a child of n.
func (n *Node) RemoveChild(c *Node) {
	i := n.indexOf(c)
	if i < 0 {
		return
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	c.Parent = nil
}

func (n *Node) detach() {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func (n *Node) indexOf(c *Node) int {
	for i, ch := range n.Children {
		if ch == c {
			return i
		}
	}
	return -1
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Kind == TextNode {
			b.WriteString(c.Tag)
		}
		return true
	})
	return b.String()
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Elements returns every element below root in document order, excluding
// root itself. The result is a static list: later tree mutations do not
// change it.
func Elements(root *Node) []*Node {
	var out []*Node
	for _, c := range root.Children {
		Walk(c, func(n *Node) bool {
			if n.Kind == ElementNode {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// Find returns the first node below and including root for which match
// returns true.
func Find(root *Node, match func(*Node) bool) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByID returns the element with the given id.
func FindByID(root *Node, id string) *Node {
	return Find(root, func(n *Node) bool {
		return n.Kind == ElementNode && n.ID() == id
	})
}

// FindTag returns the first element with the given tag.
func FindTag(root *Node, tag string) *Node {
	return Find(root, func(n *Node) bool { return n.IsElement(tag) })
}
