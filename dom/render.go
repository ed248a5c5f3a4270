package dom

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// RenderOptions controls [Render].
type RenderOptions struct {
	// ExtraAttrs, if set, returns additional attributes written on an
	// element. Staging hosts use it to tag elements with lookup ids.
	ExtraAttrs func(*Node) []Attribute
	// TagName, if set, overrides the tag written for an element. An empty
	// result keeps the node's own tag.
	TagName func(*Node) string
}

// Render writes the tree rooted at n as HTML. Live form state is written
// back into the markup: textarea content, input value attributes and the
// selected option of a select.
func Render(w io.Writer, n *Node, opts RenderOptions) error {
	return html.Render(w, toHTML(n, opts))
}

// RenderString is like [Render] but returns the markup as a string.
func RenderString(n *Node, opts RenderOptions) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, n, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toHTML(n *Node, opts RenderOptions) *html.Node {
	switch n.Kind {
	case TextNode:
		return &html.Node{Type: html.TextNode, Data: n.Tag}
	case OtherNode:
		if n.Tag == "#document" {
			doc := &html.Node{Type: html.DocumentNode}
			appendChildren(doc, n, opts)
			return doc
		}
		return &html.Node{Type: html.CommentNode, Data: n.Tag}
	}

	tag := n.Tag
	if opts.TagName != nil {
		if t := opts.TagName(n); t != "" {
			tag = t
		}
	}
	el := &html.Node{Type: html.ElementNode, Data: tag}
	for _, a := range n.Attr {
		if n.Tag == "input" && a.Key == "value" {
			continue
		}
		el.Attr = append(el.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	if opts.ExtraAttrs != nil {
		for _, a := range opts.ExtraAttrs(n) {
			el.Attr = append(el.Attr, html.Attribute{Key: a.Key, Val: a.Val})
		}
	}

	switch n.Tag {
	case "input":
		if n.Value != "" {
			el.Attr = append(el.Attr, html.Attribute{Key: "value", Val: n.Value})
		}
		return el
	case "textarea":
		if n.Value != "" {
			el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Value})
		}
		return el
	case "select":
		appendChildren(el, n, opts)
		markSelected(el, n.Value)
		return el
	}

	appendChildren(el, n, opts)
	return el
}

func appendChildren(dst *html.Node, n *Node, opts RenderOptions) {
	for _, c := range n.Children {
		dst.AppendChild(toHTML(c, opts))
	}
}

// markSelected moves the selected attribute onto the option whose value
// matches value.
func markSelected(sel *html.Node, value string) {
	var walk func(*html.Node)
	walk = func(h *html.Node) {
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data == "option" {
				attrs := c.Attr[:0]
				for _, a := range c.Attr {
					if a.Key != "selected" {
						attrs = append(attrs, a)
					}
				}
				c.Attr = attrs
				if htmlOptionValue(c) == value {
					c.Attr = append(c.Attr, html.Attribute{Key: "selected"})
				}
				continue
			}
			walk(c)
		}
	}
	walk(sel)
}

func htmlOptionValue(opt *html.Node) string {
	for _, a := range opt.Attr {
		if a.Key == "value" {
			return a.Val
		}
	}
	var buf bytes.Buffer
	for c := opt.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}
