package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses an HTML document and returns its document node.
// Form field values are initialised from the markup the way a browser
// would on load.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parsing html: %w", err)
	}
	return convertNode(doc), nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses an HTML fragment in the context of a <body> element
// and returns a detached <div> holding the parsed nodes.
func ParseFragment(s string) (*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parsing fragment: %w", err)
	}
	root := NewElement("div")
	for _, n := range nodes {
		root.AppendChild(convertNode(n))
	}
	return root, nil
}

// Body returns the <body> element of a parsed document, or doc itself when
// there is none.
func Body(doc *Node) *Node {
	if b := FindTag(doc, "body"); b != nil {
		return b
	}
	return doc
}

func convertNode(n *html.Node) *Node {
	var node *Node
	switch n.Type {
	case html.TextNode:
		return NewText(n.Data)
	case html.ElementNode:
		node = &Node{Kind: ElementNode, Tag: strings.ToLower(n.Data)}
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			node.Attr = append(node.Attr, Attribute{Key: key, Val: a.Val})
		}
	case html.DocumentNode:
		node = &Node{Kind: OtherNode, Tag: "#document"}
	default:
		// Comments and doctypes carry nothing the converter renders.
		return &Node{Kind: OtherNode, Tag: n.Data}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		node.AppendChild(convertNode(c))
	}
	initFieldValue(node)
	return node
}

// initFieldValue sets the live value of form fields from their markup.
func initFieldValue(n *Node) {
	switch n.Tag {
	case "textarea":
		n.Value = n.TextContent()
	case "input":
		n.Value, _ = n.Get("value")
	case "select":
		var first, selected *Node
		Walk(n, func(c *Node) bool {
			if !c.IsElement("option") {
				return true
			}
			if first == nil {
				first = c
			}
			if _, ok := c.Get("selected"); ok {
				selected = c
			}
			return false
		})
		if selected == nil {
			selected = first
		}
		if selected != nil {
			n.Value = optionValue(selected)
		}
	}
}

func optionValue(opt *Node) string {
	if v, ok := opt.Get("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.TextContent())
}
