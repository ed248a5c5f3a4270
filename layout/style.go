package layout

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/porticus-lab/go-dom-pdf/dom"
)

// edges holds per-side lengths in CSS pixels.
type edges struct {
	top, right, bottom, left float64
}

func (e edges) horizontal() float64 { return e.left + e.right }
func (e edges) vertical() float64   { return e.top + e.bottom }

// style is the subset of CSS the engine understands. Only inline style
// attributes and a few tag defaults are consulted; there is no cascade
// apart from text colour inheritance.
type style struct {
	display string
	hidden  bool

	width, height       float64
	hasWidth, hasHeight bool

	margin  edges
	padding edges
	border  edges

	borderColor color.Color
	background  color.Color
	color       color.Color

	clip      bool
	bold      bool
	underline bool
}

// hiddenTags never produce boxes.
var hiddenTags = map[string]bool{
	"head": true, "style": true, "script": true, "meta": true,
	"link": true, "title": true, "template": true, "noscript": true,
}

// inlineTags flow inside a line when their subtree is inline too.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"cite": true, "code": true, "data": true, "dfn": true, "em": true,
	"font": true, "i": true, "kbd": true, "label": true, "mark": true,
	"q": true, "s": true, "samp": true, "small": true, "span": true,
	"strong": true, "sub": true, "sup": true, "time": true, "u": true,
	"var": true,
}

// computeStyle resolves the style of an element from its tag and its
// style attribute. parentColor is the inherited text colour.
func computeStyle(n *dom.Node, parentColor color.Color) style {
	st := style{color: parentColor}
	if hiddenTags[n.Tag] {
		st.display = "none"
	}
	if inlineTags[n.Tag] {
		st.display = "inline"
	}
	switch n.Tag {
	case "b", "strong", "th":
		st.bold = true
	case "a", "u":
		st.underline = true
	case "h1", "h2", "h3", "h4", "h5", "h6":
		st.bold = true
		st.margin = edges{top: 8, bottom: 8}
	case "p", "ul", "ol", "pre", "blockquote", "table":
		st.margin = edges{top: 8, bottom: 8}
	case "body":
		st.margin = edges{8, 8, 8, 8}
	case "hr":
		st.margin = edges{top: 8, bottom: 8}
		st.border = edges{top: 1, bottom: 1}
		st.borderColor = color.NRGBA{192, 192, 192, 255}
	}
	if v, ok := n.Get("hidden"); ok && v != "false" {
		st.display = "none"
	}

	raw, _ := n.Get("style")
	for _, d := range parseDeclarations(raw) {
		st.apply(d.prop, d.val)
	}
	return st
}

func (st *style) apply(prop, val string) {
	switch prop {
	case "display":
		st.display = val
	case "visibility":
		st.hidden = val == "hidden" || val == "collapse"
	case "width":
		if l, ok := parseLength(val); !ok || l >= 0 {
			st.width, st.hasWidth = l, ok
		}
	case "height":
		if l, ok := parseLength(val); !ok || l >= 0 {
			st.height, st.hasHeight = l, ok
		}
	case "margin":
		st.margin = parseEdges(val)
	case "padding":
		if e := parseEdges(val); !e.negative() {
			st.padding = e
		}
	case "margin-top", "margin-right", "margin-bottom", "margin-left":
		l, _ := parseLength(val)
		setSide(&st.margin, strings.TrimPrefix(prop, "margin-"), l)
	case "padding-top", "padding-right", "padding-bottom", "padding-left":
		if l, ok := parseLength(val); ok && l >= 0 {
			setSide(&st.padding, strings.TrimPrefix(prop, "padding-"), l)
		}
	case "border":
		w, c, ok := parseBorder(val)
		if !ok {
			break
		}
		st.border = edges{w, w, w, w}
		if c != nil {
			st.borderColor = c
		}
	case "border-width":
		if e := parseEdges(val); !e.negative() {
			st.border = e
		}
	case "border-color":
		if c, ok := parseColor(val); ok {
			st.borderColor = c
		}
	case "border-top", "border-right", "border-bottom", "border-left":
		w, c, ok := parseBorder(val)
		if !ok {
			break
		}
		setSide(&st.border, strings.TrimPrefix(prop, "border-"), w)
		if c != nil {
			st.borderColor = c
		}
	case "background", "background-color":
		for _, tok := range strings.Fields(val) {
			if c, ok := parseColor(tok); ok {
				st.background = c
				break
			}
		}
	case "color":
		if c, ok := parseColor(val); ok {
			st.color = c
		}
	case "overflow", "overflow-y":
		st.clip = val == "hidden" || val == "auto" || val == "scroll" || val == "clip"
	case "font-weight":
		w, err := strconv.Atoi(val)
		st.bold = val == "bold" || val == "bolder" || (err == nil && w >= 600)
	case "text-decoration", "text-decoration-line":
		st.underline = strings.Contains(val, "underline")
	}
}

type declaration struct {
	prop, val string
}

// parseDeclarations splits an inline style attribute into lower-cased
// property names and trimmed values, in source order.
func parseDeclarations(s string) []declaration {
	var decls []declaration
	for _, d := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(d, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important"))
		if prop != "" {
			decls = append(decls, declaration{prop, strings.TrimSpace(val)})
		}
	}
	return decls
}

// parseLength converts an absolute CSS length to pixels. Percentages,
// auto and unknown units report false.
func parseLength(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "rem"):
		v, scale = strings.TrimSuffix(v, "rem"), 16
	case strings.HasSuffix(v, "em"):
		v, scale = strings.TrimSuffix(v, "em"), 16
	case strings.HasSuffix(v, "pt"):
		v, scale = strings.TrimSuffix(v, "pt"), 4.0/3.0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f * scale, true
}

// parseEdges reads the one-to-four value margin/padding shorthand.
func parseEdges(v string) edges {
	var vals []float64
	for _, f := range strings.Fields(v) {
		l, _ := parseLength(f)
		vals = append(vals, l)
	}
	switch len(vals) {
	case 1:
		return edges{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		return edges{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		return edges{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		return edges{vals[0], vals[1], vals[2], vals[3]}
	}
	return edges{}
}

// negative reports whether any side is below zero. Only margins may be.
func (e edges) negative() bool {
	return e.top < 0 || e.right < 0 || e.bottom < 0 || e.left < 0
}

func setSide(e *edges, side string, l float64) {
	switch side {
	case "top":
		e.top = l
	case "right":
		e.right = l
	case "bottom":
		e.bottom = l
	case "left":
		e.left = l
	}
}

// parseBorder reads a border shorthand such as "1px solid #ccc". A
// negative width makes the whole shorthand invalid.
func parseBorder(v string) (float64, color.Color, bool) {
	var (
		width float64
		c     color.Color
		style bool
	)
	for _, tok := range strings.Fields(v) {
		switch tok {
		case "none", "hidden":
			return 0, nil, true
		case "solid", "dashed", "dotted", "double", "groove", "ridge", "inset", "outset":
			style = true
			continue
		case "thin":
			width = 1
			continue
		case "medium":
			width = 3
			continue
		case "thick":
			width = 5
			continue
		}
		if l, ok := parseLength(tok); ok {
			if l < 0 {
				return 0, nil, false
			}
			width = l
		} else if col, ok := parseColor(tok); ok {
			c = col
		}
	}
	if width == 0 && style {
		width = 3
	}
	return width, c, true
}

var namedColors = map[string]color.NRGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"silver":  {192, 192, 192, 255},
	"navy":    {0, 0, 128, 255},
	"teal":    {0, 128, 128, 255},
	"maroon":  {128, 0, 0, 255},
	"olive":   {128, 128, 0, 255},
	"lime":    {0, 255, 0, 255},
	"aqua":    {0, 255, 255, 255},
	"fuchsia": {255, 0, 255, 255},
}

// parseColor understands hex, rgb(), rgba(), a handful of colour names
// and "transparent".
func parseColor(v string) (color.Color, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "transparent" {
		return color.NRGBA{}, true
	}
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		return parseHexColor(v)
	}
	for _, fn := range []string{"rgba(", "rgb("} {
		if !strings.HasPrefix(v, fn) || !strings.HasSuffix(v, ")") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(v, fn), ")"), ",")
		if len(parts) != 3 && len(parts) != 4 {
			return nil, false
		}
		var ch [4]uint8
		ch[3] = 255
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, false
			}
			if i == 3 {
				f *= 255
			}
			ch[i] = uint8(max(0, min(255, f)))
		}
		return color.NRGBA{ch[0], ch[1], ch[2], ch[3]}, true
	}
	return nil, false
}

// parseHexColor parses #RGB, #RRGGBB and #RRGGBBAA.
func parseHexColor(s string) (color.Color, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, true
}
