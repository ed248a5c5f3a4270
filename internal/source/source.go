// Package source loads documents to convert from files, URLs and request
// bodies. Markdown input is rendered to HTML with goldmark first.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/porticus-lab/go-dom-pdf/dom"
)

// MaxBytes caps how much of a file or response is read.
const MaxBytes = 32 << 20

// ErrRootNotFound is returned when the requested root element is missing.
var ErrRootNotFound = errors.New("source: root element not found")

// Format is the markup language of a document.
type Format int

const (
	HTML Format = iota
	Markdown
)

func (f Format) String() string {
	if f == Markdown {
		return "markdown"
	}
	return "html"
}

// Detect guesses the format from a file name and an optional content type.
// Anything that is not recognisably Markdown is treated as HTML.
func Detect(name, contentType string) Format {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "text/markdown", "text/x-markdown":
				return Markdown
			case "text/html", "application/xhtml+xml":
				return HTML
			}
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return Markdown
	}
	return HTML
}

// Parse turns src into a document tree.
func Parse(src []byte, f Format) (*dom.Node, error) {
	if f == Markdown {
		var err error
		if src, err = MarkdownToHTML(src); err != nil {
			return nil, err
		}
	}
	return dom.Parse(bytes.NewReader(src))
}

// MarkdownToHTML renders GitHub flavoured Markdown into a standalone HTML
// document.
func MarkdownToHTML(src []byte) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"></head><body>")
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("source: rendering markdown: %w", err)
	}
	buf.WriteString("</body></html>")
	return buf.Bytes(), nil
}

// Load reads a document from a local path or an http(s) URL.
func Load(ctx context.Context, client *http.Client, location string) (*dom.Node, error) {
	if isURL(location) {
		return fetch(ctx, client, location)
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", location, err)
	}
	return Parse(data, Detect(location, ""))
}

func fetch(ctx context.Context, client *http.Client, u string) (*dom.Node, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetching %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: fetching %s: status %d", u, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", u, err)
	}
	return Parse(data, Detect(req.URL.Path, resp.Header.Get("Content-Type")))
}

// Root returns the element with the given id, or the document body when
// id is empty.
func Root(doc *dom.Node, id string) (*dom.Node, error) {
	if id == "" {
		return dom.Body(doc), nil
	}
	if n := dom.FindByID(doc, id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: #%s", ErrRootNotFound, id)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
