package pdfout

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// Info describes an existing PDF.
type Info struct {
	Pages     int
	PageSizes []Size
	// Images counts the image XObjects reachable from page resources.
	Images   int
	Title    string
	Author   string
	Creator  string
	Producer string
}

// Inspect reads page count, page sizes, images and metadata from data.
func Inspect(data []byte) (info Info, err error) {
	// The reader panics on some malformed input instead of failing.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfout: malformed pdf: %v", r)
		}
	}()

	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("pdfout: opening pdf: %w", err)
	}

	meta := r.Trailer().Key("Info")
	info = Info{
		Pages:    r.NumPage(),
		Title:    meta.Key("Title").Text(),
		Author:   meta.Key("Author").Text(),
		Creator:  meta.Key("Creator").Text(),
		Producer: meta.Key("Producer").Text(),
	}

	seen := make(map[string]bool)
	for i := 1; i <= info.Pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		info.PageSizes = append(info.PageSizes, mediaBox(p.V))

		xobj := p.Resources().Key("XObject")
		for _, name := range xobj.Keys() {
			if seen[name] {
				continue
			}
			if xobj.Key(name).Key("Subtype").Name() == "Image" {
				seen[name] = true
				info.Images++
			}
		}
	}
	return info, nil
}

// mediaBox returns the page's MediaBox size, following inheritance
// through the page tree.
func mediaBox(v pdflib.Value) Size {
	for ; !v.IsNull(); v = v.Key("Parent") {
		mb := v.Key("MediaBox")
		if mb.Kind() == pdflib.Array && mb.Len() == 4 {
			return Size{
				Width:  mb.Index(2).Float64() - mb.Index(0).Float64(),
				Height: mb.Index(3).Float64() - mb.Index(1).Float64(),
			}
		}
	}
	return Size{}
}
