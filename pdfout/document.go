// Package pdfout assembles page images into an A4 portrait PDF.
package pdfout

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/disintegration/imaging"
)

// Options holds document metadata. Empty fields are left unset.
type Options struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	// CreationDate pins the creation timestamp, which makes output
	// reproducible. Zero means now.
	CreationDate time.Time
}

// Document is a PDF under construction. It starts with one empty page,
// so the first image needs no AddPage call. It satisfies
// paginate.PageWriter.
type Document struct {
	pdf    *fpdf.Fpdf
	images int
}

// New returns a document holding a single blank A4 portrait page, with
// no margins and automatic page breaks disabled.
func New(opts Options) *Document {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, true)
	}
	if opts.Subject != "" {
		pdf.SetSubject(opts.Subject, true)
	}
	if opts.Creator != "" {
		pdf.SetCreator(opts.Creator, true)
	}
	if opts.Producer != "" {
		pdf.SetProducer(opts.Producer, true)
	}
	if !opts.CreationDate.IsZero() {
		pdf.SetCreationDate(opts.CreationDate)
	}
	pdf.AddPage()
	return &Document{pdf: pdf}
}

// AddPage starts a new page.
func (d *Document) AddPage() {
	d.pdf.AddPage()
}

// AddImage places img on the current page at (x, y) scaled to w×h points.
// The image is embedded as a lossless PNG.
func (d *Document) AddImage(img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("pdfout: encoding page image: %w", err)
	}

	d.images++
	name := fmt.Sprintf("page-%d", d.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	d.pdf.RegisterImageOptionsReader(name, opts, &buf)
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("pdfout: adding image: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

// Output writes the finished PDF to w. The document cannot be modified
// afterwards.
func (d *Document) Output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("pdfout: writing document: %w", err)
	}
	return nil
}

// Bytes finishes the document and returns the encoded PDF.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
