package dompdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Result holds a generated PDF and provides helpers for common output
// formats such as raw bytes, base64 encoding, and streaming readers.
//
// It is safe to call its methods multiple times; the underlying data is
// never modified.
type Result struct {
	data     []byte
	pages    int
	segments int
	skipped  []int
	spacers  int
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Base64 returns the PDF encoded as a standard base64 string (RFC 4648).
// This is useful for embedding in JSON payloads.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the PDF to path. The content goes to a temporary
// file in the same directory first and is renamed into place, so a failed
// write never leaves a partial document at path.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".dompdf-*.tmp")
	if err != nil {
		return fmt.Errorf("dompdf: creating temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(r.data); err != nil {
		f.Close()
		return fmt.Errorf("dompdf: writing temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("dompdf: setting permissions: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dompdf: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dompdf: moving document into place: %w", err)
	}
	return nil
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// Pages returns the number of pages in the document.
func (r *Result) Pages() int {
	return r.pages
}

// Segments returns how many page-sized slices the raster was cut into,
// including blank ones.
func (r *Result) Segments() int {
	return r.segments
}

// Skipped returns the indices of blank segments that produced no page.
func (r *Result) Skipped() []int {
	return r.skipped
}

// Spacers returns how many elements were pushed to a new page to avoid
// being split.
func (r *Result) Spacers() int {
	return r.spacers
}
