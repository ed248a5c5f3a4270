package dompdf

import "errors"

// Sentinel errors returned by the library. Conversion failures wrap one
// of ErrStaging, ErrRasterize or ErrWriter together with the cause, so
// both can be matched with [errors.Is].
var (
	// ErrClosed is returned when attempting to use a closed [Converter].
	ErrClosed = errors.New("dompdf: converter is closed")

	// ErrNoFilename is returned by [Converter.Convert] when
	// [ConvertOptions.Filename] is empty.
	ErrNoFilename = errors.New("dompdf: filename is required")

	// ErrNilRoot is returned when the tree to convert is nil.
	ErrNilRoot = errors.New("dompdf: root node is nil")

	// ErrStaging reports that the replica could not be attached or
	// measured, including a container with no width.
	ErrStaging = errors.New("dompdf: staging failed")

	// ErrRasterize reports a failure surfaced by the rasterizer.
	ErrRasterize = errors.New("dompdf: rasterization failed")

	// ErrWriter reports that the document could not be assembled or saved.
	ErrWriter = errors.New("dompdf: writing document failed")
)
