package dompdf

import (
	"io"
	"log/slog"
	"time"

	"github.com/porticus-lab/go-dom-pdf/browser"
	"github.com/porticus-lab/go-dom-pdf/pdfout"
	"github.com/porticus-lab/go-dom-pdf/stage"
)

// converterConfig holds internal configuration for a Converter.
type converterConfig struct {
	host       stage.Host
	rasterizer stage.Rasterizer
	logger     *slog.Logger
	timeout    time.Duration
	stateHook  func(State)
	meta       pdfout.Options
	chrome     []browser.Option
}

func defaultConfig() converterConfig {
	return converterConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		meta:   pdfout.Options{Producer: "go-dom-pdf"},
	}
}

// Option configures a [Converter].
type Option func(*converterConfig)

// WithEngine sets the staging host and rasterizer. By default the
// in-process layout engine is used.
func WithEngine(e stage.Engine) Option {
	return func(c *converterConfig) {
		c.host = e
		c.rasterizer = e
	}
}

// WithHost sets the staging host alone. If it also implements
// [stage.Rasterizer] it rasterizes too, unless [WithRasterizer] is given.
func WithHost(h stage.Host) Option {
	return func(c *converterConfig) {
		c.host = h
	}
}

// WithRasterizer sets the rasterizer alone.
func WithRasterizer(r stage.Rasterizer) Option {
	return func(c *converterConfig) {
		c.rasterizer = r
	}
}

// WithLogger sets the logger. Conversions log state transitions,
// page-break spacers and skipped blank pages. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *converterConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout sets the maximum duration for a single conversion.
// A zero or negative value, the default, disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *converterConfig) {
		c.timeout = d
	}
}

// WithStateHook registers fn to observe every state transition of every
// conversion. fn runs synchronously on the converting goroutine.
func WithStateHook(fn func(State)) Option {
	return func(c *converterConfig) {
		c.stateHook = fn
	}
}

// WithTitle sets the document title.
func WithTitle(title string) Option {
	return func(c *converterConfig) {
		c.meta.Title = title
	}
}

// WithAuthor sets the document author.
func WithAuthor(author string) Option {
	return func(c *converterConfig) {
		c.meta.Author = author
	}
}

// WithCreator sets the application recorded as the document creator.
func WithCreator(creator string) Option {
	return func(c *converterConfig) {
		c.meta.Creator = creator
	}
}

// WithCreationDate pins the document creation date so output is
// reproducible.
func WithCreationDate(t time.Time) Option {
	return func(c *converterConfig) {
		c.meta.CreationDate = t
	}
}

// WithChromePath sets the path to the Chrome or Chromium executable used
// by [NewChromeConverter]. By default standard locations are searched.
func WithChromePath(path string) Option {
	return func(c *converterConfig) {
		c.chrome = append(c.chrome, browser.WithChromePath(path))
	}
}

// WithNoSandbox disables the Chrome sandbox for [NewChromeConverter].
// This is required when running as root, for example inside Docker
// containers.
func WithNoSandbox() Option {
	return func(c *converterConfig) {
		c.chrome = append(c.chrome, browser.WithNoSandbox())
	}
}

// WithAutoDownload lets [NewChromeConverter] download a compatible
// Chromium build when none is configured.
func WithAutoDownload() Option {
	return func(c *converterConfig) {
		c.chrome = append(c.chrome, browser.WithAutoDownload())
	}
}

// ConvertOptions describes one conversion.
type ConvertOptions struct {
	// Filename is the output path. It is required by [Converter.Convert]
	// and ignored by [Converter.Render].
	Filename string
	// ExcludeClassNames drops elements carrying any of these classes, with
	// their subtrees, from the output. Buttons, inputs and selects are
	// always dropped.
	ExcludeClassNames []string
	// OverrideWidth forces the staging container width in CSS pixels.
	OverrideWidth float64
	// ProxyURL routes cross-origin image loads through a proxy that takes
	// the original location in its "url" query parameter.
	ProxyURL string
	// IncludeScripts keeps script elements in the replica.
	IncludeScripts bool
}
