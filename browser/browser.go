// Package browser stages and rasterizes replica trees in headless Chrome
// over the Chrome DevTools Protocol.
//
// Each Attach opens a dedicated tab holding the replica's markup, so
// measurements come from the browser's own layout engine and the raster
// is a real screenshot. Chrome or Chromium must be installed, or use
// [WithAutoDownload].
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/porticus-lab/go-dom-pdf/stage"
)

// DefaultWidth is the viewport width used when a stage requests none.
const DefaultWidth = 800

// ErrClosed is returned when a closed [Browser] is used.
var ErrClosed = errors.New("browser: browser is closed")

var _ stage.Engine = (*Browser)(nil)

type config struct {
	chromePath   string
	noSandbox    bool
	headless     string
	autoDownload bool
	log          *slog.Logger
}

func defaultConfig() config {
	return config{
		headless: "new",
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a [Browser].
type Option func(*config)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default standard locations are searched.
func WithChromePath(path string) Option {
	return func(c *config) {
		c.chromePath = path
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *config) {
		c.noSandbox = true
	}
}

// WithAutoDownload downloads a compatible Chromium build on first use
// when no executable path is configured.
func WithAutoDownload() Option {
	return func(c *config) {
		c.autoDownload = true
	}
}

// WithHeadless sets Chrome's headless mode flag, "new" by default.
func WithHeadless(mode string) Option {
	return func(c *config) {
		c.headless = mode
	}
}

// WithLogger sets the logger used for browser events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// Browser is a headless Chrome process acting as a [stage.Engine].
//
// Call [Browser.Close] when the Browser is no longer needed to release
// the process.
type Browser struct {
	cfg           config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New starts a headless browser. The caller must call [Browser.Close]
// when finished.
func New(opts ...Option) (*Browser, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser()
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: starting chrome: %w", err)
	}
	cfg.log.Debug("chrome started", "path", cfg.chromePath, "headless", cfg.headless)

	return &Browser{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	return nil
}

func (b *Browser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable. The binary is
// stored in ~/.cache/rod/browser (Unix) or %APPDATA%\rod\browser (Windows).
func resolveBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("browser: downloading chromium: %w", err)
	}
	return path, nil
}
