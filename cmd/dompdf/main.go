// dompdf renders HTML and Markdown documents into paginated PDF files and
// inspects the result.
//
// Usage:
//
//	dompdf convert [options] <input.html|input.md|URL>
//	dompdf info <file.pdf>
//	dompdf serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	dompdf "github.com/porticus-lab/go-dom-pdf"
	"github.com/porticus-lab/go-dom-pdf/internal/config"
	"github.com/porticus-lab/go-dom-pdf/internal/server"
	"github.com/porticus-lab/go-dom-pdf/internal/source"
	"github.com/porticus-lab/go-dom-pdf/pdfout"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(cfg, os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "serve":
		err = runServe(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`dompdf - render HTML documents into paginated PDF files

Usage:
  dompdf convert [options] <input.html|input.md|URL>
  dompdf info [-f text|json] <file.pdf>
  dompdf serve

Commands:
  convert   Render a document into an A4 PDF
  info      Display document metadata and page dimensions
  serve     Run the HTTP conversion service

Convert options:
  -o <file>        Output file (default: input name with .pdf)
  -root <id>       Render only the element with this id (default: body)
  -exclude <list>  Comma separated class names to leave out
  -width <px>      Force the staging width in CSS pixels
  -proxy <url>     Proxy for cross-origin images
  -engine <name>   layout or chrome (default: $DOMPDF_ENGINE or layout)
  -title <text>    Document title
  -scripts         Keep script elements in the staged copy

Environment:
  DOMPDF_ENGINE, DOMPDF_CHROME_PATH, DOMPDF_NO_SANDBOX, DOMPDF_AUTO_DOWNLOAD,
  DOMPDF_TIMEOUT, DOMPDF_WIDTH, DOMPDF_PROXY_URL, DOMPDF_EXCLUDE,
  DOMPDF_ADDR, DOMPDF_MAX_BODY_BYTES, DOMPDF_LOG_LEVEL, DOMPDF_LOG_FORMAT

Examples:
  dompdf convert report.html
  dompdf convert -root invoice -exclude no-print -o invoice.pdf page.html
  dompdf convert -engine chrome https://example.com
  dompdf info report.pdf
`)
}

// convertArgs holds the parsed "convert" command line.
type convertArgs struct {
	input   string
	output  string
	root    string
	title   string
	scripts bool
}

// parseConvertArgs applies command line flags on top of cfg.
func parseConvertArgs(cfg *config.Config, args []string) (convertArgs, error) {
	var a convertArgs
	value := func(i *int) (string, error) {
		flag := args[*i]
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("%s requires an argument", flag)
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		var err error
		switch args[i] {
		case "-o":
			a.output, err = value(&i)
		case "-root":
			a.root, err = value(&i)
		case "-exclude":
			cfg.Exclude, err = value(&i)
		case "-proxy":
			cfg.ProxyURL, err = value(&i)
		case "-engine":
			var v string
			v, err = value(&i)
			cfg.Engine = strings.ToLower(v)
		case "-title":
			a.title, err = value(&i)
		case "-width":
			var v string
			if v, err = value(&i); err == nil {
				if cfg.Width, err = strconv.ParseFloat(v, 64); err != nil {
					err = fmt.Errorf("invalid width %q", v)
				}
			}
		case "-scripts":
			a.scripts = true
		default:
			if strings.HasPrefix(args[i], "-") {
				return a, fmt.Errorf("unknown option: %s", args[i])
			}
			a.input = args[i]
		}
		if err != nil {
			return a, err
		}
	}

	if a.input == "" {
		return a, fmt.Errorf("no input file specified")
	}
	if a.output == "" {
		a.output = outputName(a.input)
	}
	return a, cfg.Validate()
}

// outputName derives the PDF name for an input path or URL.
func outputName(input string) string {
	name := input
	if u, err := url.Parse(input); err == nil && u.Host != "" {
		name = strings.TrimRight(u.Path, "/")
	}
	base := filepath.Base(name)
	if name == "" || base == "." || base == "/" {
		base = "document"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

// runConvert implements the "convert" command.
func runConvert(cfg config.Config, args []string) error {
	a, err := parseConvertArgs(&cfg, args)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := source.Load(ctx, nil, a.input)
	if err != nil {
		return err
	}
	root, err := source.Root(doc, a.root)
	if err != nil {
		return err
	}

	opts := []dompdf.Option{dompdf.WithCreator("dompdf")}
	if a.title != "" {
		opts = append(opts, dompdf.WithTitle(a.title))
	}
	conv, err := newConverter(cfg, log, opts...)
	if err != nil {
		return err
	}
	defer conv.Close()

	start := time.Now()
	err = conv.Convert(ctx, root, dompdf.ConvertOptions{
		Filename:          a.output,
		ExcludeClassNames: dompdf.ParseExcludeList(cfg.Exclude),
		OverrideWidth:     cfg.Width,
		ProxyURL:          cfg.ProxyURL,
		IncludeScripts:    a.scripts,
	}, func() {
		log.Debug("conversion finished", "state", conv.State().String(), "elapsed", time.Since(start))
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", a.output)
	return nil
}

// newConverter builds a Converter for the configured engine.
func newConverter(cfg config.Config, log *slog.Logger, extra ...dompdf.Option) (*dompdf.Converter, error) {
	opts := append([]dompdf.Option{
		dompdf.WithLogger(log),
		dompdf.WithTimeout(cfg.Timeout),
	}, extra...)

	if cfg.Engine != config.EngineChrome {
		return dompdf.NewConverter(opts...)
	}
	if cfg.ChromePath != "" {
		opts = append(opts, dompdf.WithChromePath(cfg.ChromePath))
	}
	if cfg.NoSandbox {
		opts = append(opts, dompdf.WithNoSandbox())
	}
	if cfg.AutoDownload {
		opts = append(opts, dompdf.WithAutoDownload())
	}
	return dompdf.NewChromeConverter(opts...)
}

// runInfo implements the "info" command.
func runInfo(args []string) error {
	format := "text"
	var inputFile string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			i++
			if i >= len(args) {
				return fmt.Errorf("-f requires an argument")
			}
			format = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				return fmt.Errorf("unknown option: %s", args[i])
			}
			inputFile = args[i]
		}
	}
	if inputFile == "" {
		return fmt.Errorf("no input file specified")
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputFile, err)
	}
	info, err := pdfout.Inspect(data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputFile, err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("File:     %s\n", inputFile)
	fmt.Printf("Pages:    %d\n", info.Pages)
	fmt.Printf("Images:   %d\n", info.Images)
	for _, kv := range [][2]string{
		{"Title", info.Title},
		{"Author", info.Author},
		{"Creator", info.Creator},
		{"Producer", info.Producer},
	} {
		if kv[1] != "" {
			fmt.Printf("%-9s %s\n", kv[0]+":", kv[1])
		}
	}

	if len(info.PageSizes) > 0 {
		fmt.Println()
		fmt.Println("Page dimensions:")
		for i, s := range info.PageSizes {
			fmt.Printf("  Page %d: %.2f x %.2f pt\n", i+1, s.Width, s.Height)
		}
	}
	return nil
}

// runServe implements the "serve" command.
func runServe(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := cfg.Logger()

	conv, err := newConverter(cfg, log, dompdf.WithCreator("dompdf server"))
	if err != nil {
		return err
	}
	defer conv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.New(conv, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting dompdf", "addr", cfg.Addr, "engine", cfg.Engine)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
