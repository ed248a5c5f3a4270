// Package server exposes the converter over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	dompdf "github.com/porticus-lab/go-dom-pdf"
	"github.com/porticus-lab/go-dom-pdf/internal/config"
	"github.com/porticus-lab/go-dom-pdf/internal/source"
	"github.com/porticus-lab/go-dom-pdf/layout"
)

// Server is the HTTP API server for dompdf.
type Server struct {
	router chi.Router
	conv   *dompdf.Converter
	log    *slog.Logger
	cfg    config.Config
}

// New creates and configures the HTTP server.
func New(conv *dompdf.Converter, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		conv: conv,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Post("/api/convert", s.handleConvert)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleConvert renders the HTML or Markdown request body into a PDF.
//
// Query parameters: filename, format (html|markdown), root, exclude,
// width, proxy.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		jsonError(w, "body is empty", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	filename := sanitizeFilename(q.Get("filename"))
	format := source.Detect(q.Get("filename"), r.Header.Get("Content-Type"))
	switch strings.ToLower(q.Get("format")) {
	case "":
	case "markdown", "md":
		format = source.Markdown
	case "html":
		format = source.HTML
	default:
		jsonError(w, "format must be html or markdown", http.StatusBadRequest)
		return
	}

	opts := dompdf.ConvertOptions{
		ExcludeClassNames: dompdf.ParseExcludeList(s.cfg.Exclude),
		OverrideWidth:     s.cfg.Width,
		ProxyURL:          s.cfg.ProxyURL,
	}
	if v := q.Get("exclude"); v != "" {
		opts.ExcludeClassNames = dompdf.ParseExcludeList(v)
	}
	if v := q.Get("width"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			jsonError(w, "width must be a positive number", http.StatusBadRequest)
			return
		}
		opts.OverrideWidth = n
	}
	if v := q.Get("proxy"); v != "" {
		opts.ProxyURL = v
	}

	doc, err := source.Parse(body, format)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	root, err := source.Root(doc, q.Get("root"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.conv.Render(r.Context(), root, opts)
	if err != nil {
		s.log.Error("conversion failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(res.Len()))
	w.Header().Set("X-Pdf-Pages", strconv.Itoa(res.Pages()))
	if _, err := res.WriteTo(w); err != nil {
		s.log.Warn("writing response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dompdf.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, dompdf.ErrStaging), errors.Is(err, layout.ErrRasterTooLarge):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = strings.TrimSuffix(name, path.Ext(name)) + ".pdf"
	}
	return name
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
