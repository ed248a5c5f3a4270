package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dompdf "github.com/porticus-lab/go-dom-pdf"
	"github.com/porticus-lab/go-dom-pdf/internal/config"
	"github.com/porticus-lab/go-dom-pdf/pdfout"
)

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	conv, err := dompdf.NewConverter()
	require.NoError(t, err)
	t.Cleanup(func() { conv.Close() })
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return New(conv, nil, cfg)
}

func post(t *testing.T, s *Server, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestConvert_HTML(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := post(t, s, "/api/convert?filename=report.html", "text/html",
		`<body><div style="height: 3000px; background: #333"></div></body>`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "3", rec.Header().Get("X-Pdf-Pages"))

	info, err := pdfout.Inspect(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, info.Pages)
}

func TestConvert_Markdown(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := post(t, s, "/api/convert?format=markdown", "text/plain", "# Heading\n\nBody text.\n")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="document.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", rec.Header().Get("X-Pdf-Pages"))
}

func TestConvert_Root(t *testing.T) {
	s := newTestServer(t, config.Config{})
	page := `<body><nav id="nav">menu</nav><main id="main"><p>content</p></main></body>`

	rec := post(t, s, "/api/convert?root=main", "text/html", page)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, s, "/api/convert?root=missing", "text/html", page)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "root element not found")
}

func TestConvert_BadRequests(t *testing.T) {
	s := newTestServer(t, config.Config{})

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"empty body", "/api/convert", "   "},
		{"bad width", "/api/convert?width=wide", "<p>x</p>"},
		{"zero width", "/api/convert?width=0", "<p>x</p>"},
		{"bad format", "/api/convert?format=docx", "<p>x</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.target, "text/html", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}
}

func TestConvert_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, config.Config{MaxBodyBytes: 64})

	rec := post(t, s, "/api/convert", "text/html", "<p>"+strings.Repeat("x", 200)+"</p>")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConvert_OversizedContent(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := post(t, s, "/api/convert", "text/html", `<div style="height: 5000000px">x</div>`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "raster too large")
}

func TestConvert_ClosedConverter(t *testing.T) {
	conv, err := dompdf.NewConverter()
	require.NoError(t, err)
	conv.Close()
	s := New(conv, nil, config.Config{MaxBodyBytes: 1 << 20})

	rec := post(t, s, "/api/convert", "text/html", "<p>x</p>")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConvert_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/convert", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                "document.pdf",
		"report":          "report.pdf",
		"report.html":     "report.pdf",
		"Report.PDF":      "Report.PDF",
		"../../etc/x.pdf": "x.pdf",
		`c:\tmp\a.md`:     "a.pdf",
		"/":               "document.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
