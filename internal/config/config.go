// Package config loads the settings shared by the dompdf command and its
// HTTP service from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Engine names.
const (
	EngineLayout = "layout"
	EngineChrome = "chrome"
)

type Config struct {
	Engine string

	// Chrome engine
	ChromePath   string
	NoSandbox    bool
	AutoDownload bool

	// Conversion defaults
	Timeout  time.Duration
	Width    float64
	ProxyURL string
	Exclude  string

	// HTTP service
	Addr         string
	MaxBodyBytes int64

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() Config {
	cfg := Config{
		Engine: strings.ToLower(envOr("DOMPDF_ENGINE", EngineLayout)),

		ChromePath:   os.Getenv("DOMPDF_CHROME_PATH"),
		NoSandbox:    envBool("DOMPDF_NO_SANDBOX", false),
		AutoDownload: envBool("DOMPDF_AUTO_DOWNLOAD", false),

		Timeout:  envDuration("DOMPDF_TIMEOUT", 0),
		Width:    envFloat("DOMPDF_WIDTH", 0),
		ProxyURL: os.Getenv("DOMPDF_PROXY_URL"),
		Exclude:  os.Getenv("DOMPDF_EXCLUDE"),

		Addr:         envOr("DOMPDF_ADDR", ":8080"),
		MaxBodyBytes: envInt64("DOMPDF_MAX_BODY_BYTES", 10<<20), // 10MB

		LogLevel:  strings.ToLower(envOr("DOMPDF_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envOr("DOMPDF_LOG_FORMAT", "text")),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Engine {
	case EngineLayout, EngineChrome:
	default:
		return fmt.Errorf("DOMPDF_ENGINE must be %q or %q, got %q", EngineLayout, EngineChrome, c.Engine)
	}
	if c.Width < 0 {
		return fmt.Errorf("DOMPDF_WIDTH must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("DOMPDF_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("DOMPDF_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Logger builds a logger writing to stderr in the configured format.
func (c Config) Logger() *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
