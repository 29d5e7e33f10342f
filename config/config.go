// Package config loads the settings shared by the CLI and the HTTP service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/schema"
	"github.com/wudi/pdfoverlay/submission"
)

type Config struct {
	// TemplatePath is the blank checklist PDF drawn on.
	TemplatePath string `yaml:"template_path"`
	// LayoutPath and SchemaPath override the embedded tables when set.
	LayoutPath string `yaml:"layout_path"`
	SchemaPath string `yaml:"schema_path"`

	// SignaturePolicy is "skip" or "fail".
	SignaturePolicy    string `yaml:"signature_policy"`
	MaxSignaturePixels int    `yaml:"max_signature_pixels"`
	// MaxSignatureDecodePixels rejects signature PNGs by declared size.
	MaxSignatureDecodePixels int `yaml:"max_signature_decode_pixels"`

	// StripMarkup removes HTML tags from text values before drawing.
	StripMarkup bool `yaml:"strip_markup"`

	ListenAddr      string        `yaml:"listen_addr"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		TemplatePath:             "checklist.pdf",
		SignaturePolicy:          "skip",
		MaxSignaturePixels:       1 << 20,
		MaxSignatureDecodePixels: submission.DefaultMaxDecodePixels,
		ListenAddr:               ":8080",
		MaxConnections:           64,
		MaxBodyBytes:             8 << 20,
		ShutdownTimeout:          10 * time.Second,
		LogLevel:                 "info",
	}
}

// Parse reads YAML over the defaults. Unknown keys are rejected so typos do
// not silently fall back to a default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path, or returns the defaults when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if _, err := recovery.ParsePolicy(c.SignaturePolicy); err != nil {
		return fmt.Errorf("config: signature_policy: %w", err)
	}
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.MaxSignaturePixels < 0 {
		return errors.New("config: max_signature_pixels must not be negative")
	}
	if c.MaxSignatureDecodePixels < 0 {
		return errors.New("config: max_signature_decode_pixels must not be negative")
	}
	if c.MaxConnections < 0 {
		return errors.New("config: max_connections must not be negative")
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("config: max_body_bytes must not be negative")
	}
	return nil
}

func (c Config) Level() slog.Level {
	lvl, err := observability.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c Config) Template() ([]byte, error) {
	data, err := os.ReadFile(c.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return data, nil
}

func (c Config) Layout() (*coords.Registry, error) {
	if c.LayoutPath == "" {
		return coords.Default(), nil
	}
	data, err := os.ReadFile(c.LayoutPath)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return coords.Parse(data)
}

func (c Config) Schema() (*schema.Schema, error) {
	if c.SchemaPath == "" {
		return schema.Default(), nil
	}
	data, err := os.ReadFile(c.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return schema.Parse(data)
}

// Renderer builds an overlay.Renderer from the configured tables and policy.
// Pass timings are logged through log at debug level.
func (c Config) Renderer(log observability.Logger) (*overlay.Renderer, error) {
	policy, err := recovery.ParsePolicy(c.SignaturePolicy)
	if err != nil {
		return nil, err
	}
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}
	s, err := c.Schema()
	if err != nil {
		return nil, err
	}
	opts := []overlay.Option{
		overlay.WithLogger(log),
		overlay.WithTracer(observability.NewLogTracer(log)),
		overlay.WithLayout(layout),
		overlay.WithSchema(s),
		overlay.WithSignaturePolicy(policy),
		overlay.WithMaxSignaturePixels(c.MaxSignaturePixels),
		overlay.WithMaxDecodePixels(c.MaxSignatureDecodePixels),
	}
	if c.StripMarkup {
		opts = append(opts, overlay.WithSanitizer(overlay.StrictSanitizer()))
	}
	return overlay.New(opts...), nil
}
