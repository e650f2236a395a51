package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Output formats
const (
	FormatPNG    = "png"
	FormatJPEG   = "jpg"
	FormatPDF    = "pdf"
	FormatSVG    = "svg"
	FormatESCPOS = "escpos"
	FormatText   = "txt"
)

// Backends
const (
	BackendCanvas = "canvas"
	BackendBitmap = "bitmap"
)

// RenderSettings describes the target display and the output encoding of a receipt.
type RenderSettings struct {
	// Width is the text area width in pixels. When zero, Screen is used.
	Width int `json:"width" mapstructure:"width" validate:"gte=0"`
	// Screen is a "WxH" pixel size; the shorter side becomes the width.
	Screen        string  `json:"screen" mapstructure:"screen"`
	Density       float64 `json:"density" mapstructure:"density" validate:"gt=0"`
	ScaledDensity float64 `json:"scaled_density" mapstructure:"scaled_density" validate:"gte=0"`
	Padding       string  `json:"padding" mapstructure:"padding"`
	Font          string  `json:"font" mapstructure:"font" validate:"required"`
	Background    string  `json:"background" mapstructure:"background" validate:"omitempty,hexcolor"`
	Format        string  `json:"format" mapstructure:"format" validate:"required,oneof=png jpg pdf svg escpos txt"`
	Backend       string  `json:"backend" mapstructure:"backend" validate:"required,oneof=canvas bitmap"`
	// Fit is an optional "WxH" center-crop applied to raster output.
	Fit         string         `json:"fit" mapstructure:"fit"`
	Concurrency int            `json:"concurrency" mapstructure:"concurrency" validate:"gte=0"`
	Logger      LoggerSettings `json:"logger" mapstructure:"logger"`
}

// DefaultRenderSettings matches a 58mm thermal printer at 203dpi.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		Width:       384,
		Density:     1,
		Padding:     "5dp",
		Font:        "embed:goregular",
		Background:  "#FFFFFF",
		Format:      FormatPNG,
		Backend:     BackendCanvas,
		Concurrency: 4,
		Logger:      DefaultLoggerSettings(),
	}
}

// LoadRenderSettings reads a JSON settings file on top of the defaults.
func LoadRenderSettings(path string) (RenderSettings, error) {
	settings := DefaultRenderSettings()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to decode settings %s: %w", path, err)
	}
	return settings, nil
}

// Validate checks that all fields in RenderSettings are valid
func (s *RenderSettings) Validate() error {
	validate := validator.New()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed for RenderSettings: %w", err)
	}
	if s.Width == 0 && s.Screen == "" {
		return fmt.Errorf("either width or screen must be set")
	}
	if s.Screen != "" {
		if _, _, err := ParseSize(s.Screen); err != nil {
			return fmt.Errorf("invalid screen: %w", err)
		}
	}
	if s.Fit != "" {
		if _, _, err := ParseSize(s.Fit); err != nil {
			return fmt.Errorf("invalid fit: %w", err)
		}
		if !s.IsRaster() {
			return fmt.Errorf("fit requires a raster format (png, jpg, escpos), got %s", s.Format)
		}
	}
	if s.Backend == BackendBitmap && (s.Format == FormatPDF || s.Format == FormatSVG) {
		return fmt.Errorf("format %s requires the canvas backend", s.Format)
	}
	return s.Logger.Validate()
}

// IsRaster reports whether the output format is a bitmap that can be cropped.
func (s *RenderSettings) IsRaster() bool {
	switch s.Format {
	case FormatPNG, FormatJPEG, FormatESCPOS:
		return true
	}
	return false
}

// DisplayWidth returns the text area width: Width when set, otherwise the
// shorter side of Screen so portrait and landscape render alike.
func (s *RenderSettings) DisplayWidth() int {
	if s.Width > 0 {
		return s.Width
	}
	w, h, err := ParseSize(s.Screen)
	if err != nil {
		return 0
	}
	return min(w, h)
}

// ParseSize parses "WxH" into two positive integers.
func ParseSize(value string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size %q must look like WxH", value)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", value, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", value, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", value)
	}
	return w, h, nil
}
