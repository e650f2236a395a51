package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRenderSettingsAreValid(t *testing.T) {
	s := DefaultRenderSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 384, s.DisplayWidth())
}

func TestRenderSettings_DisplayWidthFromScreen(t *testing.T) {
	s := DefaultRenderSettings()
	s.Width = 0
	s.Screen = "1920x1080"
	require.NoError(t, s.Validate())
	assert.Equal(t, 1080, s.DisplayWidth())
}

func TestRenderSettings_ValidateRejects(t *testing.T) {
	cases := map[string]func(*RenderSettings){
		"no width":        func(s *RenderSettings) { s.Width = 0; s.Screen = "" },
		"bad format":      func(s *RenderSettings) { s.Format = "bmp" },
		"bad backend":     func(s *RenderSettings) { s.Backend = "opengl" },
		"bad background":  func(s *RenderSettings) { s.Background = "white" },
		"zero density":    func(s *RenderSettings) { s.Density = 0 },
		"bad fit":         func(s *RenderSettings) { s.Fit = "100" },
		"bitmap pdf":      func(s *RenderSettings) { s.Backend = BackendBitmap; s.Format = FormatPDF },
		"fit pdf":         func(s *RenderSettings) { s.Format = FormatPDF; s.Fit = "50x50" },
		"fit svg":         func(s *RenderSettings) { s.Format = FormatSVG; s.Fit = "50x50" },
		"fit txt":         func(s *RenderSettings) { s.Format = FormatText; s.Fit = "50x50" },
		"bad logger type": func(s *RenderSettings) { s.Logger.LogType = "syslog" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := DefaultRenderSettings()
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestRenderSettings_FitOnRasterFormats(t *testing.T) {
	for _, format := range []string{FormatPNG, FormatJPEG, FormatESCPOS} {
		s := DefaultRenderSettings()
		s.Format = format
		s.Fit = "50x50"
		assert.NoError(t, s.Validate(), format)
		assert.True(t, s.IsRaster(), format)
	}
}

func TestLoadRenderSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"width": 576, "format": "escpos", "padding": "0dp"}`), 0o644))

	s, err := LoadRenderSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 576, s.Width)
	assert.Equal(t, FormatESCPOS, s.Format)
	assert.Equal(t, "0dp", s.Padding)
	assert.Equal(t, BackendCanvas, s.Backend, "unset fields keep defaults")

	_, err = LoadRenderSettings(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize("720X1280")
	require.NoError(t, err)
	assert.Equal(t, 720, w)
	assert.Equal(t, 1280, h)

	for _, bad := range []string{"", "720", "ax1", "0x10", "10x-1"} {
		_, _, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}
