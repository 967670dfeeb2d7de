package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresfredes/pdf2ppt/internal/domain"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 28.0, cfg.Canvas.WidthCM)
	assert.Equal(t, 15.75, cfg.Canvas.HeightCM)
	assert.Equal(t, 1.75, cfg.Layout.LowThreshold)
	assert.Equal(t, 1.80, cfg.Layout.HighThreshold)
	assert.Equal(t, 6, cfg.Template.BlankLayoutIndex)
	assert.True(t, cfg.Conversion.Use16by9Detection)
	assert.True(t, cfg.Conversion.PageAsImage)
	assert.Equal(t, 4.0, cfg.Conversion.ZoomFactor)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdf2ppt.yaml")
	yml := `
template:
  path: /opt/templates/brand.pptx
conversion:
  use_16by9_detection: true
  page_as_image: true
  zoom_factor: 2.5
  show_annotations: true
  image_format: jpeg
  jpeg_quality: 70
history:
  enabled: false
observability:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("PDF2PPT_SHOW_ANNOTATIONS", "false")
	t.Setenv("PDF2PPT_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/templates/brand.pptx", cfg.Template.Path)
	assert.Equal(t, 2.5, cfg.Conversion.ZoomFactor)
	assert.Equal(t, domain.ImageFormatJPEG, cfg.Conversion.ImageFormat)
	assert.Equal(t, 70, cfg.Conversion.JPEGQuality)
	assert.False(t, cfg.Conversion.ShowAnnotations)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 9999, cfg.Server.Port)
	// untouched sections keep their defaults
	assert.Equal(t, 28.0, cfg.Canvas.WidthCM)
}

func TestLoad_RejectsCanvasOutsideThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("canvas:\n  width_cm: 25.4\n  height_cm: 19.05\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeConfig, domain.TypeOf(err))
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("PDF2PPT_ZOOM", "lots")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_ZeroZoom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Conversion.ZoomFactor = 0
	assert.Error(t, cfg.Validate())
}
