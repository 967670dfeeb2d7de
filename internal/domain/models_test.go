package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPathFor(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"/tmp/deck.pdf", "/tmp/deck.pptx"},
		{"/tmp/archive.v2.pdf", "/tmp/archive.v2.pptx"},
		{"relative/notes.PDF", "relative/notes.pptx"},
		{"/tmp/noext", "/tmp/noext.pptx"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputPathFor(tt.source))
		})
	}
}

func TestConversionConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConversionConfig().Validate())

	zero := DefaultConversionConfig()
	zero.ZoomFactor = 0
	assert.Equal(t, ErrorTypeValidation, TypeOf(zero.Validate()))

	text := DefaultConversionConfig()
	text.PageAsImage = false
	assert.Error(t, text.Validate())

	jpeg := DefaultConversionConfig()
	jpeg.ImageFormat = ImageFormatJPEG
	jpeg.JPEGQuality = 101
	assert.Error(t, jpeg.Validate())
	jpeg.JPEGQuality = 90
	assert.NoError(t, jpeg.Validate())

	gif := DefaultConversionConfig()
	gif.ImageFormat = "gif"
	assert.Error(t, gif.Validate())
}

func TestConversionConfig_DPI(t *testing.T) {
	cfg := DefaultConversionConfig()
	cfg.ZoomFactor = 2
	assert.Equal(t, 144.0, cfg.DPI())
}

func TestRatioOf(t *testing.T) {
	r, err := RatioOf(1920, 1080)
	require.NoError(t, err)
	assert.InDelta(t, 16.0/9.0, r, 1e-12)

	_, err = RatioOf(100, 0)
	assert.Error(t, err)
}

func TestPageRenderError_KeepsPageIndex(t *testing.T) {
	cause := errors.New("broken xref")
	err := fmt.Errorf("build: %w", PageRenderError(3, "failed to render page", cause))

	page, ok := FailedPage(err)
	require.True(t, ok)
	assert.Equal(t, 3, page)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &DomainError{Type: ErrorTypePageRender})
	assert.Contains(t, err.Error(), "page 3")

	_, ok = FailedPage(OutputWriteError("disk full", nil))
	assert.False(t, ok)
}

func TestOutcomes(t *testing.T) {
	job := NewJob("/tmp/in.pdf", DefaultConversionConfig())

	ok := Success(job.ID, job.OutputPath(), 4)
	assert.True(t, ok.Succeeded())
	assert.Equal(t, "/tmp/in.pptx", ok.OutputPath)

	bad := Failure(job.ID, SourceUnreadableError("document has no pages", nil))
	assert.False(t, bad.Succeeded())
	assert.Equal(t, "[source_unreadable] document has no pages", bad.ErrorDetail)
	assert.Equal(t, ErrorTypeSourceUnreadable, TypeOf(bad.Err))
}
