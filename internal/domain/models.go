package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresentationExt is the extension of generated decks.
const PresentationExt = ".pptx"

// Supported encodings for rasterized pages.
const (
	ImageFormatPNG  = "png"
	ImageFormatJPEG = "jpeg"
)

// ConversionConfig holds the per-job rendering options. It is passed by value
// and never modified once a job has started.
type ConversionConfig struct {
	Use16by9Detection bool    `yaml:"use_16by9_detection" json:"use16by9Detection"`
	PageAsImage       bool    `yaml:"page_as_image" json:"pageAsImage"`
	ZoomFactor        float64 `yaml:"zoom_factor" json:"zoomFactor"`
	ShowAnnotations   bool    `yaml:"show_annotations" json:"showAnnotations"`
	ImageFormat       string  `yaml:"image_format" json:"imageFormat"`
	JPEGQuality       int     `yaml:"jpeg_quality" json:"jpegQuality"`
}

// DefaultConversionConfig returns the options used when the caller sets nothing.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		Use16by9Detection: true,
		PageAsImage:       true,
		ZoomFactor:        4.0,
		ShowAnnotations:   true,
		ImageFormat:       ImageFormatPNG,
		JPEGQuality:       85,
	}
}

// Validate checks the options before a job is started.
func (c ConversionConfig) Validate() error {
	if !(c.ZoomFactor > 0) {
		return ValidationError(fmt.Sprintf("zoom factor must be positive, got %v", c.ZoomFactor), nil)
	}
	if !c.PageAsImage {
		return ValidationError("only page-as-image conversion is supported", nil)
	}
	switch c.ImageFormat {
	case ImageFormatPNG:
	case ImageFormatJPEG:
		if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
			return ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", c.JPEGQuality), nil)
		}
	default:
		return ValidationError(fmt.Sprintf("unsupported image format %q", c.ImageFormat), nil)
	}
	return nil
}

// DPI is the rendering resolution for the configured zoom; zoom 1 is 72 DPI.
func (c ConversionConfig) DPI() float64 {
	return 72.0 * c.ZoomFactor
}

// RasterizedPage is a single rendered and encoded source page.
type RasterizedPage struct {
	PageIndex   int
	PixelWidth  int
	PixelHeight int
	AspectRatio float64
	Format      string // ImageFormatPNG or ImageFormatJPEG
	ImageBytes  []byte
}

// RatioOf returns width/height, rejecting empty images.
func RatioOf(width, height int) (float64, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	return float64(width) / float64(height), nil
}

// ConversionJob is one source-to-deck request.
type ConversionJob struct {
	ID         uuid.UUID
	SourcePath string
	Config     ConversionConfig
	CreatedAt  time.Time
}

// NewJob creates a job with a fresh id.
func NewJob(sourcePath string, cfg ConversionConfig) ConversionJob {
	return ConversionJob{
		ID:         uuid.New(),
		SourcePath: sourcePath,
		Config:     cfg,
		CreatedAt:  time.Now(),
	}
}

// OutputPath is where the job's deck is written.
func (j ConversionJob) OutputPath() string {
	return OutputPathFor(j.SourcePath)
}

// OutputPathFor strips the last extension of source and appends PresentationExt.
func OutputPathFor(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + PresentationExt
}

// JobState is the lifecycle state of a conversion worker.
type JobState string

const (
	StateIdle      JobState = "idle"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// OutcomeKind tags a ConversionOutcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// ConversionOutcome is the terminal result of a job.
type ConversionOutcome struct {
	JobID       uuid.UUID
	Kind        OutcomeKind
	OutputPath  string // set on success
	Pages       int    // slides written, set on success
	ErrorDetail string // set on failure
	Err         error  // set on failure
}

// Success builds a successful outcome.
func Success(jobID uuid.UUID, outputPath string, pages int) ConversionOutcome {
	return ConversionOutcome{
		JobID:      jobID,
		Kind:       OutcomeSuccess,
		OutputPath: outputPath,
		Pages:      pages,
	}
}

// Failure builds a failed outcome from err.
func Failure(jobID uuid.UUID, err error) ConversionOutcome {
	return ConversionOutcome{
		JobID:       jobID,
		Kind:        OutcomeFailure,
		ErrorDetail: err.Error(),
		Err:         err,
	}
}

// Succeeded reports whether the outcome is a success.
func (o ConversionOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	JobID      uuid.UUID   `json:"job_id"`
	PageNumber int         `json:"page_number,omitempty"` // 1-based
	TotalPages int         `json:"total_pages,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
