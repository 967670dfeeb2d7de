// Package convert runs PDF to PPTX conversion jobs.
package convert

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/layout"
	"github.com/andresfredes/pdf2ppt/internal/observability"
	"github.com/andresfredes/pdf2ppt/internal/pptx"
)

// PageRasterizer opens source documents and renders their pages.
type PageRasterizer interface {
	Open(ctx context.Context, path string, showAnnotations bool) (domain.Document, error)
	Rasterize(doc domain.Document, pageIndex int, cfg domain.ConversionConfig) (domain.RasterizedPage, error)
}

// BuilderConfig holds the fixed settings shared by every job.
type BuilderConfig struct {
	Canvas           layout.Canvas
	Classifier       layout.Classifier
	TemplatePath     string
	BlankLayoutIndex int
}

// Builder turns one source document into a presentation, one slide per page.
type Builder struct {
	rasterizer  PageRasterizer
	canvas      layout.Canvas
	classifier  layout.Classifier
	template    []byte
	blankLayout int
	logger      *observability.Logger
}

// NewBuilder loads and checks the template. A missing or unusable template
// is reported here, before any job runs.
func NewBuilder(rasterizer PageRasterizer, cfg BuilderConfig, logger *observability.Logger) (*Builder, error) {
	if logger == nil {
		logger = observability.NewNop()
	}

	if _, err := layout.NewEngine(cfg.Canvas, cfg.Classifier); err != nil {
		return nil, domain.ConfigError("invalid canvas or thresholds", err)
	}

	template, err := LoadTemplate(cfg.TemplatePath, cfg.BlankLayoutIndex)
	if err != nil {
		return nil, err
	}

	return &Builder{
		rasterizer:  rasterizer,
		canvas:      cfg.Canvas,
		classifier:  cfg.Classifier,
		template:    template,
		blankLayout: cfg.BlankLayoutIndex,
		logger:      logger.WithOperation("build"),
	}, nil
}

// LoadTemplate reads the template at path and checks that it has a layout
// at blankLayoutIndex.
func LoadTemplate(path string, blankLayoutIndex int) ([]byte, error) {
	if path == "" {
		return nil, domain.TemplateMissingError("no template configured", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.TemplateMissingError(fmt.Sprintf("cannot read template %s", path), err)
	}

	pres, err := pptx.OpenBytes(data)
	if err != nil {
		return nil, domain.TemplateMissingError(fmt.Sprintf("template %s is not a valid presentation", path), err)
	}
	if _, err := pres.Layout(blankLayoutIndex); err != nil {
		return nil, domain.TemplateMissingError(fmt.Sprintf("template %s has no layout %d", path, blankLayoutIndex), err)
	}
	return data, nil
}

// Canvas returns the slide canvas.
func (b *Builder) Canvas() layout.Canvas {
	return b.canvas
}

// Build converts job.SourcePath and writes the deck next to it. It returns
// the output path and the number of slides written. Nothing is written when
// any page fails.
func (b *Builder) Build(ctx context.Context, job domain.ConversionJob, events chan<- domain.StreamEvent) (string, int, error) {
	startTime := time.Now()
	log := b.logger.WithJob(job.ID.String())
	cfg := job.Config

	if err := cfg.Validate(); err != nil {
		b.emitError(events, job, err)
		return "", 0, err
	}

	engine, err := b.engineFor(cfg)
	if err != nil {
		b.emitError(events, job, err)
		return "", 0, err
	}

	log.Info().Str("source", job.SourcePath).Float64("zoom", cfg.ZoomFactor).Msg("Opening source document")

	doc, err := b.rasterizer.Open(ctx, job.SourcePath, cfg.ShowAnnotations)
	if err != nil {
		b.emitError(events, job, err)
		return "", 0, err
	}
	defer doc.Close()

	total := doc.NumPages()
	if total <= 0 {
		err := domain.SourceUnreadableError("document has no pages", nil)
		b.emitError(events, job, err)
		return "", 0, err
	}

	b.emitEvent(events, domain.StreamEvent{
		Type:       domain.EventStart,
		JobID:      job.ID,
		TotalPages: total,
		Payload:    fmt.Sprintf("Starting conversion of %s", job.SourcePath),
		Timestamp:  time.Now(),
	})

	pres, err := pptx.OpenBytes(b.template)
	if err != nil {
		err = domain.TemplateMissingError("template is not a valid presentation", err)
		b.emitError(events, job, err)
		return "", 0, err
	}
	canvasW, canvasH := pptx.Cm(b.canvas.Width), pptx.Cm(b.canvas.Height)
	if err := pres.SetSlideSize(canvasW, canvasH); err != nil {
		err = domain.TemplateMissingError("cannot set slide size", err)
		b.emitError(events, job, err)
		return "", 0, err
	}
	blank, err := pres.Layout(b.blankLayout)
	if err != nil {
		err = domain.TemplateMissingError(fmt.Sprintf("template has no layout %d", b.blankLayout), err)
		b.emitError(events, job, err)
		return "", 0, err
	}

	for i := 0; i < total; i++ {
		b.emitEvent(events, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			JobID:      job.ID,
			PageNumber: i + 1,
			TotalPages: total,
			Payload:    fmt.Sprintf("Processing page %d", i+1),
			Timestamp:  time.Now(),
		})

		page, err := b.rasterizer.Rasterize(doc, i, cfg)
		if err != nil {
			log.Error().Err(err).Int("page", i).Msg("Failed to rasterize page")
			b.emitError(events, job, err)
			return "", 0, err
		}

		class, rect := engine.Place(page.AspectRatio)
		x, y, cx, cy := toEMU(rect, canvasW, canvasH)

		slide, err := pres.AddSlide(blank)
		if err != nil {
			err = domain.PageRenderError(i, "failed to add slide", err)
			b.emitError(events, job, err)
			return "", 0, err
		}
		if _, err := slide.AddPicture(page.ImageBytes, page.Format, x, y, cx, cy); err != nil {
			err = domain.PageRenderError(i, "failed to place image", err)
			b.emitError(events, job, err)
			return "", 0, err
		}

		log.Debug().
			Int("page", i).
			Int("width_px", page.PixelWidth).
			Int("height_px", page.PixelHeight).
			Str("class", class.String()).
			Str("rect", rect.String()).
			Msg("Placed page")

		b.emitEvent(events, domain.StreamEvent{
			Type:       domain.EventPageComplete,
			JobID:      job.ID,
			PageNumber: i + 1,
			TotalPages: total,
			Payload:    fmt.Sprintf("Completed page %d (%s)", i+1, class),
			Timestamp:  time.Now(),
		})
	}

	outputPath := job.OutputPath()
	if err := pres.Save(outputPath); err != nil {
		err = domain.OutputWriteError(fmt.Sprintf("cannot write %s", outputPath), err)
		b.emitError(events, job, err)
		return "", 0, err
	}

	duration := time.Since(startTime)
	b.emitEvent(events, domain.StreamEvent{
		Type:       domain.EventComplete,
		JobID:      job.ID,
		TotalPages: total,
		Payload:    fmt.Sprintf("Conversion complete: %d slides in %v", total, duration.Round(time.Millisecond)),
		Timestamp:  time.Now(),
	})

	log.Info().Str("output", outputPath).Int("slides", total).Dur("duration", duration).Msg("Conversion complete")

	return outputPath, total, nil
}

// engineFor picks the classifier for cfg. Without 16:9 detection only an
// exact canvas-ratio image fills the slide.
func (b *Builder) engineFor(cfg domain.ConversionConfig) (*layout.Engine, error) {
	classifier := b.classifier
	if !cfg.Use16by9Detection {
		classifier = layout.ExactClassifier(b.canvas.Ratio())
	}
	engine, err := layout.NewEngine(b.canvas, classifier)
	if err != nil {
		return nil, domain.ConfigError("invalid canvas or thresholds", err)
	}
	return engine, nil
}

// toEMU converts a rect in centimetres to EMU, keeping it on the canvas after
// rounding.
func toEMU(r layout.Rect, canvasW, canvasH pptx.Length) (x, y, cx, cy pptx.Length) {
	x, y = clamp(pptx.Cm(r.X), 0, canvasW-1), clamp(pptx.Cm(r.Y), 0, canvasH-1)
	cx, cy = pptx.Cm(r.Width), pptx.Cm(r.Height)
	cx = clamp(cx, 1, canvasW-x)
	cy = clamp(cy, 1, canvasH-y)
	return x, y, cx, cy
}

func clamp(v, lo, hi pptx.Length) pptx.Length {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// emitEvent safely emits an event to the channel
func (b *Builder) emitEvent(events chan<- domain.StreamEvent, event domain.StreamEvent) {
	if events != nil {
		select {
		case events <- event:
		default:
			b.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (b *Builder) emitError(events chan<- domain.StreamEvent, job domain.ConversionJob, err error) {
	event := domain.StreamEvent{
		Type:      domain.EventError,
		JobID:     job.ID,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	}
	if idx, ok := domain.FailedPage(err); ok {
		event.PageNumber = idx + 1
	}
	b.emitEvent(events, event)
}
