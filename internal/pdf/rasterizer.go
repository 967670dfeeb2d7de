// Package pdf opens source documents and turns their pages into encoded images.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/observability"
)

// Rasterizer renders document pages to PNG or JPEG.
type Rasterizer struct {
	opener    domain.DocumentOpener
	validator *Validator
	logger    *observability.Logger
}

// NewRasterizer creates a rasterizer on top of opener.
func NewRasterizer(opener domain.DocumentOpener, logger *observability.Logger) *Rasterizer {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Rasterizer{
		opener:    opener,
		validator: NewValidator(logger),
		logger:    logger,
	}
}

// Open validates path and opens it. Documents without pages are rejected.
// The caller owns the returned document and must close it.
func (r *Rasterizer) Open(ctx context.Context, path string, showAnnotations bool) (domain.Document, error) {
	if err := r.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}

	doc, err := r.opener.Open(ctx, path, showAnnotations)
	if err != nil {
		if domain.TypeOf(err) != "" {
			return nil, err
		}
		return nil, domain.SourceUnreadableError("failed to open PDF", err)
	}

	if doc.NumPages() <= 0 {
		_ = doc.Close()
		return nil, domain.SourceUnreadableError("document has no pages", nil)
	}
	return doc, nil
}

// Rasterize renders one zero-based page at the configured zoom and encodes it.
func (r *Rasterizer) Rasterize(doc domain.Document, pageIndex int, cfg domain.ConversionConfig) (domain.RasterizedPage, error) {
	img, err := doc.RenderPage(pageIndex, cfg.DPI())
	if err != nil {
		return domain.RasterizedPage{}, domain.PageRenderError(pageIndex, "failed to render page", err)
	}

	bounds := img.Bounds()
	ratio, err := domain.RatioOf(bounds.Dx(), bounds.Dy())
	if err != nil {
		return domain.RasterizedPage{}, domain.PageRenderError(pageIndex, "rendered an empty image", err)
	}

	data, err := encode(img, cfg)
	if err != nil {
		return domain.RasterizedPage{}, domain.PageRenderError(pageIndex, fmt.Sprintf("failed to encode page as %s", cfg.ImageFormat), err)
	}

	return domain.RasterizedPage{
		PageIndex:   pageIndex,
		PixelWidth:  bounds.Dx(),
		PixelHeight: bounds.Dy(),
		AspectRatio: ratio,
		Format:      cfg.ImageFormat,
		ImageBytes:  data,
	}, nil
}

func encode(img image.Image, cfg domain.ConversionConfig) ([]byte, error) {
	var buf bytes.Buffer
	switch cfg.ImageFormat {
	case domain.ImageFormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cfg.JPEGQuality}); err != nil {
			return nil, err
		}
	case domain.ImageFormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", cfg.ImageFormat)
	}
	return buf.Bytes(), nil
}
