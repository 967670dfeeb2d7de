package domain

import (
	"context"
	"image"
)

// Document is an open source document owned by a single job.
type Document interface {
	// NumPages returns the number of pages in the document
	NumPages() int

	// RenderPage rasterizes the zero-based page at the given DPI
	RenderPage(pageIndex int, dpi float64) (image.Image, error)

	// Close releases the underlying renderer handle
	Close() error
}

// DocumentOpener opens source documents for rendering
type DocumentOpener interface {
	// Open loads the document at path. When showAnnotations is false the
	// returned document renders pages without their annotations.
	Open(ctx context.Context, path string, showAnnotations bool) (Document, error)
}
