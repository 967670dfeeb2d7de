package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/observability"
)

var disablePdfcpuConfig sync.Once

// FitzOpener opens documents with MuPDF. Annotations are stripped with
// pdfcpu before rendering when they must be hidden.
type FitzOpener struct {
	logger *observability.Logger
}

// NewFitzOpener creates a MuPDF backed DocumentOpener.
func NewFitzOpener(logger *observability.Logger) *FitzOpener {
	if logger == nil {
		logger = observability.NewNop()
	}
	// keep pdfcpu from writing its config directory under $HOME
	disablePdfcpuConfig.Do(api.DisableConfigDir)
	return &FitzOpener{logger: logger}
}

// Open implements domain.DocumentOpener.
func (o *FitzOpener) Open(ctx context.Context, path string, showAnnotations bool) (domain.Document, error) {
	log := o.logger.WithContext(ctx)

	if showAnnotations {
		doc, err := fitz.New(path)
		if err != nil {
			return nil, domain.SourceUnreadableError("failed to open PDF", err)
		}
		return &fitzDocument{doc: doc}, nil
	}

	stripped, removed, err := stripAnnotations(path)
	if err != nil {
		return nil, domain.SourceUnreadableError("failed to remove annotations", err)
	}
	if removed == 0 {
		doc, err := fitz.New(path)
		if err != nil {
			return nil, domain.SourceUnreadableError("failed to open PDF", err)
		}
		return &fitzDocument{doc: doc}, nil
	}

	log.Debug().Str("path", path).Int("pages_with_annotations", removed).Msg("Annotations hidden")

	doc, err := fitz.NewFromMemory(stripped)
	if err != nil {
		return nil, domain.SourceUnreadableError("failed to open PDF", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// stripAnnotations returns a copy of the PDF at path without annotations and
// the number of pages that had any. The copy is nil when there was nothing
// to remove.
func stripAnnotations(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	annots, err := api.Annotations(f, nil, conf)
	if err != nil {
		return nil, 0, fmt.Errorf("list annotations: %w", err)
	}
	if len(annots) == 0 {
		return nil, 0, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	if err := api.RemoveAnnotations(f, &buf, nil, nil, nil, conf); err != nil {
		return nil, 0, fmt.Errorf("remove annotations: %w", err)
	}
	return buf.Bytes(), len(annots), nil
}

// fitzDocument adapts *fitz.Document to domain.Document.
type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(pageIndex int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(pageIndex, dpi)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
