package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/observability"
)

// LargeFileSize is the size above which a source is logged as large.
const LargeFileSize = 100 * 1024 * 1024

// Validator checks a source path before it is handed to MuPDF.
type Validator struct {
	logger *observability.Logger
}

// NewValidator returns a Validator logging to logger.
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath reports a SourceUnreadable error unless path names a
// readable regular file with a .pdf extension.
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.SourceUnreadableError("no source path given", nil)
	}

	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".pdf") {
		return domain.SourceUnreadableError(fmt.Sprintf("%s: expected a .pdf file, got %q", path, ext), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.SourceUnreadableError(fmt.Sprintf("%s: cannot open source", path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	switch {
	case err != nil:
		return domain.SourceUnreadableError(fmt.Sprintf("%s: cannot stat source", path), err)
	case !info.Mode().IsRegular():
		return domain.SourceUnreadableError(fmt.Sprintf("%s: not a regular file", path), nil)
	case info.Size() > LargeFileSize:
		v.logger.Warn().Str("path", path).Int64("bytes", info.Size()).Msg("Large source document")
	}
	return nil
}
