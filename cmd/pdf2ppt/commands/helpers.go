package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresfredes/pdf2ppt/internal/config"
	"github.com/andresfredes/pdf2ppt/internal/convert"
	"github.com/andresfredes/pdf2ppt/internal/history"
	"github.com/andresfredes/pdf2ppt/internal/observability"
	"github.com/andresfredes/pdf2ppt/internal/pdf"
	"github.com/andresfredes/pdf2ppt/internal/pptx"
)

// newLogger builds the process logger. Interactive commands stay quiet unless
// --verbose is set so log lines do not break the progress display.
func newLogger(interactive bool) *observability.Logger {
	level := cfg.Observability.LogLevel
	if interactive {
		level = "warn"
	}
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "pdf2ppt",
	})
}

// newBuilder wires the rasterizer and presentation builder from config.
func newBuilder(logger *observability.Logger) (*convert.Builder, error) {
	if err := ensureDefaultTemplate(cfg, logger); err != nil {
		return nil, err
	}

	rasterizer := pdf.NewRasterizer(pdf.NewFitzOpener(logger), logger)
	return convert.NewBuilder(rasterizer, convert.BuilderConfig{
		Canvas:           cfg.LayoutCanvas(),
		Classifier:       cfg.Classifier(),
		TemplatePath:     cfg.Template.Path,
		BlankLayoutIndex: cfg.Template.BlankLayoutIndex,
	}, logger)
}

// ensureDefaultTemplate writes the built-in blank template on first use when
// the configured path is the default one. A template path set explicitly is
// never created.
func ensureDefaultTemplate(c *config.Config, logger *observability.Logger) error {
	if c.Template.Path != config.DefaultConfig().Template.Path {
		return nil
	}
	if _, err := os.Stat(c.Template.Path); err == nil || !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := writeTemplateFile(c.Template.Path, c); err != nil {
		return fmt.Errorf("create default template: %w", err)
	}
	logger.Info().Str("path", c.Template.Path).Msg("Created default template")
	return nil
}

// writeTemplateFile writes a blank template sized to the configured canvas.
func writeTemplateFile(path string, c *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".template-*.pptx")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := pptx.WriteTemplate(f, pptx.Cm(c.Canvas.WidthCM), pptx.Cm(c.Canvas.HeightCM)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// openHistory opens the job ledger, or returns nil when history is disabled.
func openHistory(ctx context.Context) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}
