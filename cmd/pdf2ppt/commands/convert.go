package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/andresfredes/pdf2ppt/cmd/pdf2ppt/ui"
	"github.com/andresfredes/pdf2ppt/internal/convert"
	"github.com/andresfredes/pdf2ppt/internal/domain"
)

var (
	convertZoom            float64
	convertHideAnnotations bool
	convertExact           bool
	convertFormat          string
	convertQuality         int
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.pdf>",
	Short: "Convert a PDF into a PowerPoint deck",
	Long: `Convert renders each page of the PDF and writes <file>.pptx next to it,
one slide per page in source order. An existing deck of that name is replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Float64VarP(&convertZoom, "zoom", "z", 0, "render zoom, 1.0 = 72 DPI (default from config)")
	convertCmd.Flags().BoolVar(&convertHideAnnotations, "hide-annotations", false, "do not render PDF annotations")
	convertCmd.Flags().BoolVar(&convertExact, "exact", false, "disable 16:9 tolerance, only exact canvas-ratio pages fill the slide")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "", "slide image format: png or jpeg (default from config)")
	convertCmd.Flags().IntVarP(&convertQuality, "quality", "q", 0, "JPEG quality 1-100 (default from config)")
	rootCmd.AddCommand(convertCmd)
}

// conversionConfig applies the flags that were set on top of the config defaults.
func conversionConfig(cmd *cobra.Command) domain.ConversionConfig {
	conv := cfg.Conversion
	flags := cmd.Flags()
	if flags.Changed("zoom") {
		conv.ZoomFactor = convertZoom
	}
	if flags.Changed("hide-annotations") {
		conv.ShowAnnotations = !convertHideAnnotations
	}
	if flags.Changed("exact") {
		conv.Use16by9Detection = !convertExact
	}
	if flags.Changed("format") {
		conv.ImageFormat = convertFormat
	}
	if flags.Changed("quality") {
		conv.JPEGQuality = convertQuality
	}
	return conv
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	conv := conversionConfig(cmd)
	if err := conv.Validate(); err != nil {
		return err
	}

	logger := newLogger(true)

	builder, err := newBuilder(logger)
	if err != nil {
		return err
	}

	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	job := domain.NewJob(source, conv)

	ui.Section("PDF to PowerPoint")
	ui.Info("Source: %s", job.SourcePath)
	ui.Info("Output: %s", job.OutputPath())
	ui.Debug("Job: %s", job.ID)
	ui.Debug("Zoom: %.2f, annotations: %t, 16:9 detection: %t, format: %s",
		conv.ZoomFactor, conv.ShowAnnotations, conv.Use16by9Detection, conv.ImageFormat)
	ui.Newline()

	events := make(chan domain.StreamEvent, 64)
	opts := []convert.Option{convert.WithEvents(events), convert.WithLogger(logger)}
	if store != nil {
		opts = append(opts, convert.WithRecorder(store))
	}
	worker := convert.NewWorker(builder, job, opts...)

	started := time.Now()
	outcomes, err := worker.Start(ctx)
	if err != nil {
		return err
	}

	outcome := watchProgress(events, outcomes)
	if !outcome.Succeeded() {
		ui.Error("Conversion failed: %s", outcome.ErrorDetail)
		return fmt.Errorf("conversion of %s failed", job.SourcePath)
	}

	ui.Newline()
	ui.Section("Conversion Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Output File", outcome.OutputPath},
		{"Slides", fmt.Sprintf("%d", outcome.Pages)},
		{"Duration", ui.FormatDuration(time.Since(started))},
		{"Job ID", job.ID.String()},
	})
	ui.Newline()
	ui.Success("Presentation saved to: %s", outcome.OutputPath)
	return nil
}

// watchProgress renders events until the outcome arrives. A spinner covers
// opening the document, then a bar tracks pages.
func watchProgress(events <-chan domain.StreamEvent, outcomes <-chan domain.ConversionOutcome) domain.ConversionOutcome {
	spinner := ui.NewSpinner("Opening document...")
	spinner.Start()
	spinning := true

	var bar *ui.ProgressBar
	stop := func() {
		if spinning {
			spinner.Stop()
			spinning = false
		}
	}

	handle := func(ev domain.StreamEvent) {
		switch ev.Type {
		case domain.EventStart:
			stop()
			bar = ui.NewProgressBar(int64(ev.TotalPages), "Converting")
		case domain.EventPageProcessing:
			if bar != nil {
				bar.Describe(fmt.Sprintf("Page %d/%d", ev.PageNumber, ev.TotalPages))
			}
		case domain.EventPageComplete:
			if bar != nil {
				bar.Set(int64(ev.PageNumber))
			}
		case domain.EventComplete:
			if bar != nil {
				bar.Finish()
			}
		case domain.EventError:
			stop()
		}
	}

	for {
		select {
		case ev := <-events:
			handle(ev)
		case outcome := <-outcomes:
			// the builder has returned, so every event it sent is buffered
			for drained := false; !drained; {
				select {
				case ev := <-events:
					handle(ev)
				default:
					drained = true
				}
			}
			stop()
			return outcome
		}
	}
}
