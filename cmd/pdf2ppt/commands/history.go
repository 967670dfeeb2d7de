package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andresfredes/pdf2ppt/cmd/pdf2ppt/ui"
	"github.com/andresfredes/pdf2ppt/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [job-id]",
	Short: "Show past conversions",
	Long:  "Without arguments, lists recent conversions. With a job id, shows that conversion in detail.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of conversions to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		ui.Warning("History is disabled (history.enabled = false)")
		return nil
	}
	defer store.Close()

	if len(args) == 1 {
		return showJob(ctx, store, args[0])
	}

	records, err := store.List(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		ui.Info("No conversions recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID.String()[:8],
			string(rec.State),
			fmt.Sprintf("%d", rec.Pages),
			ui.FormatTime(&rec.CreatedAt),
			ui.Truncate(rec.SourcePath, 60),
		})
	}
	ui.Section("Conversions")
	ui.Table([]string{"ID", "State", "Slides", "Created", "Source"}, rows)
	return nil
}

func showJob(ctx context.Context, store *history.Store, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", arg, err)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}

	ui.Section("Conversion " + rec.ID.String())
	ui.KeyValue("State", string(rec.State))
	ui.KeyValue("Source", rec.SourcePath)
	if rec.OutputPath != "" {
		ui.KeyValue("Output", rec.OutputPath)
	}
	ui.KeyValue("Slides", fmt.Sprintf("%d", rec.Pages))
	ui.KeyValue("Created", ui.FormatTime(&rec.CreatedAt))
	ui.KeyValue("Started", ui.FormatTime(rec.StartedAt))
	ui.KeyValue("Finished", ui.FormatTime(rec.FinishedAt))
	if rec.StartedAt != nil && rec.FinishedAt != nil {
		ui.KeyValue("Duration", ui.FormatDuration(rec.FinishedAt.Sub(*rec.StartedAt)))
	}
	ui.KeyValue("Zoom", fmt.Sprintf("%.2f", rec.Config.ZoomFactor))
	ui.KeyValue("Annotations", fmt.Sprintf("%t", rec.Config.ShowAnnotations))
	ui.KeyValue("16:9 detection", fmt.Sprintf("%t", rec.Config.Use16by9Detection))
	if rec.ErrorDetail != "" {
		ui.Newline()
		ui.Error("%s", rec.ErrorDetail)
	}
	return nil
}
