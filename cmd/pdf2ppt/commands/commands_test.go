package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresfredes/pdf2ppt/internal/config"
	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/history"
	"github.com/andresfredes/pdf2ppt/internal/observability"
	"github.com/andresfredes/pdf2ppt/internal/pptx"
)

// isolate points every default path into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PDF2PPT_DATA_DIR", dir)
	t.Setenv("PDF2PPT_CONFIG", "")
	t.Setenv("PDF2PPT_TEMPLATE", "")
	t.Setenv("PDF2PPT_HISTORY_PATH", "")
	cfg = config.DefaultConfig()
	resetConvertFlags()
	t.Cleanup(resetConvertFlags)
	return dir
}

// resetConvertFlags undoes flag parsing, which is shared package state.
func resetConvertFlags() {
	convertCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func writeFixture(t *testing.T, dir string, pages int) string {
	t.Helper()
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: 400, Ht: 225},
	})
	doc.SetFont("Arial", "", 18)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Cell(200, 30, fmt.Sprintf("Slide %d", i+1))
	}
	path := filepath.Join(dir, "talk.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

func TestConversionConfig_FlagsOverrideDefaults(t *testing.T) {
	isolate(t)

	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(convertCmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--zoom", "2", "--hide-annotations", "--format", "jpeg", "--quality", "70"}))

	conv := conversionConfig(cmd)
	assert.Equal(t, 2.0, conv.ZoomFactor)
	assert.False(t, conv.ShowAnnotations)
	assert.Equal(t, domain.ImageFormatJPEG, conv.ImageFormat)
	assert.Equal(t, 70, conv.JPEGQuality)
	assert.True(t, conv.Use16by9Detection, "unset flags keep the configured value")
	assert.True(t, conv.PageAsImage)
}

func TestConversionConfig_NoFlags(t *testing.T) {
	isolate(t)

	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(convertCmd.Flags())
	require.NoError(t, cmd.Flags().Parse(nil))

	assert.Equal(t, cfg.Conversion, conversionConfig(cmd))
}

func TestEnsureDefaultTemplate(t *testing.T) {
	dir := isolate(t)
	logger := observability.NewNop()

	require.NoError(t, ensureDefaultTemplate(cfg, logger))

	pres, err := pptx.Open(filepath.Join(dir, "template.pptx"))
	require.NoError(t, err)
	_, err = pres.Layout(cfg.Template.BlankLayoutIndex)
	assert.NoError(t, err)

	// an explicit path is never created
	custom := config.DefaultConfig()
	custom.Template.Path = filepath.Join(dir, "custom.pptx")
	require.NoError(t, ensureDefaultTemplate(custom, logger))
	assert.NoFileExists(t, custom.Template.Path)
}

func TestEnsureDefaultTemplate_KeepsExistingFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "template.pptx")
	require.NoError(t, os.WriteFile(path, []byte("mine"), 0o644))

	require.NoError(t, ensureDefaultTemplate(cfg, observability.NewNop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestWatchProgress_ReturnsOutcome(t *testing.T) {
	events := make(chan domain.StreamEvent, 8)
	outcomes := make(chan domain.ConversionOutcome, 1)
	id := uuid.New()

	events <- domain.StreamEvent{Type: domain.EventStart, JobID: id, TotalPages: 2}
	events <- domain.StreamEvent{Type: domain.EventPageProcessing, JobID: id, PageNumber: 1, TotalPages: 2}
	events <- domain.StreamEvent{Type: domain.EventPageComplete, JobID: id, PageNumber: 1, TotalPages: 2}
	events <- domain.StreamEvent{Type: domain.EventPageComplete, JobID: id, PageNumber: 2, TotalPages: 2}
	events <- domain.StreamEvent{Type: domain.EventComplete, JobID: id, TotalPages: 2}
	outcomes <- domain.Success(id, "/tmp/talk.pptx", 2)

	outcome := watchProgress(events, outcomes)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, 2, outcome.Pages)
	assert.Empty(t, events, "remaining events are drained")
}

func TestConvertCommand_EndToEnd(t *testing.T) {
	dir := isolate(t)
	source := writeFixture(t, dir, 3)

	rootCmd.SetArgs([]string{"convert", source, "--zoom", "1", "--no-color"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, Execute())

	output := filepath.Join(dir, "talk.pptx")
	pres, err := pptx.Open(output)
	require.NoError(t, err)
	assert.Len(t, pres.Slides(), 3)

	store, err := history.Open(context.Background(), cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StateCompleted, records[0].State)
	assert.Equal(t, output, records[0].OutputPath)
	assert.Equal(t, 3, records[0].Pages)
	assert.Equal(t, 1.0, records[0].Config.ZoomFactor)
}
