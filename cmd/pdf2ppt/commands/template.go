package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresfredes/pdf2ppt/cmd/pdf2ppt/ui"
	"github.com/andresfredes/pdf2ppt/internal/convert"
)

var templateForce bool

var templateCmd = &cobra.Command{
	Use:   "template [path]",
	Short: "Write the built-in blank presentation template",
	Long: `Template writes a blank presentation sized to the configured canvas. Without
a path it writes to the configured template.path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().BoolVar(&templateForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(templateCmd)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	path := cfg.Template.Path
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !templateForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := writeTemplateFile(path, cfg); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	// read it back the way the builder will
	if _, err := convert.LoadTemplate(path, cfg.Template.BlankLayoutIndex); err != nil {
		return err
	}

	ui.Success("Template written to: %s", path)
	return nil
}
