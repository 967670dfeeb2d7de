// Package commands implements the pdf2ppt cobra commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresfredes/pdf2ppt/cmd/pdf2ppt/ui"
	"github.com/andresfredes/pdf2ppt/internal/config"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	// cfg is loaded once per invocation by the root command.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pdf2ppt",
	Short: "Convert PDF documents into PowerPoint presentations",
	Long: `pdf2ppt renders every page of a PDF as an image and places it on its own
slide of a 16:9 PowerPoint deck, written next to the source file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
