package main

import (
	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "fableforge",
	Short: "Children's picture book generator with safety-gated LLM pipelines",
	Long: `Fableforge generates complete children's picture books from a short
brief: a themed 24-page story, character-consistent illustrations, and
print-ready PDFs with proper bleed and spine geometry.

The pipeline includes:
  - Content safety gating on every prompt and generated text
  - Structured story generation with page-level scene descriptions
  - Illustration generation with style and character continuity
  - Interior and cover PDF composition for print-on-demand`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.fableforge/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "fableforge home directory (default: ~/.fableforge)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
