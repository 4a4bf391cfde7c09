package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/internal/kb"
	"github.com/studyowl/studyowl/internal/llm"
)

var indexCmd = &cobra.Command{
	Use:   "index [dataset.json]",
	Short: "Build the local knowledge base from a curated dataset",
	Long: `Index embeds every document of a curated JSON dataset and writes the
knowledge base into the data directory, replacing any previous build.

The dataset is a JSON array of documents:

  [{"topic": "...", "explanation": "...", "example": "...", "source": "..."}]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}

		ctx := cmd.Context()
		gateway, err := llm.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing model gateway: %w", err)
		}

		n, err := kb.Build(ctx, gateway, args[0], cfg.DataDir, cfg.EmbedderDim, logger)
		if err != nil {
			return fmt.Errorf("building knowledge base: %w", err)
		}

		fmt.Printf("Indexed %d documents into %s\n", n, cfg.DataDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
