package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/internal/app"
)

var askUser string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question in the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx := cmd.Context()
		a, err := app.Setup(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}

		question := strings.Join(args, " ")
		result, err := a.Engine.Answer(ctx, askUser, question)
		if err != nil {
			return fmt.Errorf("answering question: %w", err)
		}

		fmt.Println(result.Answer)
		if len(result.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, c := range result.Citations {
				fmt.Printf("  - %s\n", c)
			}
		}
		if result.Cached {
			fmt.Println("\n(answered from cache)")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "cli", "user id to attribute the question to")
	rootCmd.AddCommand(askCmd)
}
