// Package cmd contains the studyowl command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/log"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "studyowl",
	Short: "StudyOwl answers study questions from local and community sources",
	Long: `StudyOwl is a question-answering service for students. It combines a
curated local knowledge base with Stack Overflow, Wikipedia, and YouTube,
and synthesizes a single answer with citations.

Run "studyowl serve" to start the HTTP API, "studyowl ask" for a one-shot
answer in the terminal, or "studyowl index" to build the knowledge base.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and builds the logger shared by all
// subcommands.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	return cfg, logger, nil
}
