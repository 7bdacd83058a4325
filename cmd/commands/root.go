package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"kinorium-scraper/internal/app"
	"kinorium-scraper/internal/config"
	"kinorium-scraper/internal/types"
)

var (
	verbose    bool
	outputPath string
	noStore    bool

	cfg    *types.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "kinorium",
	Short:         "kinorium scrapes film metadata from ua.kinorium.com.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose && os.Getenv("LOG_LEVEL") == "" {
			level = "debug"
		}
		logger = config.NewLogger(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&noStore, "no-store", false, "Do not save results to the database")
}

// ExecuteContext runs the CLI and exits non-zero on failure
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var scrapeErr *types.ScrapeError
		if errors.As(err, &scrapeErr) {
			fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", scrapeErr.Kind, scrapeErr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newApp(persist bool) (*app.App, error) {
	return app.New(cfg, logger, app.Options{Persist: persist && !noStore})
}

// writeJSON prints v as indented JSON to --output or stdout
func writeJSON(v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(jsonData))
		return nil
	}
	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Infof("Results written to: %s", outputPath)
	return nil
}
