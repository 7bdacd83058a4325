package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"kinorium-scraper/internal/store"
	"kinorium-scraper/internal/types"
)

var (
	historySkip  int
	historyLimit int
	historyTitle string
	historyGenre string
)

func init() {
	historyCmd.Flags().IntVar(&historySkip, "skip", 0, "Number of results to skip")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of results (1-100)")
	historyCmd.Flags().StringVar(&historyTitle, "title", "", "Only results whose title contains this text")
	historyCmd.Flags().StringVar(&historyGenre, "genre", "", "Only results saved from this genre listing")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--skip N] [--limit N] [--title text | --genre name]",
	Short: "Prints stored scrape results, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historySkip < 0 || historyLimit < 1 || historyLimit > 100 {
			return fmt.Errorf("--skip must be >= 0 and --limit between 1 and 100")
		}

		db, err := store.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer db.Close()

		var results []types.PersistedResult
		switch {
		case historyTitle != "":
			results, err = db.FindByTitle(cmd.Context(), historyTitle, historySkip, historyLimit)
		case historyGenre != "":
			results, err = db.FindByGenre(cmd.Context(), historyGenre, historySkip, historyLimit)
		default:
			results, err = db.List(cmd.Context(), historySkip, historyLimit)
		}
		if err != nil {
			return err
		}

		logger.Infof("Loaded %d stored results from %s", len(results), cfg.DatabasePath)
		return writeJSON(results)
	},
}
