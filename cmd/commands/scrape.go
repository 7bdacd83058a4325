package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(genreCmd, filmCmd, openCmd, genresCmd)
}

var genreCmd = &cobra.Command{
	Use:   "genre <name>",
	Short: "Lists the films of a genre.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		listing, err := a.Orchestrator.ScrapeGenre(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		logger.Infof("Found %d films for genre %s", listing.Count, listing.Genre)
		return writeJSON(listing)
	},
}

var filmCmd = &cobra.Command{
	Use:   "film <name>",
	Short: "Searches for a film and prints its details.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Orchestrator.ScrapeFilmDetail(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeJSON(result)
	},
}

var openCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Opens the page of a film in a visible browser window.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ack, err := a.Orchestrator.OpenInteractive(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeJSON(ack)
	},
}

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "Lists the accepted genre names.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		return writeJSON(a.Genres.Names())
	},
}
