package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"kinorium-scraper/adapters"
	"kinorium-scraper/utils"
)

var linksRendered bool

func init() {
	linksCmd.Flags().BoolVar(&linksRendered, "rendered", false, "Load the page in the headless browser instead of plain HTTP")
	rootCmd.AddCommand(linksCmd)
}

// linksCmd dumps the film links a page exposes, for checking selectors against the live site
var linksCmd = &cobra.Command{
	Use:   "links <url>",
	Short: "Prints the film links found on a page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, err := adapters.NewKinoriumAdapter(cfg, logger)
		if err != nil {
			return err
		}

		var html string
		if linksRendered {
			browser := utils.NewBrowser(cfg, logger, true)
			defer browser.Close()
			session, err := browser.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			page, err := session.Navigate(cmd.Context(), args[0], cfg.SearchReadySelector)
			if err != nil {
				return err
			}
			html = page.HTML
		} else {
			client := utils.NewHTTPClient(cfg, logger)
			defer client.Close()
			body, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			html = string(body)
		}

		films, err := adapter.ExtractSummaryList(html)
		if err != nil {
			return err
		}
		logger.Infof("Page %s has %d film links", args[0], len(films))
		if outputPath != "" {
			return writeJSON(films)
		}
		for i, film := range films {
			fmt.Printf("%3d. %s\n     %s\n", i+1, film.Title, film.URL)
		}
		return nil
	},
}
