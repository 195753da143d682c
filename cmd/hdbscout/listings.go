package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"hdbscout/pipeline"
)

func newListingsCmd(a *app) *cobra.Command {
	var sf sessionFlags
	var outputFile, searchURL string
	var waitSelector, nextSelector, linkSelector string
	var maxPages int

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Collect listing URLs from the search results",
		Long: `Paginates through the search-results page in a single browser visit and
appends every new listing URL to the listings table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			outputPath, err := a.tablePath(outputFile)
			if err != nil {
				return err
			}

			sess := sf.session(a.cfg)
			defer closeSession(sess)

			stage := pipeline.NewListingsStage(sess, pipeline.ListingsConfig{
				SearchURL:    searchURL,
				OutputPath:   outputPath,
				MaxPages:     maxPages,
				WaitSelector: waitSelector,
				NextSelector: nextSelector,
				LinkSelector: linkSelector,
			})
			written, err := stage.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("listing collection finished", "written", written, "output", outputPath)
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&searchURL, "search-url", "", "search-results page to paginate through")
	cmd.MarkFlagRequired("search-url")
	cmd.Flags().StringVar(&outputFile, "output", "listings.csv", "listings table to append to")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page ceiling, 0 for all pages")
	cmd.Flags().StringVar(&waitSelector, "wait-selector", "", "selector that signals a result page finished rendering")
	cmd.Flags().StringVar(&nextSelector, "next-selector", "", "pagination control, absent on the last page")
	cmd.Flags().StringVar(&linkSelector, "link-selector", "", "anchors pointing at listing detail pages")
	return cmd
}
