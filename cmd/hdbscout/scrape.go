package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"hdbscout/browser"
	"hdbscout/pipeline"
)

func newScrapeCmd(a *app) *cobra.Command {
	var sf sessionFlags
	var listingsFile, outputFile string
	var waitSelector, expandSelector string
	var throttle time.Duration
	var delays browser.DelaySchedule

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape base info for every listing URL",
		Long: `Visits every URL in the listings table, expands the detail sections and
appends one base-info row per listing. Listings already present in the output
table are skipped, so the command can be re-run after an interruption.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			listingsPath, err := a.tablePath(listingsFile)
			if err != nil {
				return err
			}
			outputPath, err := a.tablePath(outputFile)
			if err != nil {
				return err
			}

			sess := sf.session(a.cfg)
			defer closeSession(sess)

			stage := pipeline.NewScrapeStage(sess, pipeline.ScrapeConfig{
				ListingsPath:   listingsPath,
				OutputPath:     outputPath,
				WaitSelector:   waitSelector,
				ExpandSelector: expandSelector,
				Throttle:       throttle,
				Delays:         delays,
			})
			written, err := stage.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("scrape finished", "written", written, "output", outputPath)
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&listingsFile, "listings", "listings.csv", "input table of listing URLs")
	cmd.Flags().StringVar(&outputFile, "output", "base_info.csv", "base-info table to append to")
	cmd.Flags().StringVar(&waitSelector, "wait-selector", "h3", "selector that signals the page finished rendering")
	cmd.Flags().StringVar(&expandSelector, "expand-selector", ".btn-secondary", "control that expands the detail sections")
	cmd.Flags().DurationVar(&throttle, "throttle", 10*time.Second, "minimum spacing between listings")
	cmd.Flags().DurationVar(&delays.Initial, "delay-initial", 5*time.Second, "pre-extraction delay on the first attempt")
	cmd.Flags().DurationVar(&delays.EarlyRetry, "delay-early-retry", 15*time.Second, "pre-extraction delay on attempts 2 and 3")
	cmd.Flags().DurationVar(&delays.LateRetry, "delay-late-retry", 30*time.Second, "pre-extraction delay on attempts 4 and later")
	return cmd
}
