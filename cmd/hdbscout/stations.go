package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"hdbscout/pipeline"
)

func newStationsCmd(a *app) *cobra.Command {
	var outputFile, sourceURL string
	var throttle time.Duration

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Precompute MRT station coordinates",
		Long: `Scrapes the MRT station list from Wikipedia and geocodes each station,
appending one row per station to the stations table. Stations already present
are skipped on re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			outputPath, err := a.tablePath(outputFile)
			if err != nil {
				return err
			}
			maps, err := a.mapsClient()
			if err != nil {
				return err
			}

			stage := pipeline.NewStationsStage(maps, pipeline.StationsConfig{
				SourceURL:  sourceURL,
				OutputPath: outputPath,
				Throttle:   throttle,
			})
			written, err := stage.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("station precompute finished", "written", written, "output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputFile, "output", "mrt_stations.csv", "stations table to append to")
	cmd.Flags().StringVar(&sourceURL, "source-url", pipeline.DefaultStationListURL, "station list page")
	cmd.Flags().DurationVar(&throttle, "throttle", time.Second, "minimum spacing between geocoding lookups")
	return cmd
}
