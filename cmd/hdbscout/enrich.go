package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"hdbscout/pipeline"
)

func newEnrichCmd(a *app) *cobra.Command {
	var baseFile, stationsFile, outputFile string
	var throttle time.Duration

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Add nearest-MRT columns to the base-info table",
		Long: `Geocodes every listing's postal code, picks the nearest station from the
precomputed station table and appends the walking route to it. Rows already
present in the output table are skipped on re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			basePath, err := a.tablePath(baseFile)
			if err != nil {
				return err
			}
			stationsPath, err := a.tablePath(stationsFile)
			if err != nil {
				return err
			}
			outputPath, err := a.tablePath(outputFile)
			if err != nil {
				return err
			}
			maps, err := a.mapsClient()
			if err != nil {
				return err
			}

			stage := pipeline.NewEnrichStage(maps, pipeline.EnrichConfig{
				BaseInfoPath: basePath,
				StationsPath: stationsPath,
				OutputPath:   outputPath,
				Throttle:     throttle,
			})
			written, err := stage.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("enrichment finished", "written", written, "output", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseFile, "base-info", "base_info.csv", "base-info table produced by the scrape stage")
	cmd.Flags().StringVar(&stationsFile, "stations", "mrt_stations.csv", "precomputed station coordinate table")
	cmd.Flags().StringVar(&outputFile, "output", "full_info.csv", "enriched table to append to")
	cmd.Flags().DurationVar(&throttle, "throttle", 200*time.Millisecond, "minimum spacing between Maps API lookups")
	return cmd
}
