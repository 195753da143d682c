// Command hdbscout runs the HDB resale listing pipeline: collect listing
// URLs, scrape base info per listing, precompute MRT station coordinates, and
// enrich listings with nearest-station data. Each stage is a subcommand that
// appends to a CSV table and can be re-run after an interruption.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hdbscout/browser"
	"hdbscout/config"
	"hdbscout/geo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand, populated in the root
// command's PersistentPreRunE.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:          "hdbscout",
		Short:        "HDB resale listing scraper with nearest-MRT enrichment",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env file is optional; deployments set the environment
			// directly.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				slog.Warn("unable to load .env file", "error", err)
			}
			initLogger(logLevel, logFormat)

			a.cfg = config.Load()
			if err := os.MkdirAll(a.cfg.Output.Folder, 0o755); err != nil {
				return fmt.Errorf("create output folder: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newListingsCmd(a),
		newScrapeCmd(a),
		newStationsCmd(a),
		newEnrichCmd(a),
	)
	return cmd
}

// initLogger configures the process-wide slog handler.
func initLogger(levelName, format string) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// signalContext returns a context canceled by SIGINT or SIGTERM, so a stage
// finishes its in-flight row and exits cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// tablePath places a table filename inside the output folder, insisting on
// the .csv extension so a typo cannot silently produce a second table format.
func (a *app) tablePath(name string) (string, error) {
	if filepath.Ext(name) != ".csv" {
		return "", fmt.Errorf("table filename %q must end in .csv", name)
	}
	return filepath.Join(a.cfg.Output.Folder, name), nil
}

// mapsClient builds the Maps API client, failing early when the key is
// missing rather than on the first lookup.
func (a *app) mapsClient() (*geo.Client, error) {
	if a.cfg.Maps.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is not set")
	}
	return geo.NewClient(a.cfg.Maps), nil
}

// sessionFlags are the browser-session tunables shared by the stages that
// drive a browser.
type sessionFlags struct {
	runTimeout         time.Duration
	retryDelay         time.Duration
	maxNetworkAttempts int
	maxOtherAttempts   int
	domWait            bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.runTimeout, "timeout", 5*time.Minute, "wall-clock budget per page visit")
	cmd.Flags().DurationVar(&f.retryDelay, "retry-delay", 5*time.Second, "fixed delay between retry attempts")
	cmd.Flags().IntVar(&f.maxNetworkAttempts, "max-network-attempts", 5, "attempt ceiling for timeouts and network errors")
	cmd.Flags().IntVar(&f.maxOtherAttempts, "max-other-attempts", 3, "attempt ceiling for other failures")
	cmd.Flags().BoolVar(&f.domWait, "dom-wait", false, "wait only for DOMContentLoaded instead of network idle")
}

func (f *sessionFlags) session(cfg *config.Config) *browser.Session {
	mode := browser.WaitNetworkIdle
	if f.domWait {
		mode = browser.WaitDOMContentLoaded
	}
	return browser.NewSession(browser.Config{
		RunTimeout:         f.runTimeout,
		RetryDelay:         f.retryDelay,
		MaxNetworkAttempts: f.maxNetworkAttempts,
		MaxOtherAttempts:   f.maxOtherAttempts,
		WaitMode:           mode,
		Browser:            cfg.Browser,
	})
}

func closeSession(s *browser.Session) {
	if err := s.Close(); err != nil {
		slog.Warn("failed to close browser", "error", err)
	}
}
