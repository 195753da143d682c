package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"hdbscout/browser"
	"hdbscout/models"
	"hdbscout/parse"
)

// Runner is the slice of browser.Session the pipeline stages use.
type Runner interface {
	Run(ctx context.Context, url string, action browser.PageAction, label string) ([]string, error)
}

// ScrapeConfig controls the base-info stage.
type ScrapeConfig struct {
	// ListingsPath is the one-column table of listing URLs to visit.
	ListingsPath string

	// OutputPath is the base-info table to append to.
	OutputPath string

	// WaitSelector signals that client-side rendering finished.
	WaitSelector string // default: "h3"

	// ExpandSelector is the control that expands the collapsed detail
	// sections so their text is present in the DOM.
	ExpandSelector string // default: ".btn-secondary"

	// Throttle is the minimum spacing between consecutive listings.
	Throttle time.Duration

	Delays browser.DelaySchedule
}

// ScrapeStage visits every listing URL, parses the rendered page and appends
// one base-info row per listing. Listings already present in the output table
// are skipped, so an interrupted run picks up where it left off.
type ScrapeStage struct {
	runner  Runner
	cfg     ScrapeConfig
	limiter *rate.Limiter
}

func NewScrapeStage(runner Runner, cfg ScrapeConfig) *ScrapeStage {
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "h3"
	}
	if cfg.ExpandSelector == "" {
		cfg.ExpandSelector = ".btn-secondary"
	}
	s := &ScrapeStage{runner: runner, cfg: cfg}
	if cfg.Throttle > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.Throttle), 1)
	}
	return s
}

// Run processes the listing table and reports how many new rows were written.
// A listing that keeps failing is logged and skipped; only a browser that
// cannot run at all aborts the stage.
func (s *ScrapeStage) Run(ctx context.Context) (int, error) {
	urls, err := ReadURLColumn(s.cfg.ListingsPath)
	if err != nil {
		return 0, err
	}
	exists, seen, err := ResumeSet(s.cfg.OutputPath, colLink)
	if err != nil {
		return 0, err
	}
	out, err := NewAppendWriter(s.cfg.OutputPath, baseInfoHeader(), !exists)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	written := 0
	for i, url := range urls {
		label := fmt.Sprintf("%s (listing #%d of %d)", url, i+1, len(urls))
		if seen.Contains(url) {
			slog.Info("skipping already-processed listing", "target", label)
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		info, err := s.scrapeOne(ctx, url, label)
		if err != nil {
			var se *models.ScrapeError
			if errors.As(err, &se) && se.Code == models.ErrCodeBrowserCrash {
				return written, err
			}
			slog.Warn("unable to scrape listing, skipping", "target", label, "error", err)
			continue
		}

		if err := out.WriteRow(baseInfoRow(info)); err != nil {
			return written, err
		}
		written++
		seen.Add(url)

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return written, err
			}
		}
	}

	slog.Info("finished scraping listings", "written", written, "output", s.cfg.OutputPath)
	return written, nil
}

func (s *ScrapeStage) scrapeOne(ctx context.Context, url, label string) (*models.ListingInfo, error) {
	slog.Info("starting to scrape", "target", label)

	htmls, err := s.runner.Run(ctx, url, s.action(), label)
	if err != nil {
		return nil, err
	}
	if len(htmls) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeStructure, "no rendered HTML returned", nil)
	}

	header, details, err := parse.ParseListing(htmls[0])
	if err != nil {
		return nil, err
	}

	slog.Info("finished scraping", "target", label)
	return &models.ListingInfo{URL: url, Header: header, Details: details}, nil
}

// action validates the rendered page inside the attempt, so challenge
// interstitials and half-rendered pages go through the retry budget instead
// of failing the listing outright.
func (s *ScrapeStage) action() browser.PageAction {
	inner := browser.RenderedHTML(browser.HTMLOptions{
		WaitSelector: s.cfg.WaitSelector,
		Extra:        browser.ClickInteraction(s.cfg.ExpandSelector),
		Delays:       s.cfg.Delays,
	})
	return browser.PageActionFunc(func(ctx context.Context, page browser.Page, label string, attempt int) ([]string, error) {
		htmls, err := inner.Act(ctx, page, label, attempt)
		if err != nil {
			return nil, err
		}
		if parse.IsChallengePage(htmls[0]) {
			return nil, models.NewScrapeError(models.ErrCodeStructure, "challenge interstitial served", nil)
		}
		if _, _, err := parse.ParseListing(htmls[0]); err != nil {
			return nil, err
		}
		return htmls, nil
	})
}
