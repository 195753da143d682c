package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	mapset "github.com/deckarep/golang-set/v2"

	"hdbscout/browser"
	"hdbscout/models"
	"hdbscout/parse"
)

// ListingsConfig controls the URL-collection stage.
type ListingsConfig struct {
	// SearchURL is the search-results page to paginate through.
	SearchURL string

	// OutputPath is the one-column listing URL table to append to.
	OutputPath string

	// MaxPages bounds pagination; <= 0 means all pages.
	MaxPages int

	// WaitSelector signals that a result page finished rendering.
	WaitSelector string // default: "h3"

	// NextSelector is the pagination control; its absence means the last
	// page was reached.
	NextSelector string // default: `a[aria-label="Next page"]`

	// LinkSelector matches the anchors pointing at listing detail pages.
	LinkSelector string // default: `a[href*="listing"]`
}

// ListingsStage paginates through the search results in a single browser
// visit and appends every new listing URL to the output table.
type ListingsStage struct {
	runner Runner
	cfg    ListingsConfig
}

func NewListingsStage(runner Runner, cfg ListingsConfig) *ListingsStage {
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "h3"
	}
	if cfg.NextSelector == "" {
		cfg.NextSelector = `a[aria-label="Next page"]`
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = `a[href*="listing"]`
	}
	return &ListingsStage{runner: runner, cfg: cfg}
}

// Run collects listing URLs and reports how many new ones were written. The
// resume set is read before the browser visit: a missing output table is a
// fresh start, an unreadable one is corrupt resume state and aborts the
// stage so no duplicate URLs get appended.
func (s *ListingsStage) Run(ctx context.Context) (int, error) {
	seen := mapset.NewSet[string]()
	if _, statErr := os.Stat(s.cfg.OutputPath); !errors.Is(statErr, os.ErrNotExist) {
		existing, err := ReadURLColumn(s.cfg.OutputPath)
		if err != nil {
			return 0, err
		}
		seen.Append(existing...)
	}

	action := browser.PagedHTML(s.initial(), s.paginate(), s.cfg.MaxPages)
	htmls, err := s.runner.Run(ctx, s.cfg.SearchURL, action, s.cfg.SearchURL)
	if err != nil {
		return 0, err
	}

	out, err := NewAppendWriter(s.cfg.OutputPath, nil, false)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	written := 0
	for pageNum, html := range htmls {
		links, err := s.extractLinks(html)
		if err != nil {
			return written, err
		}
		slog.Debug("listing links extracted", "page", pageNum+1, "count", len(links))
		for _, link := range links {
			if seen.Contains(link) {
				continue
			}
			if err := out.WriteRow([]string{link}); err != nil {
				return written, err
			}
			written++
			seen.Add(link)
		}
	}

	slog.Info("finished collecting listing URLs", "written", written, "output", s.cfg.OutputPath)
	return written, nil
}

func (s *ListingsStage) initial() browser.Interaction {
	return func(ctx context.Context, page browser.Page, label string) error {
		if err := page.WaitSelector(s.cfg.WaitSelector); err != nil {
			return models.NewScrapeError(models.ErrCodeStructure,
				fmt.Sprintf("selector %q never appeared", s.cfg.WaitSelector), err)
		}
		html, err := page.HTML()
		if err != nil {
			return err
		}
		if parse.IsChallengePage(html) {
			return models.NewScrapeError(models.ErrCodeStructure, "challenge interstitial served", nil)
		}
		return nil
	}
}

func (s *ListingsStage) paginate() browser.Pagination {
	return func(ctx context.Context, page browser.Page, label string) (bool, error) {
		ok, err := page.Has(s.cfg.NextSelector)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if err := page.Click(s.cfg.NextSelector); err != nil {
			return false, err
		}
		if err := page.WaitSelector(s.cfg.WaitSelector); err != nil {
			return false, models.NewScrapeError(models.ErrCodeStructure,
				fmt.Sprintf("selector %q never appeared after pagination", s.cfg.WaitSelector), err)
		}
		return true, nil
	}
}

// extractLinks pulls listing URLs out of one result page, resolved against
// the search URL so relative hrefs come out absolute.
func (s *ListingsStage) extractLinks(rawHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStructure, "unparseable result page HTML", err)
	}
	base, err := url.Parse(s.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search URL: %w", err)
	}

	var links []string
	doc.Find(s.cfg.LinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(href)
		if err != nil || href == "" {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}
