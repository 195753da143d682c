package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hdbscout/models"
)

// Interaction performs extra in-page work (clicking, expanding sections)
// after navigation and before extraction.
type Interaction func(ctx context.Context, page Page, label string) error

// Pagination advances the page to the next set of results. It returns false
// when there are no further pages.
type Pagination func(ctx context.Context, page Page, label string) (bool, error)

// DelaySchedule is the artificial pre-extraction delay applied per attempt:
// fast on the first try, progressively slower on retries so the site's
// rate-limiting heuristics back off.
type DelaySchedule struct {
	Initial    time.Duration // attempt 1
	EarlyRetry time.Duration // attempts 2 and 3
	LateRetry  time.Duration // attempts 4+
}

func (d DelaySchedule) forAttempt(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return d.Initial
	case attempt <= 3:
		return d.EarlyRetry
	default:
		return d.LateRetry
	}
}

// HTMLOptions configures RenderedHTML.
type HTMLOptions struct {
	// WaitSelector, when set, is waited for before extraction. A selector
	// that signals client-side rendering finished (any "h3" works for the
	// listing pages).
	WaitSelector string

	// Extra runs after WaitSelector and before extraction.
	Extra Interaction

	Delays DelaySchedule
}

// RenderedHTML returns a PageAction producing a single rendered-HTML
// snapshot of the page.
func RenderedHTML(opts HTMLOptions) PageAction {
	return PageActionFunc(func(ctx context.Context, page Page, label string, attempt int) ([]string, error) {
		if d := opts.Delays.forAttempt(attempt); d > 0 {
			slog.Debug("delaying before extraction", "target", label, "delay", d, "attempt", attempt)
			if err := sleep(ctx, d); err != nil {
				return nil, err
			}
		}

		if opts.WaitSelector != "" {
			slog.Debug("waiting for selector", "selector", opts.WaitSelector, "target", label)
			if err := page.WaitSelector(opts.WaitSelector); err != nil {
				return nil, models.NewScrapeError(models.ErrCodeStructure,
					fmt.Sprintf("selector %q never appeared", opts.WaitSelector), err)
			}
		}

		if opts.Extra != nil {
			if err := opts.Extra(ctx, page, label); err != nil {
				return nil, err
			}
		}

		slog.Debug("extracting rendered HTML", "target", label)
		html, err := page.HTML()
		if err != nil {
			return nil, err
		}
		return []string{html}, nil
	})
}

// PagedHTML returns a PageAction that collects one rendered-HTML snapshot per
// result page: initial (optional) runs once, then paginate advances the page
// until it reports no more pages or maxPages snapshots were taken
// (maxPages <= 0 means unlimited).
func PagedHTML(initial Interaction, paginate Pagination, maxPages int) PageAction {
	return PageActionFunc(func(ctx context.Context, page Page, label string, attempt int) ([]string, error) {
		if initial != nil {
			if err := initial(ctx, page, label); err != nil {
				return nil, err
			}
		}

		slog.Info("extracting rendered HTML", "target", label, "page", 1)
		html, err := page.HTML()
		if err != nil {
			return nil, err
		}
		htmls := []string{html}

		if paginate == nil {
			return htmls, nil
		}

		for pageNum := 1; maxPages <= 0 || pageNum < maxPages; {
			ok, err := paginate(ctx, page, label)
			if err != nil {
				return nil, err
			}
			if !ok {
				slog.Info("no more pages", "target", label, "pages", pageNum)
				break
			}
			pageNum++

			slog.Info("extracting rendered HTML", "target", label, "page", pageNum)
			html, err := page.HTML()
			if err != nil {
				return nil, err
			}
			htmls = append(htmls, html)
		}
		return htmls, nil
	})
}

// ClickInteraction waits for selector and clicks it. Used for controls like
// the listing page's "Expand/Collapse all" button.
func ClickInteraction(selector string) Interaction {
	return func(ctx context.Context, page Page, label string) error {
		slog.Debug("waiting for clickable element", "selector", selector, "target", label)
		if err := page.WaitSelector(selector); err != nil {
			return models.NewScrapeError(models.ErrCodeStructure,
				fmt.Sprintf("clickable %q never appeared", selector), err)
		}
		slog.Debug("clicking element", "selector", selector, "target", label)
		return page.Click(selector)
	}
}
