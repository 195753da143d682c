// Package browser drives a single headless Chromium instance against
// dynamically rendered listing pages. The target sites render their content
// client-side (Angular), so a plain GET yields an empty <app-root> shell;
// every visit goes through a real browser page instead.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"hdbscout/config"
	"hdbscout/models"
)

// WaitMode selects the navigation-completion heuristic.
type WaitMode string

const (
	// WaitNetworkIdle waits until the page has no in-flight requests.
	WaitNetworkIdle WaitMode = "networkidle"

	// WaitDOMContentLoaded waits only for the DOM to be parsed. Needed for
	// sites with long-polling connections that never reach network idle.
	WaitDOMContentLoaded WaitMode = "domcontentloaded"
)

// Config controls one Session.
type Config struct {
	// RunTimeout is the wall-clock budget for one attempt: open page,
	// navigate, and run the page action.
	RunTimeout time.Duration // default: 5m

	// RetryDelay is the fixed sleep between attempts.
	RetryDelay time.Duration // default: 5s

	// MaxNetworkAttempts bounds attempts ended by timeouts or transport
	// errors. These are expected against a throttling site, so the ceiling
	// is generous.
	MaxNetworkAttempts int // default: 5

	// MaxOtherAttempts bounds attempts ended by anything else, typically a
	// page-structure mismatch that retrying rarely fixes (but occasionally
	// does, e.g. an interstitial challenge page).
	MaxOtherAttempts int // default: 3

	// WaitMode is the navigation-completion heuristic.
	WaitMode WaitMode // default: WaitNetworkIdle

	Browser config.BrowserConfig
}

func (c *Config) defaults() {
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.MaxNetworkAttempts <= 0 {
		c.MaxNetworkAttempts = 5
	}
	if c.MaxOtherAttempts <= 0 {
		c.MaxOtherAttempts = 3
	}
	if c.WaitMode == "" {
		c.WaitMode = WaitNetworkIdle
	}
}

// Page is the page handle a PageAction works with. It exposes only the
// operations site-specific actions need; the rod-backed implementation binds
// them to the attempt's context.
type Page interface {
	// WaitSelector blocks until at least one element matches selector.
	WaitSelector(selector string) error

	// Click clicks the first element matching selector.
	Click(selector string) error

	// Has reports whether an element matching selector currently exists,
	// without waiting for one to appear.
	Has(selector string) (bool, error)

	// HTML returns the rendered HTML of the page.
	HTML() (string, error)
}

// PageAction is the contract between the Session and site-specific logic:
// given a live page that has finished navigating, perform any interaction and
// return one or more rendered-HTML snapshots. Failures are signalled by
// returning an error; the Session classifies them into retry classes.
//
// attempt is 1-based and increments on each retry, so actions can choose
// escalating artificial delays to stay under bot-detection thresholds.
type PageAction interface {
	Act(ctx context.Context, page Page, label string, attempt int) ([]string, error)
}

// PageActionFunc adapts a plain function to the PageAction interface.
type PageActionFunc func(ctx context.Context, page Page, label string, attempt int) ([]string, error)

func (f PageActionFunc) Act(ctx context.Context, page Page, label string, attempt int) ([]string, error) {
	return f(ctx, page, label, attempt)
}

// browserHandle and pageHandle abstract the underlying driver so the retry
// machinery can be exercised without a real Chromium process.
type browserHandle interface {
	NewPage() (pageHandle, error)
	Close() error
}

type pageHandle interface {
	Page
	Prepare(cfg config.BrowserConfig, targetURL string) error
	Navigate(ctx context.Context, url string, mode WaitMode) error
	Close() error
}

// Session owns one lazily launched browser, reused across all navigations of
// a pipeline run, and at most one live page at a time. It is intended for
// serial use from a single goroutine; listings are deliberately processed one
// at a time.
type Session struct {
	cfg     Config
	launch  func() (browserHandle, error)
	browser browserHandle
	page    pageHandle
}

// NewSession creates a Session. The browser is not launched until the first
// Run call, so constructing a Session is cheap.
func NewSession(cfg Config) *Session {
	cfg.defaults()
	s := &Session{cfg: cfg}
	s.launch = func() (browserHandle, error) { return launchRod(cfg.Browser) }
	return s
}

// Run navigates a fresh page to url and invokes action on it, retrying with a
// fixed delay on failure. Timeouts and transport errors retry up to
// MaxNetworkAttempts; any other failure up to MaxOtherAttempts. label is used
// only for logging.
//
// On exhaustion the last error is returned; callers treat that as "skip this
// item". Only a browser-launch failure is returned without retrying, since a
// browser that cannot start at all should stop the whole run.
func (s *Session) Run(ctx context.Context, url string, action PageAction, label string) ([]string, error) {
	for attempt := 1; ; attempt++ {
		result, err := s.attempt(ctx, url, action, label, attempt)
		if err == nil {
			return result, nil
		}

		var se *models.ScrapeError
		if errors.As(err, &se) && se.Code == models.ErrCodeBrowserCrash {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}

		maxAttempts := s.cfg.MaxOtherAttempts
		kind := "unexpected error"
		if isNetworkError(err) {
			maxAttempts = s.cfg.MaxNetworkAttempts
			kind = "timeout or network error"
		}

		if attempt >= maxAttempts {
			slog.Error("giving up",
				"kind", kind, "target", label, "attempt", attempt, "error", err)
			return nil, err
		}
		slog.Warn("retrying",
			"kind", kind, "target", label, "attempt", attempt, "error", err)
		if serr := sleep(ctx, s.cfg.RetryDelay); serr != nil {
			return nil, serr
		}
	}
}

// attempt performs one full visit. The page opened here is closed before
// returning on every path; state never carries over into the next attempt.
func (s *Session) attempt(ctx context.Context, url string, action PageAction, label string, attempt int) (result []string, err error) {
	// A page from a previous invocation may still be open.
	if err := s.closePage(); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.closePage(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	b, err := s.ensureBrowser()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	page, err := b.NewPage()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to open page", err)
	}
	s.page = page

	if err := page.Prepare(s.cfg.Browser, url); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to prepare page", err)
	}

	slog.Debug("navigating", "target", label, "attempt", attempt)
	if err := page.Navigate(runCtx, url, s.cfg.WaitMode); err != nil {
		return nil, categorizeError(err, "navigation failed")
	}

	return action.Act(runCtx, page, label, attempt)
}

// ensureBrowser launches the browser on first use and reuses it afterwards.
// Launching Chromium is by far the most expensive step, so the cost is
// amortized across every navigation of the run.
func (s *Session) ensureBrowser() (browserHandle, error) {
	if s.browser != nil {
		slog.Debug("browser already exists, using existing browser")
		return s.browser, nil
	}
	slog.Debug("launching browser")
	b, err := s.launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	s.browser = b
	return b, nil
}

// closePage closes the current page if there is one. Closing a page the
// remote side already tore down (e.g. via a navigation to about:blank) is
// benign and must not fail the run; any other close failure is surfaced.
func (s *Session) closePage() error {
	if s.page == nil {
		slog.Debug("no page to close")
		return nil
	}
	err := s.page.Close()
	s.page = nil
	if err == nil {
		slog.Debug("closed page")
		return nil
	}
	if isBenignCloseError(err) {
		slog.Warn("page was already closed, ignoring additional close", "error", err)
		return nil
	}
	return models.NewScrapeError(models.ErrCodePageClose, "failed to close page", err)
}

// Close tears down the shared browser. The owning pipeline calls this once at
// the very end of a run; it is never invoked per navigation.
func (s *Session) Close() error {
	if err := s.closePage(); err != nil {
		slog.Warn("failed to close page during shutdown", "error", err)
	}
	if s.browser == nil {
		slog.Debug("no browser to close")
		return nil
	}
	slog.Debug("closing browser")
	err := s.browser.Close()
	s.browser = nil
	return err
}

// categorizeError wraps raw navigation errors into typed ScrapeErrors so the
// retry loop can classify them.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "attempt canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// isNetworkError reports whether err belongs to the timeout/transport retry
// class. Context errors are checked through the wrap chain first so that an
// action failure caused by the attempt deadline still counts as a timeout.
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.Code == models.ErrCodeTimeout || se.Code == models.ErrCodeNavigation
	}
	// CDP reports transport failures as net::ERR_* strings.
	return strings.Contains(err.Error(), "net::ERR")
}

// isBenignCloseError matches the driver's "target already closed" signals.
// String matching is inherently fragile but is the only signal CDP gives.
func isBenignCloseError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Target closed") ||
		strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "No target with given id") ||
		strings.Contains(msg, "Session closed")
}

// sleep waits for d, returning early with the context error on cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
