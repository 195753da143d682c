package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"hdbscout/config"
	"hdbscout/models"
)

type fakeBrowser struct {
	pages      []*fakePage
	newPageErr error
	closed     int
	pageHTML   string
	closeErr   error
}

func (b *fakeBrowser) NewPage() (pageHandle, error) {
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	p := &fakePage{html: b.pageHTML, closeErr: b.closeErr}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

type fakePage struct {
	html     string
	closeErr error
	closed   int
}

func (p *fakePage) Prepare(config.BrowserConfig, string) error { return nil }

func (p *fakePage) Navigate(context.Context, string, WaitMode) error { return nil }

func (p *fakePage) WaitSelector(string) error { return nil }

func (p *fakePage) Click(string) error { return nil }

func (p *fakePage) Has(string) (bool, error) { return false, nil }

func (p *fakePage) HTML() (string, error) { return p.html, nil }

func (p *fakePage) Close() error {
	p.closed++
	return p.closeErr
}

func newTestSession(b *fakeBrowser) *Session {
	s := NewSession(Config{
		RunTimeout:         time.Second,
		RetryDelay:         time.Millisecond,
		MaxNetworkAttempts: 5,
		MaxOtherAttempts:   3,
	})
	s.launch = func() (browserHandle, error) { return b, nil }
	return s
}

func staticAction(result string) PageAction {
	return PageActionFunc(func(context.Context, Page, string, int) ([]string, error) {
		return []string{result}, nil
	})
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	got, err := s.Run(context.Background(), "https://example/listing/1", staticAction("<html/>"), "x")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(got) != 1 || got[0] != "<html/>" {
		t.Errorf("unexpected result: %v", got)
	}
	if len(b.pages) != 1 {
		t.Fatalf("expected exactly one page to be opened, got %d", len(b.pages))
	}
	if b.pages[0].closed != 1 {
		t.Errorf("page should be closed exactly once, closed %d times", b.pages[0].closed)
	}
	if b.closed != 0 {
		t.Errorf("browser must not be closed implicitly mid-run")
	}
}

func TestRun_NetworkErrorCeiling(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	attempts := 0
	action := PageActionFunc(func(context.Context, Page, string, int) ([]string, error) {
		attempts++
		return nil, errors.New("net::ERR_CONNECTION_RESET")
	})

	if _, err := s.Run(context.Background(), "https://example/listing/1", action, "x"); err == nil {
		t.Fatal("expected error after exhausting network retries")
	}
	if attempts != 5 {
		t.Errorf("expected exactly 5 attempts for network errors, got %d", attempts)
	}
	if len(b.pages) != 5 {
		t.Errorf("expected a fresh page per attempt, got %d pages", len(b.pages))
	}
	for i, p := range b.pages {
		if p.closed != 1 {
			t.Errorf("page %d closed %d times, want exactly 1", i, p.closed)
		}
	}
}

func TestRun_OtherErrorCeiling(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	attempts := 0
	action := PageActionFunc(func(context.Context, Page, string, int) ([]string, error) {
		attempts++
		return nil, models.NewScrapeError(models.ErrCodeStructure, "no h3 found", nil)
	})

	if _, err := s.Run(context.Background(), "https://example/listing/1", action, "x"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts for structural errors, got %d", attempts)
	}
}

func TestRun_FailsTwiceThenSucceeds(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	attempts := 0
	action := PageActionFunc(func(_ context.Context, _ Page, _ string, attempt int) ([]string, error) {
		attempts++
		if attempt != attempts {
			t.Errorf("attempt counter out of sync: action saw %d, expected %d", attempt, attempts)
		}
		if attempts <= 2 {
			return nil, errors.New("net::ERR_TIMED_OUT")
		}
		return []string{"ok"}, nil
	})

	got, err := s.Run(context.Background(), "https://example/listing/1", action, "x")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("unexpected result: %v", got)
	}
	if attempts != 3 {
		t.Errorf("expected success on the third attempt, got %d attempts", attempts)
	}
}

func TestRun_DeadlineCountsAsNetworkError(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	attempts := 0
	action := PageActionFunc(func(context.Context, Page, string, int) ([]string, error) {
		attempts++
		return nil, models.NewScrapeError(models.ErrCodeStructure, "wait aborted", context.DeadlineExceeded)
	})

	if _, err := s.Run(context.Background(), "https://example/listing/1", action, "x"); err == nil {
		t.Fatal("expected error")
	}
	// A deadline anywhere in the wrap chain takes the generous ceiling.
	if attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", attempts)
	}
}

func TestRun_IdempotentPageClose(t *testing.T) {
	b := &fakeBrowser{closeErr: errors.New("Target closed")}
	s := newTestSession(b)

	got, err := s.Run(context.Background(), "https://example/listing/1", staticAction("ok"), "x")
	if err != nil {
		t.Fatalf("benign close error changed the outcome: %v", err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestRun_NonBenignCloseErrorSurfaces(t *testing.T) {
	b := &fakeBrowser{closeErr: errors.New("websocket write failed")}
	s := newTestSession(b)

	_, err := s.Run(context.Background(), "https://example/listing/1", staticAction("ok"), "x")
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodePageClose {
		t.Fatalf("expected a page-close error, got %v", err)
	}
}

func TestRun_LaunchFailureIsFatal(t *testing.T) {
	s := NewSession(Config{RetryDelay: time.Millisecond})
	launches := 0
	s.launch = func() (browserHandle, error) {
		launches++
		return nil, errors.New("chromium not found")
	}

	_, err := s.Run(context.Background(), "https://example/listing/1", staticAction("ok"), "x")
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("expected a browser-crash error, got %v", err)
	}
	if launches != 1 {
		t.Errorf("launch failure must not be retried, got %d launches", launches)
	}
}

func TestSession_CloseIsExplicit(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)

	for i := 0; i < 3; i++ {
		if _, err := s.Run(context.Background(), "https://example/listing/1", staticAction("ok"), "x"); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	if b.closed != 0 {
		t.Fatalf("browser closed mid-run")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if b.closed != 1 {
		t.Errorf("browser closed %d times, want 1", b.closed)
	}

	// Closing an empty session again is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if b.closed != 1 {
		t.Errorf("second Close must not close the browser again")
	}
}

func TestSession_BrowserReusedAcrossRuns(t *testing.T) {
	b := &fakeBrowser{}
	s := newTestSession(b)
	launches := 0
	s.launch = func() (browserHandle, error) {
		launches++
		return b, nil
	}

	for i := 0; i < 4; i++ {
		if _, err := s.Run(context.Background(), "https://example/listing/1", staticAction("ok"), "x"); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	if launches != 1 {
		t.Errorf("browser launched %d times across 4 runs, want 1", launches)
	}
}
