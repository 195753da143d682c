package browser

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"hdbscout/config"
)

// launchRod starts a headless Chromium and connects to it over CDP.
func launchRod(cfg config.BrowserConfig) (browserHandle, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return &rodBrowser{browser: b}, nil
}

type rodBrowser struct {
	browser *rod.Browser
}

func (r *rodBrowser) NewPage() (pageHandle, error) {
	p, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return &rodPage{raw: p, bound: p}, nil
}

func (r *rodBrowser) Close() error {
	return r.browser.Close()
}

// rodPage keeps two references to the same tab: raw is never bound to the
// attempt context so Close still works after the deadline has expired, bound
// carries the attempt context for everything else.
type rodPage struct {
	raw   *rod.Page
	bound *rod.Page
}

func (p *rodPage) Prepare(cfg config.BrowserConfig, targetURL string) error {
	if cfg.Stealth {
		if _, err := p.raw.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if cfg.UserAgent != "" {
		err := p.raw.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: cfg.UserAgent,
		})
		if err != nil {
			return err
		}
	}

	// Arriving from a Google search is less suspicious than having no
	// referrer at all.
	if u, err := url.Parse(targetURL); err == nil && u.Hostname() != "" {
		referer := "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Referer": gson.New(referer)},
		}.Call(p.raw)
	}
	return nil
}

func (p *rodPage) Navigate(ctx context.Context, target string, mode WaitMode) error {
	p.bound = p.raw.Context(ctx)

	event := proto.PageLifecycleEventNameNetworkIdle
	if mode == WaitDOMContentLoaded {
		event = proto.PageLifecycleEventNameDOMContentLoaded
	}

	// The lifecycle listener must be registered before Navigate, or the
	// event can fire before we start waiting for it.
	wait := p.bound.WaitNavigation(event)
	if err := p.bound.Navigate(target); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (p *rodPage) WaitSelector(selector string) error {
	return p.bound.WaitElementsMoreThan(selector, 0)
}

func (p *rodPage) Click(selector string) error {
	el, err := p.bound.Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Has(selector string) (bool, error) {
	ok, _, err := p.bound.Has(selector)
	return ok, err
}

func (p *rodPage) HTML() (string, error) {
	return p.bound.HTML()
}

func (p *rodPage) Close() error {
	return p.raw.Close()
}
