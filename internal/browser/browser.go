// Package browser owns the headless Chromium used to render search result
// pages. A Browser is created once at startup and closed on shutdown; every
// render runs in its own tab.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/FranksOps/nichescout/internal/render"
	"github.com/FranksOps/nichescout/pkg/useragent"
)

// Config selects how the browser is obtained.
type Config struct {
	// ControlURL connects to an already running browser's DevTools endpoint.
	// When empty a local Chromium is launched.
	ControlURL string
	// Bin overrides the Chromium binary for local launches.
	Bin      string
	Headless bool
	UAPool   *useragent.Pool
	Logger   *slog.Logger
}

// Browser is a connected headless browser.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	uaPool   *useragent.Pool
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ render.Renderer = (*Browser)(nil)

// Launch starts or connects to a browser.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}

	b := &Browser{uaPool: cfg.UAPool, logger: logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless).NoSandbox(true)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		b.launcher = l
		controlURL = u
		logger.Info("launched local browser", "headless", cfg.Headless)
	}

	r := rod.New().ControlURL(controlURL).Context(ctx)
	if err := r.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	// Detach from the launch context so later renders are bound only by their own.
	b.rod = r.Context(context.Background())

	return b, nil
}

// Acquire opens a fresh tab bound to ctx. Callers must Release it.
func (b *Browser) Acquire(ctx context.Context) (*rod.Page, error) {
	page, err := b.rod.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: open tab: %w", err)
	}
	return page, nil
}

// Release closes a tab from Acquire. A nil page is ignored.
func (b *Browser) Release(page *rod.Page) {
	if page == nil {
		return
	}
	// The acquiring context may already be done; close on a fresh one.
	if err := page.Context(context.Background()).Close(); err != nil {
		b.logger.Debug("closing tab failed", "err", err)
	}
}

// Render loads url in a new tab, waits for DOMContentLoaded only, and returns
// the resulting HTML. The tab is released on every path.
func (b *Browser) Render(ctx context.Context, url string) (*render.Snapshot, error) {
	start := time.Now()

	page, err := b.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer b.Release(page)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.uaPool.GetSequential(),
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return nil, fmt.Errorf("browser: set user agent: %w", err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: read html of %s: %w", url, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &render.Snapshot{
		URL:      finalURL,
		Body:     []byte(html),
		Duration: time.Since(start),
	}, nil
}

// Close disconnects from the browser and stops any process Launch started.
// Later calls return the first call's result.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.rod != nil {
			b.closeErr = b.rod.Close()
		}
		if b.launcher != nil {
			b.launcher.Cleanup()
		}
	})
	return b.closeErr
}
