package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/nichescout/internal/bypass"
	"github.com/FranksOps/nichescout/internal/fingerprint"
	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/internal/render"
	"github.com/FranksOps/nichescout/pkg/httpclient"
	"github.com/FranksOps/nichescout/pkg/proxy"
	"github.com/FranksOps/nichescout/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Logger       *slog.Logger
}

// Fetcher renders pages with plain HTTP GETs. It is the render.Renderer used
// where no Chromium is available; pages that need JavaScript will come back
// without their dynamic content.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

var _ render.Renderer = (*Fetcher)(nil)

// NewFetcher builds a Fetcher. One transport is shared across requests so
// connections and cookies persist for the Fetcher's lifetime.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The proxy for each request rides in its context so rotation needs no
	// transport mutation.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Render GETs targetURL and returns the buffered response. Non-2xx statuses
// are returned as snapshots, not errors. When a proxy served a page that a
// bot-protection detector flags, the proxy is charged with a failure.
func (f *Fetcher) Render(ctx context.Context, targetURL string) (*render.Snapshot, error) {
	start := time.Now()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	header := http.Header{}
	header.Set("User-Agent", f.config.UAPool.GetSequential())
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Get(ctx, targetURL, header)
	if err != nil {
		f.proxyFailed(activeProxy, err.Error())
		return nil, fmt.Errorf("scraper: fetch %s: %w", targetURL, err)
	}

	snap := &render.Snapshot{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
		Duration:   time.Since(start),
	}

	if src := bypass.Analyze(snap, bypass.DefaultDetectors()); src != "" {
		f.proxyFailed(activeProxy, "blocked by "+src)
	} else if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	return snap, nil
}

func (f *Fetcher) proxyFailed(u *url.URL, reason string) {
	if u == nil {
		return
	}
	_ = f.config.ProxyPool.MarkFailure(u)
	metrics.ProxyFailures.WithLabelValues(u.Redacted()).Inc()
	f.logger.Warn("proxy failure", "proxy", u.Redacted(), "reason", reason)
}
