package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/nichescout/internal/browser"
	"github.com/FranksOps/nichescout/internal/config"
	"github.com/FranksOps/nichescout/internal/domains"
	"github.com/FranksOps/nichescout/internal/fingerprint"
	"github.com/FranksOps/nichescout/internal/pipeline"
	"github.com/FranksOps/nichescout/internal/render"
	"github.com/FranksOps/nichescout/internal/scraper"
	"github.com/FranksOps/nichescout/internal/serp"
	"github.com/FranksOps/nichescout/internal/storage"
	"github.com/FranksOps/nichescout/internal/storage/postgres"
	"github.com/FranksOps/nichescout/internal/storage/sqlite"
	"github.com/FranksOps/nichescout/internal/trends"
	"github.com/FranksOps/nichescout/pkg/httpclient"
	"github.com/FranksOps/nichescout/pkg/proxy"
	"github.com/FranksOps/nichescout/pkg/useragent"
)

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// buildPipeline wires every lookup from cfg. The returned close func releases
// the renderer and must be called once the pipeline is no longer used.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, nil, err
	}
	uaPool := useragent.NewPool(nil)

	var proxies *proxy.Pool
	if cfg.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.ProxiesFile); err != nil {
			return nil, nil, err
		}
		logger.Info("loaded proxies", "count", proxies.Len())
	}

	renderer, closeRenderer, err := buildRenderer(ctx, cfg, profile, uaPool, proxies, logger)
	if err != nil {
		return nil, nil, err
	}

	transport, err := fingerprint.Transport(profile, nil)
	if err != nil {
		return nil, nil, errors.Join(err, closeRenderer())
	}
	api, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: uaPool.GetRandom(),
		Transport: transport,
	})
	if err != nil {
		return nil, nil, errors.Join(err, closeRenderer())
	}

	p := &pipeline.Pipeline{
		Trends: &trends.Client{
			HTTP:     api,
			BaseURL:  cfg.TrendsURL,
			Language: cfg.TrendsHL,
			TZ:       cfg.TrendsTZ,
			Logger:   logger,
		},
		Domains: &domains.Client{
			HTTP:    api,
			BaseURL: cfg.DomainsURL,
			Logger:  logger,
		},
		Counter: &serp.GoogleScrape{
			Renderer:  renderer,
			SearchURL: cfg.SearchURL,
			Timeout:   cfg.ScrapeTimeout,
			Logger:    logger,
		},
		Limit:  cfg.RelatedLimit,
		Logger: logger,
	}
	return p, closeRenderer, nil
}

func buildRenderer(ctx context.Context, cfg *config.Config, profile fingerprint.Profile, uaPool *useragent.Pool, proxies *proxy.Pool, logger *slog.Logger) (render.Renderer, func() error, error) {
	if cfg.Renderer == config.RendererHTTP {
		f, err := scraper.NewFetcher(scraper.FetchConfig{
			Timeout:      cfg.ScrapeTimeout,
			UseCookieJar: true,
			ProxyPool:    proxies,
			UAPool:       uaPool,
			Fingerprint:  profile,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return f, func() error { return nil }, nil
	}

	b, err := browser.Launch(ctx, browser.Config{
		ControlURL: cfg.BrowserControlURL,
		Bin:        cfg.BrowserBin,
		Headless:   cfg.BrowserHeadless,
		UAPool:     uaPool,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}
