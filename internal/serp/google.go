package serp

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/nichescout/internal/bypass"
	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/internal/render"
)

const (
	DefaultSearchURL = "https://www.google.com/search"
	engineGoogle     = "google"
)

// GoogleScrape counts results by rendering Google results pages.
type GoogleScrape struct {
	Renderer  render.Renderer
	SearchURL string
	// Timeout bounds each page render. Zero means no limit beyond ctx.
	Timeout time.Duration
	Logger  *slog.Logger
}

var _ ResultCounter = (*GoogleScrape)(nil)

// Counts renders every term's results page concurrently. A failure on one
// page is recorded on that term's Count only.
func (g *GoogleScrape) Counts(ctx context.Context, terms []string) []Count {
	counts := make([]Count, len(terms))

	var eg errgroup.Group
	for i, term := range terms {
		eg.Go(func() error {
			counts[i] = g.count(ctx, term)
			return nil
		})
	}
	_ = eg.Wait()

	return counts
}

func (g *GoogleScrape) count(ctx context.Context, term string) Count {
	logger := g.logger().With("term", term)
	c := Count{Term: term}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := g.Renderer.Render(ctx, g.searchURL(term))
	if err != nil {
		metrics.RecordScrape(engineGoogle, metrics.OutcomeError, "", time.Since(start), 0)
		logger.Warn("render failed", "err", err)
		c.Err = err
		return c
	}

	if src := bypass.Analyze(snap, bypass.DefaultDetectors()); src != "" {
		metrics.RecordScrape(engineGoogle, metrics.OutcomeBlocked, src, snap.Duration, len(snap.Body))
		logger.Warn("results page blocked", "source", src, "url", snap.URL)
		c.Err = &BlockedError{Source: src}
		return c
	}

	text, found, err := ExtractResultStats(snap.Body)
	switch {
	case err != nil:
		c.Err = err
	case !found:
		metrics.RecordScrape(engineGoogle, metrics.OutcomeMissing, "", snap.Duration, len(snap.Body))
		logger.Debug("no result stats on page")
		return c
	default:
		n, perr := ParseResultCount(text)
		if perr != nil {
			c.Err = perr
		} else {
			c.Value = &n
		}
	}

	if c.Err != nil {
		metrics.RecordScrape(engineGoogle, metrics.OutcomeError, "", snap.Duration, len(snap.Body))
		logger.Warn("result count unreadable", "err", c.Err)
		return c
	}
	metrics.RecordScrape(engineGoogle, metrics.OutcomeOK, "", snap.Duration, len(snap.Body))
	return c
}

func (g *GoogleScrape) searchURL(term string) string {
	base := g.SearchURL
	if base == "" {
		base = DefaultSearchURL
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + url.Values{"q": {term}}.Encode()
}

func (g *GoogleScrape) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
