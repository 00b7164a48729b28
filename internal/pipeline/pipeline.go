// Package pipeline runs a keyword research pass: related trends, then domain
// suggestions and result counts for the top terms, joined into Records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/nichescout/internal/domains"
	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/internal/serp"
	"github.com/FranksOps/nichescout/internal/trends"
)

// DefaultLimit is how many related terms are researched per search.
const DefaultLimit = 5

// ErrEmptyKeyword is returned for a blank search keyword.
var ErrEmptyKeyword = errors.New("pipeline: empty keyword")

// TrendLookup finds related queries for a keyword.
type TrendLookup interface {
	Lookup(ctx context.Context, q trends.Query) ([]trends.TrendTerm, error)
}

// DomainLookup suggests domains for each term, one Result per term in order.
type DomainLookup interface {
	Lookup(ctx context.Context, terms []string) []domains.Result
}

// Request is one search submitted by a user.
type Request struct {
	Keyword string
	Start   time.Time
	End     time.Time
	Geo     string
}

// Record is one researched related term.
type Record struct {
	Keyword          string   `json:"keyword"`
	TrendQuery       string   `json:"googleTrendQuery"`
	TrendValue       float64  `json:"trendValue"`
	ResultCount      *int64   `json:"scraperNum"`
	NicheScore       *int64   `json:"nicheScore"`
	SuggestedDomains []string `json:"suggestedDomain"`
	DomainError      string   `json:"domainError,omitempty"`
	CountError       string   `json:"countError,omitempty"`
}

// Result is the outcome of one Search.
type Result struct {
	RunID    string        `json:"runId"`
	Keyword  string        `json:"keyword"`
	Records  []Record      `json:"records"`
	Duration time.Duration `json:"duration"`
}

// Pipeline wires the lookups together. Limit defaults to DefaultLimit.
type Pipeline struct {
	Trends  TrendLookup
	Domains DomainLookup
	Counter serp.ResultCounter
	Limit   int
	Logger  *slog.Logger
}

// Search runs the full pass. A failed trend lookup fails the whole search;
// domain and count failures are carried on the affected Record.
func (p *Pipeline) Search(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := p.logger().With("run", runID, "keyword", req.Keyword)
	defer func() {
		metrics.RecordSearch(time.Since(start), err)
	}()

	if strings.TrimSpace(req.Keyword) == "" {
		return nil, ErrEmptyKeyword
	}

	related, err := p.Trends.Lookup(ctx, trends.Query{
		Keyword: req.Keyword,
		Start:   req.Start,
		End:     req.End,
		Geo:     req.Geo,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: trend lookup: %w", err)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(related) > limit {
		related = related[:limit]
	}

	terms := make([]string, len(related))
	for i, t := range related {
		terms[i] = t.Query
	}
	logger.Info("researching related terms", "terms", len(terms))

	var (
		domainResults []domains.Result
		counts        []serp.Count
	)
	var g errgroup.Group
	g.Go(func() error {
		domainResults = p.Domains.Lookup(ctx, terms)
		return nil
	})
	g.Go(func() error {
		counts = p.Counter.Counts(ctx, terms)
		return nil
	})
	_ = g.Wait()

	byTermDomains := make(map[string]domains.Result, len(domainResults))
	for _, r := range domainResults {
		byTermDomains[r.Term] = r
	}
	byTermCounts := make(map[string]serp.Count, len(counts))
	for _, c := range counts {
		byTermCounts[c.Term] = c
	}

	records := make([]Record, 0, len(related))
	for _, t := range related {
		rec := Record{
			Keyword:          req.Keyword,
			TrendQuery:       t.Query,
			TrendValue:       t.Value,
			SuggestedDomains: []string{},
		}
		if d, ok := byTermDomains[t.Query]; ok {
			if d.Err != nil {
				rec.DomainError = d.Err.Error()
			} else if d.Domains != nil {
				rec.SuggestedDomains = d.Domains
			}
		}
		if c, ok := byTermCounts[t.Query]; ok {
			if c.Err != nil {
				rec.CountError = c.Err.Error()
			}
			rec.ResultCount = c.Value
		}
		rec.NicheScore = NicheScore(rec.ResultCount, t.Value)
		records = append(records, rec)
	}

	res = &Result{
		RunID:    runID,
		Keyword:  req.Keyword,
		Records:  records,
		Duration: time.Since(start),
	}
	logger.Info("search complete", "records", len(records), "duration", res.Duration)
	return res, nil
}

// NicheScore is floor(count / value / 10000). It is nil when the count is
// missing or zero, or the trend value is zero.
func NicheScore(count *int64, value float64) *int64 {
	if count == nil || *count == 0 || value == 0 {
		return nil
	}
	score := int64(math.Floor(float64(*count) / value / 10000))
	return &score
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
