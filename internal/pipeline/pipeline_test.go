package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/FranksOps/nichescout/internal/domains"
	"github.com/FranksOps/nichescout/internal/serp"
	"github.com/FranksOps/nichescout/internal/trends"
)

type fakeTrends struct {
	terms []trends.TrendTerm
	err   error
	got   trends.Query
}

func (f *fakeTrends) Lookup(ctx context.Context, q trends.Query) ([]trends.TrendTerm, error) {
	f.got = q
	return f.terms, f.err
}

type fakeDomains struct{ calls [][]string }

// Answers in reverse order so the join cannot rely on position.
func (f *fakeDomains) Lookup(ctx context.Context, terms []string) []domains.Result {
	f.calls = append(f.calls, terms)
	out := make([]domains.Result, 0, len(terms))
	for i := len(terms) - 1; i >= 0; i-- {
		r := domains.Result{Term: terms[i], Domains: []string{terms[i] + ".com"}}
		if terms[i] == "term-2" {
			r = domains.Result{Term: terms[i], Err: errors.New("domainsdb down")}
		}
		out = append(out, r)
	}
	return out
}

type fakeCounter struct{ calls [][]string }

func (f *fakeCounter) Counts(ctx context.Context, terms []string) []serp.Count {
	f.calls = append(f.calls, terms)
	out := make([]serp.Count, len(terms))
	for i, term := range terms {
		n := int64(100000 * (i + 1))
		out[i] = serp.Count{Term: term, Value: &n}
		if term == "term-3" {
			out[i] = serp.Count{Term: term, Err: serp.ErrUnparsableCount}
		}
	}
	return out
}

func sixTerms() []trends.TrendTerm {
	terms := make([]trends.TrendTerm, 6)
	for i := range terms {
		terms[i] = trends.TrendTerm{Query: fmt.Sprintf("term-%d", i), Value: 5}
	}
	return terms
}

func TestSearch_JoinsTopFive(t *testing.T) {
	tr := &fakeTrends{terms: sixTerms()}
	dl := &fakeDomains{}
	rc := &fakeCounter{}
	p := &Pipeline{Trends: tr, Domains: dl, Counter: rc}

	res, err := p.Search(context.Background(), Request{Keyword: "coffee", Geo: "us"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}
	if tr.got.Keyword != "coffee" || tr.got.Geo != "us" {
		t.Errorf("unexpected trend query %+v", tr.got)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(res.Records))
	}
	if len(dl.calls) != 1 || len(dl.calls[0]) != 5 || len(rc.calls) != 1 || len(rc.calls[0]) != 5 {
		t.Fatalf("expected one batch of 5 terms to each lookup, got %v / %v", dl.calls, rc.calls)
	}

	for i, rec := range res.Records {
		want := fmt.Sprintf("term-%d", i)
		if rec.TrendQuery != want || rec.Keyword != "coffee" {
			t.Errorf("record %d: expected %s for coffee, got %+v", i, want, rec)
		}
	}

	first := res.Records[0]
	if len(first.SuggestedDomains) != 1 || first.SuggestedDomains[0] != "term-0.com" {
		t.Errorf("expected domains joined by term, got %v", first.SuggestedDomains)
	}
	if first.ResultCount == nil || *first.ResultCount != 100000 {
		t.Errorf("expected count 100000, got %v", first.ResultCount)
	}
	if first.NicheScore == nil || *first.NicheScore != 2 {
		t.Errorf("expected niche score 2, got %v", first.NicheScore)
	}

	if rec := res.Records[2]; rec.DomainError == "" || len(rec.SuggestedDomains) != 0 {
		t.Errorf("expected domain failure carried on record, got %+v", rec)
	}
	if rec := res.Records[3]; rec.CountError == "" || rec.ResultCount != nil || rec.NicheScore != nil {
		t.Errorf("expected count failure carried on record, got %+v", rec)
	}
	if rec := res.Records[4]; rec.ResultCount == nil || *rec.ResultCount != 500000 {
		t.Errorf("expected other records unaffected, got %+v", rec)
	}
}

func TestSearch_TrendFailure(t *testing.T) {
	boom := errors.New("trends down")
	p := &Pipeline{Trends: &fakeTrends{err: boom}, Domains: &fakeDomains{}, Counter: &fakeCounter{}}

	res, err := p.Search(context.Background(), Request{Keyword: "coffee"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected trend error, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
}

func TestSearch_NoTerms(t *testing.T) {
	p := &Pipeline{Trends: &fakeTrends{terms: []trends.TrendTerm{}}, Domains: &fakeDomains{}, Counter: &fakeCounter{}}

	res, err := p.Search(context.Background(), Request{Keyword: "zzz"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected no records, got %d", len(res.Records))
	}
}

func TestSearch_EmptyKeyword(t *testing.T) {
	p := &Pipeline{}
	if _, err := p.Search(context.Background(), Request{Keyword: "  "}); !errors.Is(err, ErrEmptyKeyword) {
		t.Fatalf("expected ErrEmptyKeyword, got %v", err)
	}
}

func TestNicheScore(t *testing.T) {
	n := int64(100000)
	if got := NicheScore(&n, 5); got == nil || *got != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	n = 1234567
	if got := NicheScore(&n, 3); got == nil || *got != 41 {
		t.Errorf("expected floor to 41, got %v", got)
	}

	if got := NicheScore(nil, 5); got != nil {
		t.Errorf("expected nil for missing count, got %v", *got)
	}
	zero := int64(0)
	if got := NicheScore(&zero, 5); got != nil {
		t.Errorf("expected nil for zero count, got %v", *got)
	}
	if got := NicheScore(&n, 0); got != nil {
		t.Errorf("expected nil for zero trend value, got %v", *got)
	}
}
