package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/nichescout/internal/pipeline"
	"github.com/FranksOps/nichescout/internal/storage"
	"github.com/FranksOps/nichescout/internal/storage/sqlite"
)

type fakeSearcher struct {
	got pipeline.Request
	res *pipeline.Result
	err error
}

func (f *fakeSearcher) Search(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.got = req
	return f.res, f.err
}

type failingStore struct{ storage.Backend }

func (failingStore) Save(ctx context.Context, s *storage.SavedSearch) (int64, error) {
	return 0, errors.New("disk full")
}
func (failingStore) List(ctx context.Context) ([]storage.SavedSearch, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Delete(ctx context.Context, id int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func ptr(n int64) *int64 { return &n }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, searcher Searcher, store storage.Backend) http.Handler {
	t.Helper()
	if store == nil {
		b, err := sqlite.New("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		t.Cleanup(func() { _ = b.Close() })
		store = b
	}
	s, err := New(searcher, store, quietLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) }
	return s.Routes()
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndex(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	rec := get(h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="searchQuery"`) {
		t.Error("expected search form")
	}
	if !strings.Contains(body, `value="2023-06-30"`) || !strings.Contains(body, `value="2024-06-30"`) {
		t.Error("expected default one-year date range")
	}
}

func TestAboutAndStatic(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	if rec := get(h, "/about"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "niche score") {
		t.Errorf("expected about page, got %d", rec.Code)
	}
	if rec := get(h, "/static/style.css"); rec.Code != http.StatusOK {
		t.Errorf("expected stylesheet, got %d", rec.Code)
	}
	if rec := get(h, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("expected metrics, got %d", rec.Code)
	}
	if rec := get(h, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{res: &pipeline.Result{
		RunID:   "run-1",
		Keyword: "coffee",
		Records: []pipeline.Record{
			{Keyword: "coffee", TrendQuery: "coffee grinder", TrendValue: 100, ResultCount: ptr(2500000), NicheScore: ptr(2), SuggestedDomains: []string{"coffeegrinder.com", "grindcoffee.net"}},
			{Keyword: "coffee", TrendQuery: "coffee maker", TrendValue: 50, CountError: "serp: blocked by Google", SuggestedDomains: []string{}},
		},
	}}
	h := newTestServer(t, searcher, nil)

	rec := postForm(h, "/search", url.Values{
		"searchQuery": {"coffee"},
		"startTime":   {"2024-01-01"},
		"endTime":     {"2024-06-01"},
		"geo":         {"us"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if searcher.got.Keyword != "coffee" || searcher.got.Geo != "US" {
		t.Errorf("unexpected request %+v", searcher.got)
	}
	if !searcher.got.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", searcher.got.Start)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"coffee grinder",
		"2500000",
		"coffeegrinder.com, grindcoffee.net",
		`name="googleTrendQuery" value="coffee maker"`,
		"unavailable",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
}

func TestSearch_Failures(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{err: errors.New("trends down")}, nil)

	rec := postForm(h, "/search", url.Values{"searchQuery": {"coffee"}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on trend failure, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "trends down") {
		t.Error("expected generic error page without internal details")
	}

	if rec := postForm(h, "/search", url.Values{"searchQuery": {" "}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty keyword, got %d", rec.Code)
	}
	if rec := postForm(h, "/search", url.Values{"searchQuery": {"coffee"}, "startTime": {"June"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestSearch_InvertedWindow(t *testing.T) {
	searcher := &fakeSearcher{res: &pipeline.Result{}}
	h := newTestServer(t, searcher, nil)

	rec := postForm(h, "/search", url.Values{
		"searchQuery": {"coffee"},
		"startTime":   {"2024-06-01"},
		"endTime":     {"2024-01-01"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when end precedes start, got %d", rec.Code)
	}
	if searcher.got.Keyword != "" {
		t.Errorf("expected searcher not to run, got request for %q", searcher.got.Keyword)
	}

	rec = postForm(h, "/search", url.Values{
		"searchQuery": {"coffee"},
		"startTime":   {"2024-06-01"},
		"endTime":     {"2024-06-01"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a single-day window, got %d", rec.Code)
	}
}

func TestSaveListDelete(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	ideam := url.Values{
		"keyword":          {"coffee"},
		"googleTrendQuery": {"coffee grinder"},
		"scraperNum":       {"2500000"},
		"nicheScore":       {"2"},
		"suggestedDomain":  {"coffeegrinder.com"},
	}
	for i := 0; i < 2; i++ {
		rec := postForm(h, "/save", ideam)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/saved-results" {
			t.Fatalf("save %d: expected redirect to /saved-results, got %d %s", i, rec.Code, rec.Header().Get("Location"))
		}
	}
	unscored := url.Values{"keyword": {"coffee"}, "googleTrendQuery": {"coffee maker"}, "scraperNum": {"-"}, "nicheScore": {"-"}}
	if rec := postForm(h, "/save", unscored); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}

	rec := get(h, "/saved-results")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "<td>coffee grinder</td>"); n != 2 {
		t.Errorf("expected duplicate saves to create two rows, got %d", n)
	}
	if strings.Contains(body, "<td>coffee</td>") {
		t.Error("expected the trend query, not the typed keyword, to be saved")
	}
	if strings.Index(body, "coffee grinder") > strings.Index(body, "coffee maker") {
		t.Error("expected scored rows before unscored ones")
	}

	for i := 0; i < 2; i++ {
		rec := postForm(h, "/save/1", url.Values{"_method": {"DELETE"}})
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/saved-results" {
			t.Fatalf("delete %d: expected redirect, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/save/2", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect for native DELETE, got %d", rec.Code)
	}

	body = get(h, "/saved-results").Body.String()
	if strings.Contains(body, "coffee grinder") || !strings.Contains(body, "coffee maker") {
		t.Errorf("expected only the unscored row to remain")
	}
}

func TestSave_BadInput(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	if rec := postForm(h, "/save", url.Values{"scraperNum": {"5"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without googleTrendQuery, got %d", rec.Code)
	}
	if rec := postForm(h, "/save", url.Values{"googleTrendQuery": {"x"}, "nicheScore": {"high"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric score, got %d", rec.Code)
	}
}

func TestDelete_BadID(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	rec := postForm(h, "/save/abc", url.Values{"_method": {"delete"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestDelete_MissingIDRedirects(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, nil)

	for _, path := range []string{"/save/0", "/save/-7", "/save/404"} {
		rec := postForm(h, path, url.Values{"_method": {"DELETE"}})
		if rec.Code != http.StatusSeeOther {
			t.Errorf("%s: expected 303, got %d", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/saved-results" {
			t.Errorf("%s: expected redirect to /saved-results, got %q", path, loc)
		}
	}
}

func TestStoreErrors(t *testing.T) {
	h := newTestServer(t, &fakeSearcher{}, failingStore{})

	if rec := get(h, "/saved-results"); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on list failure, got %d", rec.Code)
	}
	if rec := postForm(h, "/save", url.Values{"googleTrendQuery": {"x"}}); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on save failure, got %d", rec.Code)
	}
	if rec := postForm(h, "/save/3", url.Values{"_method": {"DELETE"}}); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on delete failure, got %d", rec.Code)
	}
}

func TestOptionalInt(t *testing.T) {
	if v, err := optionalInt("1,234"); err != nil || v == nil || *v != 1234 {
		t.Errorf("expected 1234, got %v (%v)", v, err)
	}
	for _, blank := range []string{"", "-", "null", "NaN"} {
		if v, err := optionalInt(blank); err != nil || v != nil {
			t.Errorf("expected nil for %q, got %v (%v)", blank, v, err)
		}
	}
	if _, err := optionalInt("ten"); err == nil {
		t.Error("expected error for non-number")
	}
}
