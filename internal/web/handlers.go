package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FranksOps/nichescout/internal/pipeline"
	"github.com/FranksOps/nichescout/internal/storage"
)

const dateLayout = "2006-01-02"

type searchForm struct {
	Query     string
	StartTime string
	EndTime   string
	Geo       string
}

type indexPage struct {
	Title  string
	Form   searchForm
	Result *pipeline.Result
}

type savedPage struct {
	Title   string
	Results []storage.SavedSearch
}

func (s *Server) defaultForm() searchForm {
	now := s.now()
	return searchForm{
		StartTime: now.AddDate(-1, 0, 0).Format(dateLayout),
		EndTime:   now.Format(dateLayout),
		Geo:       "US",
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", indexPage{Title: "Search", Form: s.defaultForm()})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about.html", struct{ Title string }{"About"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	form := s.defaultForm()
	form.Query = strings.TrimSpace(r.FormValue("searchQuery"))
	if v := r.FormValue("startTime"); v != "" {
		form.StartTime = v
	}
	if v := r.FormValue("endTime"); v != "" {
		form.EndTime = v
	}
	if v := strings.TrimSpace(r.FormValue("geo")); v != "" {
		form.Geo = strings.ToUpper(v)
	}

	if form.Query == "" {
		s.renderError(w, r, http.StatusBadRequest, "Enter a keyword to search for.")
		return
	}
	start, err := time.Parse(dateLayout, form.StartTime)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Start date must look like 2006-01-02.")
		return
	}
	end, err := time.Parse(dateLayout, form.EndTime)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "End date must look like 2006-01-02.")
		return
	}
	if end.Before(start) {
		s.renderError(w, r, http.StatusBadRequest, "End date must not be before the start date.")
		return
	}

	res, err := s.searcher.Search(r.Context(), pipeline.Request{
		Keyword: form.Query,
		Start:   start,
		End:     end,
		Geo:     form.Geo,
	})
	if err != nil {
		s.logger.Error("search failed", "keyword", form.Query, "err", err)
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong while researching that keyword.")
		return
	}

	s.render(w, r, http.StatusOK, "index.html", indexPage{Title: "Results", Form: form, Result: res})
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing saved searches failed", "err", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not load saved results.")
		return
	}
	s.render(w, r, http.StatusOK, "saved.html", savedPage{Title: "Saved results", Results: rows})
}

// handleSave stores a researched term. The saved keyword is the related
// trend query, not the keyword the user originally typed.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.FormValue("googleTrendQuery"))
	if keyword == "" {
		s.renderError(w, r, http.StatusBadRequest, "Nothing to save.")
		return
	}
	count, err := optionalInt(r.FormValue("scraperNum"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Result count must be a number.")
		return
	}
	score, err := optionalInt(r.FormValue("nicheScore"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Niche score must be a number.")
		return
	}

	search := &storage.SavedSearch{Keyword: keyword, ResultCount: count, NicheScore: score}
	if _, err := s.store.Save(r.Context(), search); err != nil {
		s.logger.Error("saving search failed", "keyword", keyword, "err", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not save that result.")
		return
	}
	s.logger.Info("saved search", "id", search.ID, "keyword", keyword)
	http.Redirect(w, r, "/saved-results", http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := storage.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Unknown saved result.")
		return
	}

	n, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("deleting saved search failed", "id", id, "err", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not delete that result.")
		return
	}
	s.logger.Info("deleted saved search", "id", id, "rows", n)
	http.Redirect(w, r, "/saved-results", http.StatusSeeOther)
}

var errNotNumber = errors.New("not a number")

// optionalInt parses a form number. Blank and the placeholders a rendered
// absent value can round-trip as map to nil.
func optionalInt(v string) (*int64, error) {
	v = strings.TrimSpace(v)
	switch v {
	case "", "-", "null", "NaN":
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
	if err != nil {
		return nil, errNotNumber
	}
	return &n, nil
}
