// Package web serves the nichescout HTML interface.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/FranksOps/nichescout/internal/metrics"
	"github.com/FranksOps/nichescout/internal/pipeline"
	"github.com/FranksOps/nichescout/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Searcher runs keyword research. *pipeline.Pipeline satisfies it.
type Searcher interface {
	Search(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	searcher Searcher
	store    storage.Backend
	logger   *slog.Logger
	pages    map[string]*template.Template
	now      func() time.Time
}

var pageNames = []string{"index.html", "about.html", "saved.html", "error.html"}

var funcs = template.FuncMap{
	"optional": func(p *int64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	},
	"join": strings.Join,
}

// New parses the embedded templates.
func New(searcher Searcher, store storage.Backend, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Server{
		searcher: searcher,
		store:    store,
		logger:   logger,
		pages:    pages,
		now:      time.Now,
	}, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embedded directory always exists
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())
	r.Use(methodOverride)

	r.Get("/", s.handleIndex)
	r.Post("/search", s.handleSearch)
	r.Get("/about", s.handleAbout)
	r.Get("/saved-results", s.handleSaved)
	r.Post("/save", s.handleSave)
	r.Delete("/save/{id}", s.handleDelete)
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "Page not found.")
	})
	return r
}

// render executes a page into a buffer first so template failures still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("template failed", "page", page, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Title   string
	Status  int
	Message string
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error.html", errorPage{Title: "Error", Status: status, Message: msg})
}

// methodOverride lets HTML forms issue DELETE via a hidden _method field.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if m := strings.ToUpper(r.PostFormValue("_method")); m == http.MethodDelete {
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one log line per request.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"latency", time.Since(start),
			)
		})
	}
}
