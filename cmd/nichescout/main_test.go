package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/nichescout/internal/config"
	"github.com/FranksOps/nichescout/internal/storage"
)

func TestSearchOpts_Request(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	req, err := searchOpts{geo: "US"}.request("coffee", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Start.Equal(time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)) || !req.End.Equal(now) {
		t.Errorf("expected one-year default window, got %s - %s", req.Start, req.End)
	}

	req, err = searchOpts{start: "2024-01-01", end: "2024-02-01"}.request("coffee", now)
	if err != nil || req.Start.Month() != time.January || req.End.Month() != time.February {
		t.Errorf("unexpected window %s - %s (%v)", req.Start, req.End, err)
	}

	if _, err := (searchOpts{start: "Jan 1"}).request("coffee", now); err == nil {
		t.Error("expected error for malformed start")
	}
	if _, err := (searchOpts{start: "2024-03-01", end: "2024-02-01"}).request("coffee", now); err == nil {
		t.Error("expected error for inverted window")
	}
}

func TestSearchCmd_RejectsBadInput(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	root.SetArgs([]string{"search", "coffee", "--start", "yesterday", "--env-file", filepath.Join(t.TempDir(), ".env")})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--start") {
		t.Errorf("expected --start error, got %v", err)
	}

	root = newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"search", "coffee", "--format", "xml", "--env-file", filepath.Join(t.TempDir(), ".env")})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	v := config.New()
	v.Set(config.KeyStoreDriver, config.DriverSQLite)
	v.Set(config.KeySQLitePath, filepath.Join(t.TempDir(), "nichescout.db"))
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if _, err := store.Save(context.Background(), &storage.SavedSearch{Keyword: "coffee"}); err != nil {
		t.Errorf("unexpected save error: %v", err)
	}
}

func TestOpenStore_MissingDSN(t *testing.T) {
	v := config.New()
	v.Set(config.KeyStoreDriver, config.DriverPostgres)
	v.Set(config.KeyDatabaseURL, "")
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
}

func TestBuildPipeline_HTTPRenderer(t *testing.T) {
	v := config.New()
	v.Set(config.KeyRenderer, config.RendererHTTP)
	v.Set(config.KeyFingerprint, "go")
	v.Set(config.KeyRelatedLimit, 3)
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, closeFn, err := buildPipeline(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	if p.Limit != 3 || p.Trends == nil || p.Domains == nil || p.Counter == nil {
		t.Errorf("expected fully wired pipeline, got %+v", p)
	}
}

func TestBuildPipeline_BadProxiesFile(t *testing.T) {
	v := config.New()
	v.Set(config.KeyRenderer, config.RendererHTTP)
	v.Set(config.KeyProxiesFile, filepath.Join(t.TempDir(), "missing.txt"))
	cfg, _ := config.Load(v)

	if _, _, err := buildPipeline(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for missing proxies file")
	}
}
