package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return db
}

func TestInitDB_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf, ServiceName: "test"})

	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite3",
		Path:        filepath.Join(t.TempDir(), "nested", "test.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}, log)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	out := buf.String()
	if !strings.Contains(out, "Initializing database") || !strings.Contains(out, "defaulting to SQLite") {
		t.Errorf("expected connection messages on the injected logger, got: %s", out)
	}
	if !strings.Contains(out, `"component":"db"`) {
		t.Errorf("expected the db component field, got: %s", out)
	}
}

func TestCatalogStore_MissingFile(t *testing.T) {
	s := NewCatalogStore(filepath.Join(t.TempDir(), "nested"))
	c := s.Read(context.Background())
	if c.Feed == nil || c.Favorites == nil || len(c.Feed) != 0 || len(c.Favorites) != 0 {
		t.Errorf("expected empty initialized catalog, got %+v", c)
	}
	if c.LastSyncAt != nil || c.LastError != "" {
		t.Errorf("expected zero metadata, got %+v", c)
	}
}

func TestCatalogStore_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{"{not json", `[]`, `{"feed": "oops"}`} {
		if err := os.WriteFile(filepath.Join(dir, CatalogFileName), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		c := NewCatalogStore(dir).Read(context.Background())
		if len(c.Feed) != 0 || len(c.Favorites) != 0 {
			t.Errorf("%q: expected empty catalog, got %+v", body, c)
		}
	}
}

func TestCatalogStore_WriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	s := NewCatalogStore(dir)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	in := domain.EmptyCatalog()
	in.Feed = []domain.CachedImage{{ID: "a", SourceURL: "https://x/a.jpg", LocalPath: "/c/a.jpg", Tags: []string{"sky"}, FetchedAt: now}}
	in.Favorites = []domain.CachedImage{{ID: "b", LocalPath: "/c/b.jpg", FetchedAt: now}}
	in.LastSyncAt = &now
	in.Mapping = map[string][]string{"main": {"/c/a.jpg"}}
	in.LastError = "boom"

	if err := s.Write(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := s.Read(context.Background())
	if len(out.Feed) != 1 || out.Feed[0].ID != "a" || out.Feed[0].Tags[0] != "sky" {
		t.Errorf("unexpected feed: %+v", out.Feed)
	}
	if out.LastSyncAt == nil || !out.LastSyncAt.Equal(now) {
		t.Errorf("expected lastSyncAt %s, got %v", now, out.LastSyncAt)
	}
	if out.Mapping["main"][0] != "/c/a.jpg" || out.LastError != "boom" {
		t.Errorf("unexpected metadata: %+v", out)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != CatalogFileName {
		t.Errorf("expected only %s in dir, got %v", CatalogFileName, entries)
	}
}

func TestCatalogStore_JSONKeys(t *testing.T) {
	dir := t.TempDir()
	s := NewCatalogStore(dir)
	now := time.Now()
	c := domain.EmptyCatalog()
	c.LastSyncAt = &now
	c.NextScheduledAt = &now
	c.Mapping = map[string][]string{}
	c.LastError = "x"
	if err := s.Write(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"feed"`, `"favorites"`, `"lastSyncAt"`, `"nextScheduledAt"`, `"lastError"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected key %s in %s", key, data)
		}
	}
}

func TestSettingRepository(t *testing.T) {
	repo := NewSettingRepository(newTestDB(t))
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "sync.limit"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := repo.Set(ctx, "sync.limit", "24"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Set(ctx, "sync.limit", "48"); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}
	v, ok, err := repo.Get(ctx, "sync.limit")
	if err != nil || !ok || v != "48" {
		t.Errorf("expected 48, got %q ok=%v err=%v", v, ok, err)
	}

	if err := repo.Set(ctx, "search.query", ""); err != nil {
		t.Fatal(err)
	}
	all, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Key != "search.query" {
		t.Errorf("expected 2 ordered settings, got %+v", all)
	}
}

func TestSyncRunRepository(t *testing.T) {
	repo := NewSyncRunRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		run := &domain.SyncRun{ID: id, Trigger: domain.SyncTriggerScheduled, Status: domain.SyncStatusRunning, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	done := base.Add(3 * time.Hour)
	if err := repo.Update(ctx, &domain.SyncRun{ID: "r3", Trigger: domain.SyncTriggerScheduled, Status: domain.SyncStatusCompleted, Added: 5, StartedAt: base.Add(2 * time.Hour), CompletedAt: &done}); err != nil {
		t.Fatal(err)
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Fatalf("expected r3, r2; got %+v", runs)
	}
	if runs[0].Status != domain.SyncStatusCompleted || runs[0].Added != 5 {
		t.Errorf("expected updated run, got %+v", runs[0])
	}
}
