package handler

import (
	"context"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/service"
	"github.com/timmy/wallfeed/internal/settings"
)

// CatalogService is the catalog surface used by the handlers.
type CatalogService interface {
	Snapshot(ctx context.Context) domain.Catalog
	Items(ctx context.Context, collectionID string) ([]domain.CachedImage, error)
	Favorite(ctx context.Context, id string) (domain.CachedImage, error)
	FavoriteURL(ctx context.Context, url string) (domain.CachedImage, error)
	Unfavorite(ctx context.Context, id string) error
}

// SyncRunner starts sync runs.
type SyncRunner interface {
	Run(ctx context.Context, trigger domain.SyncTrigger) (*service.SyncResult, error)
	Running() bool
}

// RunLister lists recorded sync runs.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// Searcher runs interactive searches.
type Searcher interface {
	Search(ctx context.Context, opts domain.SearchOptions) (*service.SearchResult, error)
}

// RotationController drives the rotation scheduler.
type RotationController interface {
	Status(ctx context.Context) (service.RotationStatus, error)
	SetEnabledCollection(ctx context.Context, collectionID string) error
	HandleBoundary(ctx context.Context) (service.BoundaryOutcome, error)
}

// SettingsService reads and writes user settings.
type SettingsService interface {
	All(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}
