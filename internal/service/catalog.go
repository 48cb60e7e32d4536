package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/wallfeed/internal/cache"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
)

// MergeFeed prepends fresh to the feed and drops later duplicates by id.
func MergeFeed(c domain.Catalog, fresh []domain.CachedImage) domain.Catalog {
	merged := make([]domain.CachedImage, 0, len(fresh)+len(c.Feed))
	merged = append(merged, fresh...)
	merged = append(merged, c.Feed...)
	c.Feed = dedupeByID(merged)
	return c
}

// PruneFeed shrinks the feed to max items. It repeatedly removes the item at
// the last position that is not a favorite, and stops early when every
// remaining item is a favorite.
func PruneFeed(c domain.Catalog, max int) (domain.Catalog, []domain.CachedImage) {
	if max < 0 {
		max = 0
	}
	favorites := make(map[string]bool, len(c.Favorites))
	for _, img := range c.Favorites {
		favorites[img.ID] = true
	}
	feed := append([]domain.CachedImage(nil), c.Feed...)
	var removed []domain.CachedImage

	for len(feed) > max {
		idx := -1
		for i := len(feed) - 1; i >= 0; i-- {
			if !favorites[feed[i].ID] {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		removed = append(removed, feed[idx])
		feed = append(feed[:idx], feed[idx+1:]...)
	}

	c.Feed = feed
	return c, removed
}

// AddFavorite prepends img to favorites, replacing any entry with the same id.
func AddFavorite(c domain.Catalog, img domain.CachedImage) domain.Catalog {
	favs := make([]domain.CachedImage, 0, len(c.Favorites)+1)
	favs = append(favs, img)
	favs = append(favs, c.Favorites...)
	c.Favorites = dedupeByID(favs)
	return c
}

// RemoveFavorite drops id from favorites.
func RemoveFavorite(c domain.Catalog, id string) domain.Catalog {
	favs := make([]domain.CachedImage, 0, len(c.Favorites))
	for _, img := range c.Favorites {
		if img.ID != id {
			favs = append(favs, img)
		}
	}
	c.Favorites = favs
	return c
}

func dedupeByID(images []domain.CachedImage) []domain.CachedImage {
	seen := make(map[string]bool, len(images))
	out := make([]domain.CachedImage, 0, len(images))
	for _, img := range images {
		if seen[img.ID] {
			continue
		}
		seen[img.ID] = true
		out = append(out, img)
	}
	return out
}

// CatalogPersister loads and saves whole catalog snapshots.
type CatalogPersister interface {
	Read(ctx context.Context) domain.Catalog
	Write(ctx context.Context, c domain.Catalog) error
}

// ImageFetcher downloads images into the local cache and reclaims them.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*cache.FetchResult, error)
	RemovePaths(ctx context.Context, paths []string) []error
}

// CatalogService serializes read-modify-write cycles on the catalog.
type CatalogService struct {
	store   CatalogPersister
	fetcher ImageFetcher
	logger  *logger.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewCatalogService creates a catalog service. fetcher may be nil when
// manual adds and file reclamation are not needed.
func NewCatalogService(store CatalogPersister, fetcher ImageFetcher, log *logger.Logger) *CatalogService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &CatalogService{
		store:   store,
		fetcher: fetcher,
		logger:  log,
		now:     time.Now,
	}
}

func (s *CatalogService) log(ctx context.Context) *logger.Logger {
	if logger.HasLogger(ctx) {
		return logger.FromContext(ctx)
	}
	return s.logger
}

// Snapshot returns a copy of the current catalog.
func (s *CatalogService) Snapshot(ctx context.Context) domain.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Read(ctx).Clone()
}

// Update applies fn to the current catalog and persists the result. When fn
// returns an error nothing is written.
func (s *CatalogService) Update(ctx context.Context, fn func(domain.Catalog) (domain.Catalog, error)) (domain.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.store.Read(ctx))
	if err != nil {
		return domain.Catalog{}, err
	}
	if err := s.store.Write(ctx, next); err != nil {
		return domain.Catalog{}, fmt.Errorf("failed to persist catalog: %w", err)
	}
	return next.Clone(), nil
}

// Favorite copies a feed item into favorites.
func (s *CatalogService) Favorite(ctx context.Context, id string) (domain.CachedImage, error) {
	var added domain.CachedImage
	_, err := s.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		for _, img := range c.Feed {
			if img.ID == id {
				added = img
				return AddFavorite(c, img), nil
			}
		}
		for _, img := range c.Favorites {
			if img.ID == id {
				added = img
				return c, nil
			}
		}
		return c, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	if err != nil {
		return domain.CachedImage{}, err
	}

	s.log(ctx).WithField("id", id).Info("Image added to favorites")
	return added, nil
}

// FavoriteURL downloads url through the cache and adds it to favorites.
// The download happens before the catalog is locked.
func (s *CatalogService) FavoriteURL(ctx context.Context, url string) (domain.CachedImage, error) {
	if s.fetcher == nil {
		return domain.CachedImage{}, fmt.Errorf("no image fetcher configured")
	}

	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.CachedImage{}, fmt.Errorf("failed to fetch image: %w", err)
	}

	img := domain.CachedImage{
		ID:        res.ID,
		SourceURL: url,
		LocalPath: res.LocalPath,
		Tags:      []string{},
		FetchedAt: s.now(),
		Width:     res.Width,
		Height:    res.Height,
	}
	if res.Width > 0 && res.Height > 0 {
		img.Resolution = fmt.Sprintf("%dx%d", res.Width, res.Height)
	}

	if _, err := s.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		return AddFavorite(c, img), nil
	}); err != nil {
		return domain.CachedImage{}, err
	}

	s.log(ctx).WithFields(logger.Fields{"id": img.ID, "url": url}).Info("Image added to favorites by URL")
	return img, nil
}

// Unfavorite removes id from favorites and deletes its file when neither
// pool references it any more.
func (s *CatalogService) Unfavorite(ctx context.Context, id string) error {
	var removed *domain.CachedImage
	next, err := s.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		for _, img := range c.Favorites {
			if img.ID == id {
				img := img
				removed = &img
				return RemoveFavorite(c, id), nil
			}
		}
		return c, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	if err != nil {
		return err
	}

	if removed.LocalPath != "" && !next.References(removed.LocalPath) && s.fetcher != nil {
		for _, e := range s.fetcher.RemovePaths(ctx, []string{removed.LocalPath}) {
			s.log(ctx).WithError(e).Warn("Failed to reclaim unfavorited image")
		}
	}

	s.log(ctx).WithField("id", id).Info("Image removed from favorites")
	return nil
}

// Items returns the images of a collection.
func (s *CatalogService) Items(ctx context.Context, collectionID string) ([]domain.CachedImage, error) {
	c := s.Snapshot(ctx)
	switch collectionID {
	case domain.CollectionFeed:
		return c.Feed, nil
	case domain.CollectionFavorites:
		return c.Favorites, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collectionID)
	}
}
