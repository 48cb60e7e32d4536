package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
)

// CatalogFileName is the snapshot file inside the catalog root.
const CatalogFileName = "catalog.json"

// CatalogStore persists the catalog as a single JSON snapshot.
type CatalogStore struct {
	root string
}

// NewCatalogStore creates a store rooted at dir.
func NewCatalogStore(root string) *CatalogStore {
	return &CatalogStore{root: root}
}

// Path returns the snapshot file path.
func (s *CatalogStore) Path() string {
	return filepath.Join(s.root, CatalogFileName)
}

// Read loads the catalog. A missing or unreadable snapshot yields an empty
// catalog rather than an error.
func (s *CatalogStore) Read(ctx context.Context) domain.Catalog {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.FromContext(ctx).WithError(err).Warn("Failed to read catalog, starting empty")
		}
		return domain.EmptyCatalog()
	}

	var c domain.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Malformed catalog, starting empty")
		return domain.EmptyCatalog()
	}
	if c.Feed == nil {
		c.Feed = []domain.CachedImage{}
	}
	if c.Favorites == nil {
		c.Favorites = []domain.CachedImage{}
	}
	return c
}

// Write replaces the snapshot atomically.
func (s *CatalogStore) Write(ctx context.Context, c domain.Catalog) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create catalog dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, "."+CatalogFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"feed":      len(c.Feed),
		"favorites": len(c.Favorites),
	}).Debug("Catalog written")
	return nil
}
