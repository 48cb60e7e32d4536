package domain

import "time"

// Collection identifiers exposed for rotation.
const (
	CollectionFeed      = "feed"
	CollectionFavorites = "favorites"
)

// Catalog is the persisted state of both image pools.
type Catalog struct {
	Feed            []CachedImage       `json:"feed"`
	Favorites       []CachedImage       `json:"favorites"`
	LastSyncAt      *time.Time          `json:"lastSyncAt,omitempty"`
	NextScheduledAt *time.Time          `json:"nextScheduledAt,omitempty"`
	Mapping         map[string][]string `json:"mapping,omitempty"`
	LastError       string              `json:"lastError,omitempty"`
}

// EmptyCatalog returns a catalog with both pools initialized.
func EmptyCatalog() Catalog {
	return Catalog{
		Feed:      []CachedImage{},
		Favorites: []CachedImage{},
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c Catalog) Clone() Catalog {
	out := c
	out.Feed = cloneImages(c.Feed)
	out.Favorites = cloneImages(c.Favorites)
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		out.LastSyncAt = &t
	}
	if c.NextScheduledAt != nil {
		t := *c.NextScheduledAt
		out.NextScheduledAt = &t
	}
	if c.Mapping != nil {
		out.Mapping = make(map[string][]string, len(c.Mapping))
		for k, v := range c.Mapping {
			out.Mapping[k] = append([]string(nil), v...)
		}
	}
	return out
}

// IsFavorite reports whether id is in the favorites pool.
func (c Catalog) IsFavorite(id string) bool {
	for _, img := range c.Favorites {
		if img.ID == id {
			return true
		}
	}
	return false
}

// References reports whether any pool still points at localPath.
func (c Catalog) References(localPath string) bool {
	for _, img := range c.Feed {
		if img.LocalPath == localPath {
			return true
		}
	}
	for _, img := range c.Favorites {
		if img.LocalPath == localPath {
			return true
		}
	}
	return false
}

func cloneImages(in []CachedImage) []CachedImage {
	out := make([]CachedImage, len(in))
	for i, img := range in {
		img.Tags = append([]string(nil), img.Tags...)
		out[i] = img
	}
	return out
}

// RotationState tracks the daily collection rotation.
// LastRotationDate is a local calendar date (YYYY-MM-DD).
type RotationState struct {
	EnabledCollectionID         string `json:"enabled_collection_id"`
	LastRotationDate            string `json:"last_rotation_date"`
	PendingRotationCollectionID string `json:"pending_rotation_collection_id"`
}
