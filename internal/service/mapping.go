package service

import (
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/settings"
)

// BuildMapping assigns paths to surfaces. In shared mode every surface gets
// the same list; in perSurface mode surface i gets the list rotated left by i
// so neighbouring surfaces start on different images.
func BuildMapping(paths, surfaces []string, mode string) map[string][]string {
	mapping := make(map[string][]string, len(surfaces))
	for i, surface := range surfaces {
		if mode == settings.MappingPerSurface {
			mapping[surface] = rotateLeft(paths, i)
		} else {
			mapping[surface] = append([]string{}, paths...)
		}
	}
	return mapping
}

func rotateLeft(paths []string, n int) []string {
	out := make([]string, 0, len(paths))
	if len(paths) == 0 {
		return out
	}
	n %= len(paths)
	out = append(out, paths[n:]...)
	return append(out, paths[:n]...)
}

// activePool returns the pool applied after a sync for the given mode.
func activePool(c domain.Catalog, mode string) []domain.CachedImage {
	if mode == settings.ModeFavorites {
		return c.Favorites
	}
	return c.Feed
}

func localPaths(images []domain.CachedImage) []string {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		if img.LocalPath != "" {
			paths = append(paths, img.LocalPath)
		}
	}
	return paths
}
