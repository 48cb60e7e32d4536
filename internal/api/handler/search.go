package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/settings"
)

// SearchHandler handles interactive search.
type SearchHandler struct {
	searcher Searcher
	settings SettingsService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searcher: search service instance.
//   - settingsService: source of the default search options.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searcher Searcher, settingsService SettingsService) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		settings: settingsService,
	}
}

// Search handles GET /api/v1/search. Query parameters override the stored
// search settings: q, categories, purity, min_resolution, ratios, sorting, limit.
func (h *SearchHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		respondError(c, "Failed to load settings: ", err)
		return
	}
	opts := snap.SearchOptions()

	overrides := []struct {
		param string
		key   string
		dst   *string
	}{
		{"q", settings.KeySearchQuery, &opts.Query},
		{"categories", settings.KeySearchCategories, &opts.Categories},
		{"purity", settings.KeySearchPurity, &opts.Purity},
		{"min_resolution", settings.KeySearchMinResolution, &opts.MinResolution},
		{"sorting", settings.KeySearchSorting, &opts.Sorting},
	}
	for _, o := range overrides {
		v, ok := c.GetQuery(o.param)
		if !ok {
			continue
		}
		if err := settings.Validate(o.key, v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		*o.dst = v
	}

	if raw, ok := c.GetQuery("ratios"); ok {
		if err := settings.Validate(settings.KeySearchRatios, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts.Ratios = nil
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				opts.Ratios = append(opts.Ratios, r)
			}
		}
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		opts.Limit = n
	}

	result, err := h.searcher.Search(ctx, opts)
	if err != nil {
		respondError(c, "Search failed: ", err)
		return
	}

	c.JSON(http.StatusOK, result)
}
