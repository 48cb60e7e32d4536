package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/logger"
)

// CatalogHandler serves the catalog and favorites endpoints.
type CatalogHandler struct {
	catalog CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// FavoriteRequest adds a favorite either by catalog id or by image URL.
type FavoriteRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GetCatalog handles GET /api/v1/catalog. With ?collection= it returns only
// that collection's items.
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	ctx := c.Request.Context()

	if collection := c.Query("collection"); collection != "" {
		items, err := h.catalog.Items(ctx, collection)
		if err != nil {
			respondError(c, "", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"collection": collection,
			"items":      items,
			"total":      len(items),
		})
		return
	}

	c.JSON(http.StatusOK, h.catalog.Snapshot(ctx))
}

// AddFavorite handles POST /api/v1/favorites.
func (h *CatalogHandler) AddFavorite(c *gin.Context) {
	ctx := c.Request.Context()

	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.URL = strings.TrimSpace(req.URL)

	switch {
	case req.ID != "" && req.URL != "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide either id or url, not both"})
	case req.ID != "":
		img, err := h.catalog.Favorite(ctx, req.ID)
		if err != nil {
			respondError(c, "Failed to add favorite: ", err)
			return
		}
		c.JSON(http.StatusOK, img)
	case req.URL != "":
		if !validImageURL(req.URL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) URL"})
			return
		}
		img, err := h.catalog.FavoriteURL(ctx, req.URL)
		if err != nil {
			logger.CtxWarn(ctx, "Favorite by URL failed: url=%s, error=%v", req.URL, err)
			respondError(c, "Failed to add favorite: ", err)
			return
		}
		c.JSON(http.StatusCreated, img)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or url is required"})
	}
}

// RemoveFavorite handles DELETE /api/v1/favorites/:id.
func (h *CatalogHandler) RemoveFavorite(c *gin.Context) {
	id := c.Param("id")
	if err := h.catalog.Unfavorite(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to remove favorite: ", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
