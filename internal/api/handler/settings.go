package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/settings"
)

// SettingsHandler reads and updates user settings.
type SettingsHandler struct {
	settings SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settingsService SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settingsService}
}

// UpdateSettingRequest carries the new raw value.
type UpdateSettingRequest struct {
	Value *string `json:"value" binding:"required"`
}

// GetSettings handles GET /api/v1/settings.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load settings: ", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": all})
}

// UpdateSetting handles PUT /api/v1/settings/:key.
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.settings.Set(ctx, key, *req.Value); err != nil {
		logger.CtxWarn(ctx, "Rejected setting update: key=%s, error=%v", key, err)
		respondError(c, "", err)
		return
	}

	value, err := h.settings.Get(ctx, key)
	if err != nil {
		respondError(c, "", err)
		return
	}
	if key == settings.KeySearchAPIKey {
		value = settings.MaskSecret(value)
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}
