package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/logger"
)

// RotationHandler exposes the rotation scheduler.
type RotationHandler struct {
	rotation RotationController
}

// NewRotationHandler creates a new rotation handler.
func NewRotationHandler(rotation RotationController) *RotationHandler {
	return &RotationHandler{rotation: rotation}
}

// SetRotationRequest selects the collection to rotate. An empty id disables rotation.
type SetRotationRequest struct {
	CollectionID *string `json:"collection_id" binding:"required"`
}

// GetRotation handles GET /api/v1/rotation.
func (h *RotationHandler) GetRotation(c *gin.Context) {
	status, err := h.rotation.Status(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load rotation state: ", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SetRotation handles PUT /api/v1/rotation.
func (h *RotationHandler) SetRotation(c *gin.Context) {
	ctx := c.Request.Context()

	var req SetRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.rotation.SetEnabledCollection(ctx, *req.CollectionID); err != nil {
		respondError(c, "", err)
		return
	}
	logger.CtxInfo(ctx, "Rotation collection set: collection=%q", *req.CollectionID)

	status, err := h.rotation.Status(ctx)
	if err != nil {
		respondError(c, "Failed to load rotation state: ", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// TriggerBoundary handles POST /api/v1/rotation/boundary and runs the
// midnight decision immediately.
func (h *RotationHandler) TriggerBoundary(c *gin.Context) {
	outcome, err := h.rotation.HandleBoundary(c.Request.Context())
	if err != nil {
		respondError(c, "Rotation failed: ", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
