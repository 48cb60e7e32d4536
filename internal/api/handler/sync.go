package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/service"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// SyncHandler triggers syncs and lists their history.
type SyncHandler struct {
	runner SyncRunner
	runs   RunLister
}

// NewSyncHandler creates a new sync handler. runs may be nil when no
// database is configured.
func NewSyncHandler(runner SyncRunner, runs RunLister) *SyncHandler {
	return &SyncHandler{runner: runner, runs: runs}
}

// TriggerSync handles POST /api/v1/sync. With ?async=true the run continues
// in the background and 202 is returned immediately. A sync that is already
// in flight is not an error: the response carries the skipped result.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	ctx := c.Request.Context()

	// Keep the request logger but not its cancellation.
	runCtx := context.WithoutCancel(ctx)

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.runner.Running() {
			logger.CtxInfo(ctx, "Sync already running, skipping: client_ip=%s", c.ClientIP())
			c.JSON(http.StatusOK, &service.SyncResult{
				Trigger: domain.SyncTriggerManual,
				Status:  domain.SyncStatusSkipped,
			})
			return
		}
		go func() {
			if _, err := h.runner.Run(runCtx, domain.SyncTriggerManual); err != nil {
				logger.CtxWarn(runCtx, "Background sync failed: error=%v", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Sync started"})
		return
	}

	start := time.Now()
	result, err := h.runner.Run(runCtx, domain.SyncTriggerManual)
	duration := time.Since(start)
	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Sync failed: error=%v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed: " + err.Error(), "result": result})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListRuns handles GET /api/v1/sync/runs.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []domain.SyncRun{}, "total": 0})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to list sync runs: ", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":    runs,
		"total":   len(runs),
		"running": h.runner.Running(),
	})
}
