package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/wallfeed/internal/api/handler"
	"github.com/timmy/wallfeed/internal/api/middleware"
	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/logger"
)

// Services bundles the collaborators behind the HTTP surface.
type Services struct {
	Catalog  handler.CatalogService
	Sync     handler.SyncRunner
	Runs     handler.RunLister // optional
	Search   handler.Searcher
	Rotation handler.RotationController
	Settings handler.SettingsService
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svcs *Services, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	catalogHandler := handler.NewCatalogHandler(svcs.Catalog)
	syncHandler := handler.NewSyncHandler(svcs.Sync, svcs.Runs)
	searchHandler := handler.NewSearchHandler(svcs.Search, svcs.Settings)
	rotationHandler := handler.NewRotationHandler(svcs.Rotation)
	settingsHandler := handler.NewSettingsHandler(svcs.Settings)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Catalog
		v1.GET("/catalog", catalogHandler.GetCatalog)

		// Sync
		v1.POST("/sync", syncHandler.TriggerSync)
		v1.GET("/sync/runs", syncHandler.ListRuns)

		// Search
		v1.GET("/search", searchHandler.Search)

		// Favorites
		v1.POST("/favorites", catalogHandler.AddFavorite)
		v1.DELETE("/favorites/:id", catalogHandler.RemoveFavorite)

		// Rotation
		v1.GET("/rotation", rotationHandler.GetRotation)
		v1.PUT("/rotation", rotationHandler.SetRotation)
		v1.POST("/rotation/boundary", rotationHandler.TriggerBoundary)

		// Settings
		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PUT("/settings/:key", settingsHandler.UpdateSetting)
	}

	return r
}
