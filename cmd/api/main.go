package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/wallfeed/internal/api"
	"github.com/timmy/wallfeed/internal/app"
	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/prompt"
)

func main() {
	// Initialize logger first (env driven, optional rotated file output)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := &app.Options{}
	if cfg.Rotation.Interactive {
		opts.Prompter = prompt.NewTerminalPrompter(10 * time.Minute)
		opts.Probe = prompt.NewTerminalActivity()
	}

	a, err := app.New(ctx, cfg, appLogger, opts)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}

	router := api.SetupRouter(&api.Services{
		Catalog:  a.Catalog,
		Sync:     a.Sync,
		Runs:     a.Runs,
		Search:   a.Search,
		Rotation: a.Rotation,
		Settings: a.Settings,
	}, &cfg.Server, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// The catch-up sync may take a while; serve requests meanwhile.
	go func() {
		if err := a.Start(ctx); err != nil {
			appLogger.WithError(err).Warn("Failed to start schedulers")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := a.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to close services")
	}

	appLogger.Info("Server exited")
}
