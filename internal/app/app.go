// Package app wires the configured services together for the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/wallfeed/internal/apply"
	"github.com/timmy/wallfeed/internal/cache"
	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/repository"
	"github.com/timmy/wallfeed/internal/service"
	"github.com/timmy/wallfeed/internal/settings"
	"github.com/timmy/wallfeed/internal/source/wallhaven"
	"github.com/timmy/wallfeed/internal/storage"
)

// Options carries collaborators that depend on how the process is run.
type Options struct {
	Prompter service.Prompter
	Probe    service.ActivityProbe
}

// App holds every long-lived service.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *gorm.DB
	Settings  *settings.Service
	Runs      *repository.SyncRunRepository
	Cache     *cache.Cache
	Catalog   *service.CatalogService
	Sync      *service.SyncService
	Scheduler *service.SyncScheduler
	Rotation  *service.RotationScheduler
	Search    *service.SearchService
	Progress  *service.LogProgress
}

// New builds the service graph. Timers are not started; see Start.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	if log == nil {
		log = logger.GetDefault()
	}

	mirror, err := newMirror(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	db, err := repository.InitDB(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	settingsSvc := settings.NewService(
		repository.NewSettingRepository(db),
		&cfg.Sync,
		log,
		settings.WithKeyringAccount(cfg.Keyring.Service, cfg.Keyring.User),
		settings.WithFallbackAPIKey(cfg.Wallhaven.APIKey),
	)

	imageCache := cache.New(&cache.Config{
		Dir:     cfg.Catalog.ImageDir(),
		Timeout: cfg.Wallhaven.DownloadTimeout,
	}, mirror, log)

	searcher := wallhaven.NewAdapter(&wallhaven.Config{
		BaseURL: cfg.Wallhaven.BaseURL,
		Timeout: cfg.Wallhaven.Timeout,
	})

	catalog := service.NewCatalogService(repository.NewCatalogStore(cfg.Catalog.Root), imageCache, log)
	applier := apply.New(&cfg.Apply, log)
	runs := repository.NewSyncRunRepository(db)
	progress := service.NewLogProgress(log)

	syncSvc := service.NewSyncService(
		searcher,
		catalog,
		imageCache,
		settingsSvc,
		applier,
		runs,
		progress,
		log,
		&service.SyncConfig{
			Surfaces: cfg.Surfaces,
			Workers:  cfg.Sync.Workers,
		},
	)

	rotation := service.NewRotationScheduler(settingsSvc, catalog, applier, log, &service.RotationConfig{
		Surfaces: cfg.Surfaces,
		Prompter: opts.Prompter,
		Probe:    opts.Probe,
	})

	scheduler := service.NewSyncScheduler(syncSvc, catalog, settingsSvc, log)
	settingsSvc.OnChange(func(ctx context.Context, key string) {
		if settings.IsScheduleKey(key) {
			scheduler.Reschedule(ctx)
		}
	})

	return &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Settings:  settingsSvc,
		Runs:      runs,
		Cache:     imageCache,
		Catalog:   catalog,
		Sync:      syncSvc,
		Scheduler: scheduler,
		Rotation:  rotation,
		Search:    service.NewSearchService(searcher, log),
		Progress:  progress,
	}, nil
}

func newMirror(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) (storage.ObjectStorage, error) {
	mirror, err := storage.NewMirror(&storage.S3Config{
		Enabled:   cfg.Enabled,
		Type:      storage.StorageType(cfg.Type),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Prefix:    cfg.Prefix,
		PublicURL: cfg.PublicURL,
	})
	if errors.Is(err, storage.ErrMirrorDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage mirror: %w", err)
	}

	if s3, ok := mirror.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}
	log.WithField("bucket", cfg.Bucket).Info("Cache mirror enabled")
	return mirror, nil
}

// Start runs a catch-up sync if one is due and arms the sync and rotation timers.
func (a *App) Start(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	if !a.Config.Rotation.Enabled {
		return nil
	}
	if err := a.Rotation.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize rotation: %w", err)
	}
	return nil
}

// Close stops the timers and releases the database.
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Rotation.Dispose()

	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
