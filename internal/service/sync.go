package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/settings"
	"github.com/timmy/wallfeed/internal/source"
)

// Sync progress stages.
const (
	StageBuildingOptions = "building_options"
	StageSearching       = "searching"
	StageDownloading     = "downloading"
	StageUpdatingCatalog = "updating_catalog"
	StageApplying        = "applying"
	StageCompleted       = "completed"
	StageFailed          = "failed"
)

// SyncProgress is one progress notification.
type SyncProgress struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressReporter receives sync progress. Download progress is reported
// from several goroutines at once.
type ProgressReporter interface {
	Report(ctx context.Context, p SyncProgress)
}

// Applier sets the images shown on a display surface.
type Applier interface {
	Apply(ctx context.Context, surfaceID string, paths []string) error
}

// RunRecorder stores sync run history.
type RunRecorder interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Update(ctx context.Context, run *domain.SyncRun) error
}

// SettingsProvider returns the current settings snapshot.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// Rescheduler arms the next scheduled sync.
type Rescheduler interface {
	Reschedule(ctx context.Context)
}

// SyncConfig holds configuration for the sync service.
type SyncConfig struct {
	Surfaces []string
	Workers  int // concurrent downloads; DefaultDownloadWorkers when zero
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	RunID      string              `json:"run_id,omitempty"`
	Trigger    domain.SyncTrigger  `json:"trigger"`
	Status     domain.SyncStatus   `json:"status"`
	Candidates int                 `json:"candidates"`
	Added      int                 `json:"added"`
	Pruned     int                 `json:"pruned"`
	Failed     int                 `json:"failed"`
	Mapping    map[string][]string `json:"mapping,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// SyncService runs the search, download, catalog update and apply pipeline.
// At most one run is in flight at a time.
type SyncService struct {
	searcher source.Searcher
	catalog  *CatalogService
	fetcher  ImageFetcher
	settings SettingsProvider
	applier  Applier
	recorder RunRecorder
	progress ProgressReporter
	logger   *logger.Logger
	surfaces []string
	workers  int
	now      func() time.Time

	running atomic.Bool

	reschedMu   sync.RWMutex
	rescheduler Rescheduler
}

// NewSyncService creates a new sync service. applier, recorder and progress may be nil.
func NewSyncService(
	searcher source.Searcher,
	catalog *CatalogService,
	fetcher ImageFetcher,
	settingsProvider SettingsProvider,
	applier Applier,
	recorder RunRecorder,
	progress ProgressReporter,
	log *logger.Logger,
	cfg *SyncConfig,
) *SyncService {
	if log == nil {
		log = logger.GetDefault()
	}
	var surfaces []string
	workers := DefaultDownloadWorkers
	if cfg != nil {
		surfaces = append(surfaces, cfg.Surfaces...)
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
	}
	return &SyncService{
		searcher: searcher,
		catalog:  catalog,
		fetcher:  fetcher,
		settings: settingsProvider,
		applier:  applier,
		recorder: recorder,
		progress: progress,
		logger:   log,
		surfaces: surfaces,
		workers:  workers,
		now:      time.Now,
	}
}

// SetRescheduler registers the scheduler notified at the end of every run.
func (s *SyncService) SetRescheduler(r Rescheduler) {
	s.reschedMu.Lock()
	s.rescheduler = r
	s.reschedMu.Unlock()
}

// Running reports whether a sync is in flight.
func (s *SyncService) Running() bool {
	return s.running.Load()
}

func (s *SyncService) log(ctx context.Context) *logger.Logger {
	if logger.HasLogger(ctx) {
		return logger.FromContext(ctx)
	}
	return s.logger
}

func (s *SyncService) report(ctx context.Context, p SyncProgress) {
	if s.progress != nil {
		s.progress.Report(ctx, p)
	}
}

// Run executes one sync. A call made while another run is in flight returns
// a skipped result and no error. Failures are recorded on the catalog as
// lastError and returned.
func (s *SyncService) Run(ctx context.Context, trigger domain.SyncTrigger) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log(ctx).WithField(logger.FieldTrigger, trigger).Info("Sync already running, skipping")
		return &SyncResult{Trigger: trigger, Status: domain.SyncStatusSkipped}, nil
	}
	defer s.running.Store(false)

	runID := uuid.New().String()
	ctx = s.log(ctx).WithFields(logger.Fields{
		logger.FieldSyncID:  runID,
		logger.FieldTrigger: string(trigger),
	}).WithContext(ctx)
	defer s.reschedule(ctx)

	start := s.now()
	result := &SyncResult{RunID: runID, Trigger: trigger, Status: domain.SyncStatusRunning}

	s.report(ctx, SyncProgress{RunID: runID, Stage: StageBuildingOptions})
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return s.fail(ctx, result, nil, fmt.Errorf("failed to load settings: %w", err))
	}

	if !snap.SyncEnabled && trigger != domain.SyncTriggerManual {
		s.log(ctx).Info("Sync disabled, skipping scheduled run")
		result.Status = domain.SyncStatusSkipped
		return result, nil
	}

	run := &domain.SyncRun{
		ID:        runID,
		Trigger:   trigger,
		Status:    domain.SyncStatusRunning,
		StartedAt: start,
	}
	s.recordCreate(ctx, run)

	s.report(ctx, SyncProgress{RunID: runID, Stage: StageSearching})
	candidates, err := s.searcher.Search(ctx, snap.SearchOptions())
	if err != nil {
		return s.fail(ctx, result, run, fmt.Errorf("search failed: %w", err))
	}
	result.Candidates = len(candidates)

	s.report(ctx, SyncProgress{RunID: runID, Stage: StageDownloading, Total: len(candidates)})
	downloads := downloadAll(ctx, s.fetcher, candidates, s.workers, func(done int) {
		s.report(ctx, SyncProgress{RunID: runID, Stage: StageDownloading, Done: done, Total: len(candidates)})
	})
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, result, run, err)
	}

	fresh := make([]domain.CachedImage, 0, len(candidates))
	for i, c := range candidates {
		d := downloads[i]
		if d.err != nil {
			result.Failed++
			s.log(ctx).WithError(d.err).WithFields(logger.Fields{"id": c.ID, "url": c.URL}).Warn("Failed to download candidate")
			continue
		}
		fresh = append(fresh, toCachedImage(c, d.fetch.LocalPath, d.fetch.Width, d.fetch.Height, s.now()))
	}

	s.report(ctx, SyncProgress{RunID: runID, Stage: StageUpdatingCatalog})
	var pruned []domain.CachedImage
	completedAt := s.now()
	updated, err := s.catalog.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		existing := make(map[string]bool, len(c.Feed))
		for _, img := range c.Feed {
			existing[img.ID] = true
		}
		for _, img := range dedupeByID(fresh) {
			if !existing[img.ID] {
				result.Added++
			}
		}

		c = MergeFeed(c, fresh)
		c, pruned = PruneFeed(c, snap.MaxCached)
		c.LastSyncAt = &completedAt
		c.LastError = ""
		c.Mapping = BuildMapping(localPaths(activePool(c, snap.Mode)), s.surfaces, snap.Mapping)
		return c, nil
	})
	if err != nil {
		return s.fail(ctx, result, run, err)
	}
	result.Pruned = len(pruned)
	result.Mapping = updated.Mapping

	s.reclaim(ctx, updated, pruned)

	if len(activePool(updated, snap.Mode)) > 0 {
		s.report(ctx, SyncProgress{RunID: runID, Stage: StageApplying})
		s.apply(ctx, updated.Mapping)
	}

	result.Status = domain.SyncStatusCompleted
	s.recordFinish(ctx, run, result)
	s.report(ctx, SyncProgress{RunID: runID, Stage: StageCompleted})

	logger.With(logger.Fields{
		"candidates": result.Candidates,
		"added":      result.Added,
		"pruned":     result.Pruned,
		"failed":     result.Failed,
	}).WithDuration(s.now().Sub(start).Milliseconds()).Info(ctx, "Sync completed")

	return result, nil
}

// reclaim deletes files of pruned items that no pool still references.
func (s *SyncService) reclaim(ctx context.Context, c domain.Catalog, pruned []domain.CachedImage) {
	var orphans []string
	for _, img := range pruned {
		if img.LocalPath != "" && !c.References(img.LocalPath) {
			orphans = append(orphans, img.LocalPath)
		}
	}
	if len(orphans) == 0 {
		return
	}
	for _, err := range s.fetcher.RemovePaths(ctx, orphans) {
		s.log(ctx).WithError(err).Warn("Failed to remove pruned image")
	}
}

func (s *SyncService) apply(ctx context.Context, mapping map[string][]string) {
	if s.applier == nil {
		return
	}
	for _, surface := range s.surfaces {
		paths := mapping[surface]
		if len(paths) == 0 {
			continue
		}
		if err := s.applier.Apply(ctx, surface, paths); err != nil {
			s.log(ctx).WithError(err).WithField(logger.FieldSurface, surface).Warn("Failed to apply wallpaper")
		}
	}
}

func (s *SyncService) fail(ctx context.Context, result *SyncResult, run *domain.SyncRun, cause error) (*SyncResult, error) {
	result.Status = domain.SyncStatusFailed
	result.Error = cause.Error()

	if _, err := s.catalog.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		c.LastError = cause.Error()
		return c, nil
	}); err != nil {
		s.log(ctx).WithError(err).Error("Failed to record sync error")
	}

	if run != nil {
		s.recordFinish(ctx, run, result)
	}
	s.report(ctx, SyncProgress{RunID: result.RunID, Stage: StageFailed, Message: cause.Error()})
	s.log(ctx).WithError(cause).Error("Sync failed")
	return result, cause
}

func (s *SyncService) recordCreate(ctx context.Context, run *domain.SyncRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Create(ctx, run); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record sync run")
	}
}

func (s *SyncService) recordFinish(ctx context.Context, run *domain.SyncRun, result *SyncResult) {
	if s.recorder == nil {
		return
	}
	completed := s.now()
	run.Status = result.Status
	run.Candidates = result.Candidates
	run.Added = result.Added
	run.Pruned = result.Pruned
	run.Failed = result.Failed
	run.Error = result.Error
	run.CompletedAt = &completed
	if err := s.recorder.Update(context.WithoutCancel(ctx), run); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to update sync run")
	}
}

func (s *SyncService) reschedule(ctx context.Context) {
	s.reschedMu.RLock()
	r := s.rescheduler
	s.reschedMu.RUnlock()
	if r != nil {
		r.Reschedule(context.WithoutCancel(ctx))
	}
}

func toCachedImage(c source.Candidate, localPath string, width, height int, fetchedAt time.Time) domain.CachedImage {
	img := domain.CachedImage{
		ID:         c.ID,
		SourceURL:  c.URL,
		LocalPath:  localPath,
		Tags:       append([]string{}, c.Tags...),
		FetchedAt:  fetchedAt,
		Resolution: c.Resolution,
		Category:   c.Category,
		Purity:     c.Purity,
		Width:      c.Width,
		Height:     c.Height,
	}
	if img.Width == 0 || img.Height == 0 {
		img.Width, img.Height = width, height
	}
	return img
}
