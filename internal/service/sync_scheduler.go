package service

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/timeutil"
)

// SyncRunner runs one sync.
type SyncRunner interface {
	Run(ctx context.Context, trigger domain.SyncTrigger) (*SyncResult, error)
}

// SyncScheduler fires the daily sync at the configured trigger time and
// catches up on a missed run at startup.
type SyncScheduler struct {
	runner   SyncRunner
	catalog  *CatalogService
	settings SettingsProvider
	logger   *logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	ctx        context.Context
	timer      *time.Timer
	generation uint64
	nextRun    time.Time
	stopped    bool
}

// NewSyncScheduler creates a scheduler. When runner is a *SyncService the
// scheduler registers itself so every run rearms the timer.
func NewSyncScheduler(runner SyncRunner, catalog *CatalogService, settingsProvider SettingsProvider, log *logger.Logger) *SyncScheduler {
	if log == nil {
		log = logger.GetDefault()
	}
	s := &SyncScheduler{
		runner:   runner,
		catalog:  catalog,
		settings: settingsProvider,
		logger:   log.WithField(logger.FieldComponent, "sync_scheduler"),
		now:      time.Now,
		ctx:      context.Background(),
	}
	if svc, ok := runner.(*SyncService); ok {
		svc.SetRescheduler(s)
	}
	return s
}

// Start runs a catch-up sync when today's trigger was missed, then arms the
// timer for the next trigger.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.stopped = false
	s.mu.Unlock()

	trigger := s.triggerTime(ctx)
	lastSync := s.catalog.Snapshot(ctx).LastSyncAt
	if timeutil.ShouldCatchUp(s.now(), trigger, lastSync) {
		s.logger.WithField(logger.FieldTrigger, trigger).Info("Missed scheduled sync, catching up")
		if _, err := s.runner.Run(ctx, domain.SyncTriggerCatchUp); err != nil {
			s.logger.WithError(err).Warn("Catch-up sync failed")
		}
	}

	s.Reschedule(ctx)
}

// Reschedule replaces the pending timer with one for the next trigger time.
// A replaced timer never fires its sync.
func (s *SyncScheduler) Reschedule(ctx context.Context) {
	trigger := s.triggerTime(ctx)
	now := s.now()
	next := timeutil.NextRunAt(now, trigger)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	s.nextRun = next
	s.timer = time.AfterFunc(next.Sub(now), func() { s.fire(gen) })
	s.mu.Unlock()

	if _, err := s.catalog.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		c.NextScheduledAt = &next
		return c, nil
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to record next scheduled sync")
	}

	s.logger.WithField("next_run", next.Format(time.RFC3339)).Debug("Sync scheduled")
}

func (s *SyncScheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.runner.Run(ctx, domain.SyncTriggerScheduled); err != nil {
		s.logger.WithError(err).Warn("Scheduled sync failed")
	}
}

// NextRun returns the armed trigger instant, if any.
func (s *SyncScheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer == nil {
		return time.Time{}, false
	}
	return s.nextRun, true
}

// Stop cancels the pending timer. It is safe to call more than once.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SyncScheduler) triggerTime(ctx context.Context) string {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load settings, using default trigger time")
		return timeutil.DefaultTrigger.String()
	}
	return snap.TriggerTime
}
