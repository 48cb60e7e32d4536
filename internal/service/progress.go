package service

import (
	"context"
	"sync"

	"github.com/timmy/wallfeed/internal/logger"
)

// LogProgress reports sync progress through the logger. A failed run is
// reported as a single warning line carrying the cause.
type LogProgress struct {
	logger *logger.Logger

	mu   sync.Mutex
	last SyncProgress
}

func NewLogProgress(log *logger.Logger) *LogProgress {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LogProgress{logger: log.WithField(logger.FieldComponent, "sync_progress")}
}

func (p *LogProgress) Report(ctx context.Context, sp SyncProgress) {
	p.mu.Lock()
	p.last = sp
	p.mu.Unlock()

	l := p.logger
	if logger.HasLogger(ctx) {
		l = logger.FromContext(ctx)
	}
	l = l.WithField("stage", sp.Stage)

	switch sp.Stage {
	case StageFailed:
		l.Warnf("Sync failed: %s", sp.Message)
	case StageDownloading:
		if sp.Total > 0 {
			l.Debugf("Downloaded %d/%d", sp.Done, sp.Total)
		}
	default:
		l.Debug("Sync progress")
	}
}

// Last returns the most recent report.
func (p *LogProgress) Last() SyncProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
