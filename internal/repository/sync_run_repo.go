package repository

import (
	"context"

	"github.com/timmy/wallfeed/internal/domain"
	"gorm.io/gorm"
)

// SyncRunRepository handles sync run history.
type SyncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new SyncRunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SyncRunRepository: repository instance bound to db.
func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new run.
func (r *SyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves the run's counters and final status.
func (r *SyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// ListRecent returns the most recent runs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of runs to return.
// Returns:
//   - []domain.SyncRun: runs ordered by start time descending.
//   - error: non-nil if the query fails.
func (r *SyncRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.SyncRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
