package domain

import "time"

// SyncTrigger identifies what started a sync run.
type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerCatchUp   SyncTrigger = "catch_up"
)

// SyncStatus represents the status of a sync run.
// Values include SyncStatusRunning, SyncStatusCompleted, SyncStatusFailed, and SyncStatusSkipped.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusSkipped   SyncStatus = "skipped"
)

// SyncRun is one execution of the sync pipeline and its counters.
type SyncRun struct {
	ID          string      `gorm:"type:text;primaryKey" json:"id"`
	Trigger     SyncTrigger `gorm:"type:text;not null;index" json:"trigger"`
	Status      SyncStatus  `gorm:"type:text;default:running;index" json:"status"`
	Candidates  int         `gorm:"default:0" json:"candidates"`
	Added       int         `gorm:"default:0" json:"added"`
	Pruned      int         `gorm:"default:0" json:"pruned"`
	Failed      int         `gorm:"default:0" json:"failed"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `gorm:"index" json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// TableName returns the database table name for SyncRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SyncRun) TableName() string {
	return "sync_runs"
}
