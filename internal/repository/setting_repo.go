package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/wallfeed/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository persists key/value settings.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value for key and whether it was present.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: setting key.
// Returns:
//   - string: stored value, empty when absent.
//   - bool: true when the key exists.
//   - error: non-nil if the lookup fails.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s domain.Setting
	err := r.db.WithContext(ctx).Where(&domain.Setting{Key: key}).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

// Set creates or replaces the value for key.
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&domain.Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}

// All returns every stored setting ordered by key.
func (r *SettingRepository) All(ctx context.Context) ([]domain.Setting, error) {
	var settings []domain.Setting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}
