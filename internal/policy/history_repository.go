package policy

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type PasswordHistoryRepository interface {
	WithTx(tx *gorm.DB) PasswordHistoryRepository
	Recent(ctx context.Context, userID uint, limit int) ([]*model.PasswordHistory, error)
	Create(ctx context.Context, entry *model.PasswordHistory) error
}

type passwordHistoryRepository struct {
	db *gorm.DB
}

// Recent returns the newest limit history rows for the user, newest first.
func (r *passwordHistoryRepository) Recent(ctx context.Context, userID uint, limit int) ([]*model.PasswordHistory, error) {
	var entries []*model.PasswordHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *passwordHistoryRepository) Create(ctx context.Context, entry *model.PasswordHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *passwordHistoryRepository) WithTx(tx *gorm.DB) PasswordHistoryRepository {
	return NewPasswordHistoryRepository(tx)
}

func NewPasswordHistoryRepository(db *gorm.DB) PasswordHistoryRepository {
	return &passwordHistoryRepository{db}
}
