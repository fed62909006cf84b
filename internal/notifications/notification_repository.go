package notifications

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	WithTx(tx *gorm.DB) NotificationRepository
	GetByID(ctx context.Context, notificationID uint) (*model.Notification, error)
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	Create(ctx context.Context, notification *model.Notification) error
	CreateBatch(ctx context.Context, notifications []*model.Notification) error
	Updates(ctx context.Context, notificationID uint, columns map[string]interface{}) (int64, error)
	Delete(ctx context.Context, notificationID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

func (r *notificationRepository) GetByID(ctx context.Context, notificationID uint) (*model.Notification, error) {
	var notification model.Notification
	err := r.db.WithContext(ctx).Where("id = ?", notificationID).First(&notification).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]*model.Notification, error) {
	var notifications []*model.Notification
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(notifications).Error
}

func (r *notificationRepository) Updates(ctx context.Context, notificationID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", notificationID).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *notificationRepository) Delete(ctx context.Context, notificationID uint) error {
	return r.db.WithContext(ctx).Delete(&model.Notification{}, notificationID).Error
}

func (r *notificationRepository) WithTx(tx *gorm.DB) NotificationRepository {
	return NewNotificationRepository(tx)
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db}
}
