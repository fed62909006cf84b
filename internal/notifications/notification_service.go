package notifications

import (
	"context"
	"errors"

	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotOwner             = errors.New("notification belongs to another user")
)

type NotifyOptions struct {
	UserIDs   []uint
	CompanyID uint // expands to every user of the company
	Kind      string
	Title     string
	Body      string
}

type NotificationService struct {
	notificationRepo NotificationRepository
	userRepo         users.UserRepository
}

// Notify fans a message out to the given users, or to every user of the
// given company.
func (s *NotificationService) Notify(ctx context.Context, opts NotifyOptions) (int, error) {
	userIDs := opts.UserIDs
	if opts.CompanyID != 0 {
		ids, err := s.userRepo.ListIDsByCompany(ctx, opts.CompanyID)
		if err != nil {
			return 0, err
		}
		userIDs = append(userIDs, ids...)
	}
	kind := opts.Kind
	if kind == "" {
		kind = model.NotificationKindInfo
	}

	notifications := make([]*model.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &model.Notification{
			UserID: userID,
			Kind:   kind,
			Title:  opts.Title,
			Body:   opts.Body,
		})
	}
	if err := s.notificationRepo.CreateBatch(ctx, notifications); err != nil {
		return 0, err
	}
	return len(notifications), nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]*model.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *NotificationService) getOwned(ctx context.Context, notificationID uint, userID uint) (*model.Notification, error) {
	notification, err := s.notificationRepo.GetByID(ctx, notificationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if notification.UserID != userID {
		return nil, ErrNotOwner
	}
	return notification, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, notificationID uint, userID uint) error {
	if _, err := s.getOwned(ctx, notificationID, userID); err != nil {
		return err
	}
	_, err := s.notificationRepo.Updates(ctx, notificationID, map[string]interface{}{"is_read": true})
	return err
}

func (s *NotificationService) Delete(ctx context.Context, notificationID uint, userID uint) error {
	if _, err := s.getOwned(ctx, notificationID, userID); err != nil {
		return err
	}
	return s.notificationRepo.Delete(ctx, notificationID)
}

func NewNotificationService(notificationRepo NotificationRepository, userRepo users.UserRepository) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}
