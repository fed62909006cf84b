package auth

import (
	"context"
	"time"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	GetByID(ctx context.Context, sessionID string) (*model.Session, error)
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUserIDs(ctx context.Context, userIDs []uint) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Delete(&model.Session{}, "id = ?", sessionID).Error
}

func (r *sessionRepository) DeleteByUserIDs(ctx context.Context, userIDs []uint) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	ret := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Delete(&model.Session{})
	return ret.RowsAffected, ret.Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ret := r.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&model.Session{})
	return ret.RowsAffected, ret.Error
}

func (r *sessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	return NewSessionRepository(tx)
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db}
}
