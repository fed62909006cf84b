package audit

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type AuditLogRepository interface {
	WithTx(tx *gorm.DB) AuditLogRepository
	Create(ctx context.Context, event *model.AuditLog) error
	Find(ctx context.Context, companyID uint, limit int) ([]*model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) Create(ctx context.Context, event *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *auditLogRepository) Find(ctx context.Context, companyID uint, limit int) ([]*model.AuditLog, error) {
	var events []*model.AuditLog
	query := r.db.WithContext(ctx).Preload("Metadata").Order("created_at DESC").Limit(limit)
	if companyID != 0 {
		query = query.Where("company_id = ?", companyID)
	}
	err := query.Find(&events).Error
	return events, err
}

func (r *auditLogRepository) WithTx(tx *gorm.DB) AuditLogRepository {
	return NewAuditLogRepository(tx)
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db}
}
