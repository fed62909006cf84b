package users

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type InvitationRepository interface {
	WithTx(tx *gorm.DB) InvitationRepository
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	ListByCompany(ctx context.Context, companyID uint) ([]*model.Invitation, error)
	Create(ctx context.Context, invitation *model.Invitation) error
	Updates(ctx context.Context, invitationID uint, columns map[string]interface{}) (int64, error)
	Delete(ctx context.Context, invitationID uint) error
}

type invitationRepository struct {
	db *gorm.DB
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	var invitation model.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *invitationRepository) ListByCompany(ctx context.Context, companyID uint) ([]*model.Invitation, error) {
	var invitations []*model.Invitation
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at DESC").Find(&invitations).Error
	return invitations, err
}

func (r *invitationRepository) Create(ctx context.Context, invitation *model.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *invitationRepository) Updates(ctx context.Context, invitationID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Invitation{}).Where("id = ?", invitationID).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *invitationRepository) Delete(ctx context.Context, invitationID uint) error {
	return r.db.WithContext(ctx).Delete(&model.Invitation{}, invitationID).Error
}

func (r *invitationRepository) WithTx(tx *gorm.DB) InvitationRepository {
	return NewInvitationRepository(tx)
}

func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db}
}
