package companies

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type SecurityConfigRepository interface {
	WithTx(tx *gorm.DB) SecurityConfigRepository
	GetByCompanyID(ctx context.Context, companyID uint) (*model.SecurityConfig, error)
	Create(ctx context.Context, config *model.SecurityConfig) error
	Updates(ctx context.Context, companyID uint, columns map[string]interface{}) (int64, error)
}

type securityConfigRepository struct {
	db *gorm.DB
}

func (r *securityConfigRepository) GetByCompanyID(ctx context.Context, companyID uint) (*model.SecurityConfig, error) {
	var config model.SecurityConfig
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *securityConfigRepository) Create(ctx context.Context, config *model.SecurityConfig) error {
	return r.db.WithContext(ctx).Create(config).Error
}

func (r *securityConfigRepository) Updates(ctx context.Context, companyID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.SecurityConfig{}).Where("company_id = ?", companyID).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *securityConfigRepository) WithTx(tx *gorm.DB) SecurityConfigRepository {
	return NewSecurityConfigRepository(tx)
}

func NewSecurityConfigRepository(db *gorm.DB) SecurityConfigRepository {
	return &securityConfigRepository{db}
}
