package companies

import (
	"context"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type CompanyRepository interface {
	WithTx(tx *gorm.DB) CompanyRepository
	GetByID(ctx context.Context, companyID uint) (*model.Company, error)
	GetByIdentifier(ctx context.Context, identifier string) (*model.Company, error)
	List(ctx context.Context, status string) ([]*model.Company, error)
	Create(ctx context.Context, company *model.Company) error
	Updates(ctx context.Context, companyID uint, columns map[string]interface{}) (int64, error)
}

type companyRepository struct {
	db *gorm.DB
}

func (r *companyRepository) GetByID(ctx context.Context, companyID uint) (*model.Company, error) {
	var company model.Company
	err := r.db.WithContext(ctx).Where("id = ?", companyID).First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Company, error) {
	var company model.Company
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) List(ctx context.Context, status string) ([]*model.Company, error) {
	var companies []*model.Company
	query := r.db.WithContext(ctx).Preload("SecurityConfig").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&companies).Error
	return companies, err
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *companyRepository) Updates(ctx context.Context, companyID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Company{}).Where("id = ?", companyID).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *companyRepository) WithTx(tx *gorm.DB) CompanyRepository {
	return NewCompanyRepository(tx)
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db}
}
