package companies

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/store"
	"github.com/opsdeck/console/model"
	"github.com/opsdeck/console/params"
	"gorm.io/gorm"
)

var companyStatuses = map[string]bool{
	model.CompanyStatusPendingSetup: true,
	model.CompanyStatusActive:       true,
	model.CompanyStatusSuspended:    true,
	model.CompanyStatusInactive:     true,
	model.CompanyStatusArchived:     true,
}

type CreateCompanyOptions struct {
	Name       string
	Identifier string
	ActorID    uint
	IP         string
	UserAgent  string
}

// securityConfigEntry is the redis-cached projection of a SecurityConfig row.
type securityConfigEntry struct {
	CompanyID            uint `redis:"company_id"`
	PasswordHistoryLimit int  `redis:"history_limit"`
	PasswordExpiryDays   int  `redis:"expiry_days"`
	MaxFailedAttempts    int  `redis:"max_failed_attempts"`
	SessionTimeoutMins   int  `redis:"session_timeout_mins"`
	EnforceSingleSession bool `redis:"enforce_single_session"`
}

type CompanyService struct {
	db          *gorm.DB
	companyRepo CompanyRepository
	configRepo  SecurityConfigRepository
	auditLogger *audit.Logger
	configCache store.Store[securityConfigEntry]
}

func (s *CompanyService) CreateCompany(ctx context.Context, opts CreateCompanyOptions) (*model.Company, error) {
	if opts.Name == "" {
		return nil, ErrCompanyNameEmpty
	}
	if opts.Identifier == "" {
		return nil, ErrIdentifierEmpty
	}

	company := model.Company{
		Name:       opts.Name,
		Identifier: opts.Identifier,
		Status:     model.CompanyStatusPendingSetup,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.companyRepo.WithTx(tx).Create(ctx, &company); err != nil {
			return err
		}
		// security config is created exactly once, together with the company
		config := model.SecurityConfig{
			CompanyID:            company.ID,
			PasswordHistoryLimit: params.DefaultPasswordHistoryLimit,
			PasswordExpiryDays:   params.DefaultPasswordExpiryDays,
			MaxFailedAttempts:    params.DefaultMaxFailedAttempts,
			SessionTimeoutMins:   params.DefaultSessionTimeoutMins,
		}
		if err := s.configRepo.WithTx(tx).Create(ctx, &config); err != nil {
			return err
		}
		return s.auditLogger.RecordIn(ctx, tx, audit.Entry{
			UserID:    opts.ActorID,
			CompanyID: company.ID,
			Action:    audit.ActionCompanyCreated,
			Details:   company.Identifier,
			IP:        opts.IP,
			UserAgent: opts.UserAgent,
		})
	})
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return nil, ErrIdentifierTaken
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (s *CompanyService) GetCompany(ctx context.Context, companyID uint) (*model.Company, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	return company, err
}

func (s *CompanyService) GetCompanyByIdentifier(ctx context.Context, identifier string) (*model.Company, error) {
	company, err := s.companyRepo.GetByIdentifier(ctx, identifier)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	return company, err
}

func (s *CompanyService) ListCompanies(ctx context.Context, status string) ([]*model.Company, error) {
	if status != "" && !companyStatuses[status] {
		return nil, ErrInvalidStatus
	}
	return s.companyRepo.List(ctx, status)
}

// UpdateCompanyStatus transitions a company to the given status. Archived is
// terminal: once a company is archived no further transition is permitted.
func (s *CompanyService) UpdateCompanyStatus(ctx context.Context, companyID uint, status string, actorID uint, ip string, userAgent string) error {
	if !companyStatuses[status] {
		return ErrInvalidStatus
	}
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if company.Status == model.CompanyStatusArchived {
		return ErrCompanyArchived
	}
	if company.Status == status {
		return nil
	}
	if _, err := s.companyRepo.Updates(ctx, companyID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    actorID,
		CompanyID: companyID,
		Action:    audit.ActionCompanyStatusChanged,
		Details:   company.Status + " -> " + status,
		IP:        ip,
		UserAgent: userAgent,
	})
	return nil
}

// UpdateCompanyName renames a company. Archived companies cannot be renamed.
func (s *CompanyService) UpdateCompanyName(ctx context.Context, companyID uint, name string, actorID uint, ip string, userAgent string) error {
	if name == "" {
		return ErrCompanyNameEmpty
	}
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if company.Status == model.CompanyStatusArchived {
		return ErrCompanyArchived
	}
	if company.Name == name {
		return nil
	}
	if _, err := s.companyRepo.Updates(ctx, companyID, map[string]interface{}{"name": name}); err != nil {
		return err
	}
	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    actorID,
		CompanyID: companyID,
		Action:    audit.ActionCompanyUpdated,
		Details:   company.Name + " -> " + name,
		IP:        ip,
		UserAgent: userAgent,
	})
	return nil
}

type SecurityConfigUpdate struct {
	PasswordHistoryLimit *int
	PasswordExpiryDays   *int
	MaxFailedAttempts    *int
	SessionTimeoutMins   *int
	EnforceSingleSession *bool
}

func (s *CompanyService) UpdateSecurityConfig(ctx context.Context, companyID uint, update SecurityConfigUpdate, actorID uint, ip string, userAgent string) error {
	columns := map[string]interface{}{}
	if update.PasswordHistoryLimit != nil {
		columns["password_history_limit"] = *update.PasswordHistoryLimit
	}
	if update.PasswordExpiryDays != nil {
		columns["password_expiry_days"] = *update.PasswordExpiryDays
	}
	if update.MaxFailedAttempts != nil {
		columns["max_failed_attempts"] = *update.MaxFailedAttempts
	}
	if update.SessionTimeoutMins != nil {
		columns["session_timeout_mins"] = *update.SessionTimeoutMins
	}
	if update.EnforceSingleSession != nil {
		columns["enforce_single_session"] = *update.EnforceSingleSession
	}
	if len(columns) == 0 {
		return nil
	}

	affected, err := s.configRepo.Updates(ctx, companyID, columns)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConfigNotFound
	}
	if s.configCache != nil {
		s.configCache.Delete(ctx, strconv.FormatUint(uint64(companyID), 10))
	}
	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    actorID,
		CompanyID: companyID,
		Action:    audit.ActionSecurityConfigUpdated,
		IP:        ip,
		UserAgent: userAgent,
	})
	return nil
}

// GetSecurityConfig returns the company's security policy, consulting the
// redis cache first. A company with no config row yields (nil, nil): policy
// checks treat that as "policy disabled".
func (s *CompanyService) GetSecurityConfig(ctx context.Context, companyID uint) (*model.SecurityConfig, error) {
	cacheKey := strconv.FormatUint(uint64(companyID), 10)
	if s.configCache != nil {
		if entry, err := s.configCache.Get(ctx, cacheKey); err == nil {
			return &model.SecurityConfig{
				CompanyID:            entry.CompanyID,
				PasswordHistoryLimit: entry.PasswordHistoryLimit,
				PasswordExpiryDays:   entry.PasswordExpiryDays,
				MaxFailedAttempts:    entry.MaxFailedAttempts,
				SessionTimeoutMins:   entry.SessionTimeoutMins,
				EnforceSingleSession: entry.EnforceSingleSession,
			}, nil
		}
	}

	config, err := s.configRepo.GetByCompanyID(ctx, companyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.configCache != nil {
		entry := securityConfigEntry{
			CompanyID:            config.CompanyID,
			PasswordHistoryLimit: config.PasswordHistoryLimit,
			PasswordExpiryDays:   config.PasswordExpiryDays,
			MaxFailedAttempts:    config.MaxFailedAttempts,
			SessionTimeoutMins:   config.SessionTimeoutMins,
			EnforceSingleSession: config.EnforceSingleSession,
		}
		s.configCache.Set(ctx, cacheKey, entry, params.SecurityConfigCacheTTL)
	}
	return config, nil
}

// NewCompanyService returns a new CompanyService. storage may be nil, which
// disables security config caching.
func NewCompanyService(db *gorm.DB, companyRepo CompanyRepository, configRepo SecurityConfigRepository, auditLogger *audit.Logger, storage store.Storage) *CompanyService {
	var configCache store.Store[securityConfigEntry]
	if storage != nil {
		configCache = store.New[securityConfigEntry](storage, params.SecurityConfigKeyPrefix)
	}
	return &CompanyService{
		db:          db,
		companyRepo: companyRepo,
		configRepo:  configRepo,
		auditLogger: auditLogger,
		configCache: configCache,
	}
}
