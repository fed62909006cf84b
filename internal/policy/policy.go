package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/common"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"github.com/opsdeck/console/params"
	"gorm.io/gorm"
)

// SecurityConfigSource yields the per-company password policy. A company with
// no config row yields (nil, nil); the engine treats that as policy disabled
// so unconfigured tenants are never locked out.
type SecurityConfigSource interface {
	GetSecurityConfig(ctx context.Context, companyID uint) (*model.SecurityConfig, error)
}

// LoginEligibility is the result of the pre-credential login gate.
type LoginEligibility struct {
	CanLogin bool
	Reason   string
}

// Engine implements the password policy rules and the failed-login lockout
// state machine. All durable state lives in the store; the engine itself is
// stateless.
type Engine struct {
	db          *gorm.DB
	userRepo    users.UserRepository
	historyRepo PasswordHistoryRepository
	configs     SecurityConfigSource
	auditLogger *audit.Logger
}

// IsPasswordPreviouslyUsed reports whether candidate matches any of the last
// history-limit password hashes stored for the user. Pure read.
func (e *Engine) IsPasswordPreviouslyUsed(ctx context.Context, userID uint, companyID uint, candidate string) (bool, error) {
	config, err := e.configs.GetSecurityConfig(ctx, companyID)
	if err != nil {
		return false, err
	}
	limit := params.DefaultPasswordHistoryLimit
	if config != nil && config.PasswordHistoryLimit > 0 {
		limit = config.PasswordHistoryLimit
	}

	entries, err := e.historyRepo.Recent(ctx, userID, limit)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if common.VerifyPassword(entry.Password, candidate) {
			return true, nil
		}
	}
	return false, nil
}

// NeedsPasswordChange reports whether the user's password has outlived the
// company's expiry window. No config or non-positive expiry means never.
func (e *Engine) NeedsPasswordChange(ctx context.Context, userID uint) (bool, error) {
	user, err := e.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, users.ErrUserNotFound
	}
	if err != nil {
		return false, err
	}

	config, err := e.configs.GetSecurityConfig(ctx, user.CompanyID)
	if err != nil {
		return false, err
	}
	if config == nil || config.PasswordExpiryDays <= 0 {
		return false, nil
	}
	if user.LastPasswordChange.IsZero() {
		return false, nil
	}
	expiresAt := user.LastPasswordChange.AddDate(0, 0, config.PasswordExpiryDays)
	return time.Now().After(expiresAt), nil
}

// ChangePassword rotates the user's password. It rejects recently used
// passwords, then in a single transaction stores the new hash, resets the
// failed-attempt counter, unlocks a locked account, appends the history row
// and writes the audit entry. A crash mid-way leaves nothing half-applied.
func (e *Engine) ChangePassword(ctx context.Context, userID uint, companyID uint, newPassword string, ip string, userAgent string) error {
	reused, err := e.IsPasswordPreviouslyUsed(ctx, userID, companyID, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReused
	}

	user, err := e.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return users.ErrUserNotFound
	}
	if err != nil {
		return err
	}

	passwordHash, err := common.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns := map[string]interface{}{
			"password":              passwordHash,
			"last_password_change":  time.Now(),
			"failed_login_attempts": 0,
			"last_failed_attempt":   nil,
		}
		// suspension is orthogonal and survives a password change
		if user.Status == model.UserStatusLocked {
			columns["status"] = model.UserStatusActive
		}
		if _, err := e.userRepo.WithTx(tx).Updates(ctx, userID, columns); err != nil {
			return err
		}
		entry := model.PasswordHistory{
			UserID:    userID,
			CompanyID: companyID,
			Password:  passwordHash,
		}
		if err := e.historyRepo.WithTx(tx).Create(ctx, &entry); err != nil {
			return err
		}
		return e.auditLogger.RecordIn(ctx, tx, audit.Entry{
			UserID:    userID,
			CompanyID: companyID,
			Action:    audit.ActionPasswordChange,
			IP:        ip,
			UserAgent: userAgent,
		})
	})
}

// HandleFailedLogin increments the user's failed-attempt counter and locks
// the account when the company threshold is reached. The login_failed audit
// entry always records the attempt count and threshold, lock or not. It
// returns true when this attempt caused the lock.
func (e *Engine) HandleFailedLogin(ctx context.Context, userID uint, ip string, userAgent string) (bool, error) {
	user, err := e.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, users.ErrUserNotFound
	}
	if err != nil {
		return false, err
	}

	config, err := e.configs.GetSecurityConfig(ctx, user.CompanyID)
	if err != nil {
		return false, err
	}

	attempts := user.FailedLoginAttempts + 1
	columns := map[string]interface{}{
		"failed_login_attempts": attempts,
		"last_failed_attempt":   time.Now(),
	}

	threshold := 0
	locked := false
	if config != nil && config.MaxFailedAttempts > 0 {
		threshold = config.MaxFailedAttempts
		if attempts >= threshold && user.Status == model.UserStatusActive {
			columns["status"] = model.UserStatusLocked
			locked = true
		}
	}

	if _, err := e.userRepo.Updates(ctx, userID, columns); err != nil {
		return false, err
	}

	details := "invalid credentials"
	if locked {
		details = "invalid credentials, account locked"
	}
	e.auditLogger.Record(ctx, audit.Entry{
		UserID:    userID,
		CompanyID: user.CompanyID,
		Action:    audit.ActionLoginFailed,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
		Metadata: map[string]string{
			"attempts":  fmt.Sprint(attempts),
			"threshold": fmt.Sprint(threshold),
		},
	})
	return locked, nil
}

// ResetFailedAttempts zeroes the counter after a successful authentication.
func (e *Engine) ResetFailedAttempts(ctx context.Context, userID uint) error {
	_, err := e.userRepo.Updates(ctx, userID, map[string]interface{}{
		"failed_login_attempts": 0,
		"last_failed_attempt":   nil,
	})
	return err
}

// CanUserLogin is the pre-credential gate: it rejects missing users and
// locked accounts before any password comparison happens.
func (e *Engine) CanUserLogin(ctx context.Context, userID uint) (LoginEligibility, error) {
	user, err := e.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LoginEligibility{CanLogin: false, Reason: ReasonUserNotFound}, nil
	}
	if err != nil {
		return LoginEligibility{}, err
	}
	if user.Status == model.UserStatusLocked {
		return LoginEligibility{CanLogin: false, Reason: ReasonAccountLocked}, nil
	}
	return LoginEligibility{CanLogin: true}, nil
}

func NewEngine(db *gorm.DB, userRepo users.UserRepository, historyRepo PasswordHistoryRepository, configs SecurityConfigSource, auditLogger *audit.Logger) *Engine {
	return &Engine{
		db:          db,
		userRepo:    userRepo,
		historyRepo: historyRepo,
		configs:     configs,
		auditLogger: auditLogger,
	}
}
