package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/common"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/policy"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

type SignInInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// AuthService verifies credentials and issues session tokens. A session is
// the pair of a signed token and a server-side Session row; both must exist
// for a request to be authorized.
type AuthService struct {
	db             *gorm.DB
	issuer         *TokenIssuer
	userRepo       users.UserRepository
	sessionRepo    SessionRepository
	companyService *companies.CompanyService
	policyEngine   *policy.Engine
	auditLogger    *audit.Logger
	defaultMaxAge  time.Duration
}

func companyCanSignIn(status string) bool {
	return status == model.CompanyStatusActive || status == model.CompanyStatusPendingSetup
}

// SignIn runs the full gate chain: user lookup, lockout gate, credential
// comparison, suspension and company-state checks, and password expiry. Each
// rejection is a distinct typed error so the client can branch on the reason;
// only bad credentials stay intentionally generic.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// lockout gate runs before any credential comparison
	eligibility, err := s.policyEngine.CanUserLogin(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanLogin {
		if eligibility.Reason == policy.ReasonAccountLocked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if !common.VerifyPassword(user.Password, input.Password) {
		if _, err := s.policyEngine.HandleFailedLogin(ctx, user.ID, input.IP, input.UserAgent); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if user.Status == model.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	company, err := s.companyService.GetCompany(ctx, user.CompanyID)
	if errors.Is(err, companies.ErrCompanyNotFound) {
		return nil, ErrCompanyInactive
	}
	if err != nil {
		return nil, err
	}
	if !companyCanSignIn(company.Status) {
		return nil, ErrCompanyInactive
	}

	needsChange, err := s.policyEngine.NeedsPasswordChange(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if needsChange {
		return nil, ErrPasswordExpired
	}

	if err := s.policyEngine.ResetFailedAttempts(ctx, user.ID); err != nil {
		return nil, err
	}

	maxAge := s.defaultMaxAge
	config, err := s.companyService.GetSecurityConfig(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	if config != nil && config.SessionTimeoutMins > 0 {
		maxAge = time.Duration(config.SessionTimeoutMins) * time.Minute
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.issuer.Issue(user, company, sessionID, maxAge)
	if err != nil {
		return nil, err
	}

	if config != nil && config.EnforceSingleSession {
		if _, err := s.sessionRepo.DeleteByUserIDs(ctx, []uint{user.ID}); err != nil {
			return nil, err
		}
	}

	session := model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		TokenHash: common.HashToken(token),
		IP:        input.IP,
		UserAgent: input.UserAgent,
		ExpiresAt: expiresAt,
	}
	if err := s.sessionRepo.Create(ctx, &session); err != nil {
		return nil, err
	}

	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Action:    audit.ActionLogin,
		IP:        input.IP,
		UserAgent: input.UserAgent,
	})
	return &SignInResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// SignOut deletes the server-side session row. The token becomes unusable on
// the next request regardless of its remaining lifetime.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// ChangePassword verifies the current password then delegates to the policy
// engine, which enforces reuse rules and rotates history atomically.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword string, newPassword string, ip string, userAgent string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return users.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !common.VerifyPassword(user.Password, currentPassword) {
		return ErrCurrentPassword
	}
	return s.policyEngine.ChangePassword(ctx, userID, user.CompanyID, newPassword, ip, userAgent)
}

// Authorize re-validates a presented token against current store state. The
// token snapshot is never trusted for authorization: user status, company
// status and the session row are all re-fetched so administrative actions
// take effect on the very next request. All checks are pure reads.
func (s *AuthService) Authorize(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Status == model.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	company, err := s.companyService.GetCompany(ctx, user.CompanyID)
	if errors.Is(err, companies.ErrCompanyNotFound) {
		return nil, ErrCompanyInactive
	}
	if err != nil {
		return nil, err
	}
	if company.Status == model.CompanyStatusInactive {
		return nil, ErrCompanyInactive
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if session.TokenHash != common.HashToken(token) || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

type InvalidateSessionsOptions struct {
	UserIDs   []uint
	CompanyID uint
	Reason    string
	ActorID   uint
	IP        string
	UserAgent string
}

// InvalidateSessions force-logs-out the given users, or every user of the
// given company, by deleting their session rows. The deletion and its single
// audit entry commit in one transaction.
func (s *AuthService) InvalidateSessions(ctx context.Context, opts InvalidateSessionsOptions) (int64, error) {
	userIDs := opts.UserIDs
	if opts.CompanyID != 0 {
		ids, err := s.userRepo.ListIDsByCompany(ctx, opts.CompanyID)
		if err != nil {
			return 0, err
		}
		userIDs = append(userIDs, ids...)
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	var terminated int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		terminated, err = s.sessionRepo.WithTx(tx).DeleteByUserIDs(ctx, userIDs)
		if err != nil {
			return err
		}
		return s.auditLogger.RecordIn(ctx, tx, audit.Entry{
			UserID:    opts.ActorID,
			CompanyID: opts.CompanyID,
			Action:    audit.ActionSessionsTerminated,
			Details:   opts.Reason,
			IP:        opts.IP,
			UserAgent: opts.UserAgent,
			Metadata: map[string]string{
				"sessions_terminated": fmt.Sprint(terminated),
				"users_affected":      fmt.Sprint(len(userIDs)),
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return terminated, nil
}

// PurgeExpiredSessions removes session rows past their expiry. Called
// periodically; expired rows are already rejected by Authorize, this only
// keeps the table small.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx)
}

func NewAuthService(
	db *gorm.DB,
	issuer *TokenIssuer,
	userRepo users.UserRepository,
	sessionRepo SessionRepository,
	companyService *companies.CompanyService,
	policyEngine *policy.Engine,
	auditLogger *audit.Logger,
	defaultMaxAge time.Duration,
) *AuthService {
	return &AuthService{
		db:             db,
		issuer:         issuer,
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		companyService: companyService,
		policyEngine:   policyEngine,
		auditLogger:    auditLogger,
		defaultMaxAge:  defaultMaxAge,
	}
}
