package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/common"
	"github.com/opsdeck/console/internal/mail"
	"github.com/opsdeck/console/model"
	"github.com/opsdeck/console/params"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Email     string
	FullName  string
	Password  string
	Role      string
	CompanyID uint
	ActorID   uint
	IP        string
	UserAgent string
}

type InviteUserOptions struct {
	Email       string
	FullName    string
	Role        string
	CompanyID   uint
	CompanyName string
	InvitedBy   uint
	IP          string
	UserAgent   string
}

type UserService struct {
	db             *gorm.DB
	userRepo       UserRepository
	invitationRepo InvitationRepository
	auditLogger    *audit.Logger
	mailSender     mail.MailSender
	baseURL        string
	siteName       string
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := netmail.ParseAddress(email); err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) ListCompanyUsers(ctx context.Context, companyID uint) ([]*model.User, error) {
	return s.userRepo.ListByCompany(ctx, companyID)
}

func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	passwordHash, err := common.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}
	role := opts.Role
	if role == "" {
		role = model.RoleMember
	}
	user := model.User{
		Email:              opts.Email,
		FullName:           opts.FullName,
		Password:           passwordHash,
		Role:               role,
		Status:             model.UserStatusActive,
		CompanyID:          opts.CompanyID,
		LastPasswordChange: time.Now(),
	}

	var mysqlErr *mysql.MySQLError
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrEmailRegistered
		}
		return nil, err
	}

	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    opts.ActorID,
		CompanyID: opts.CompanyID,
		Action:    audit.ActionUserCreated,
		Details:   user.Email,
		IP:        opts.IP,
		UserAgent: opts.UserAgent,
	})
	return &user, nil
}

// SetUserStatus transitions a user between active and suspended. The locked
// status is owned by the lockout state machine and cannot be set here.
func (s *UserService) SetUserStatus(ctx context.Context, userID uint, status string, actorID uint, ip string, userAgent string) error {
	if status != model.UserStatusActive && status != model.UserStatusSuspended {
		return ErrInvalidStatus
	}
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status == status {
		return nil
	}
	if _, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    actorID,
		CompanyID: user.CompanyID,
		Action:    audit.ActionUserStatusChanged,
		Details:   user.Status + " -> " + status,
		IP:        ip,
		UserAgent: userAgent,
		Metadata:  map[string]string{"target_user": fmt.Sprint(userID)},
	})
	return nil
}

// ResetLockout is the administrative path out of the locked status: it zeroes
// the failed-attempt counter, clears the last failure timestamp and, when the
// account is locked, re-activates it.
func (s *UserService) ResetLockout(ctx context.Context, userID uint, actorID uint, ip string, userAgent string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	columns := map[string]interface{}{
		"failed_login_attempts": 0,
		"last_failed_attempt":   nil,
	}
	if user.Status == model.UserStatusLocked {
		columns["status"] = model.UserStatusActive
	}
	if _, err := s.userRepo.Updates(ctx, userID, columns); err != nil {
		return err
	}
	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    actorID,
		CompanyID: user.CompanyID,
		Action:    audit.ActionLockoutReset,
		IP:        ip,
		UserAgent: userAgent,
		Metadata:  map[string]string{"target_user": fmt.Sprint(userID)},
	})
	return nil
}

func (s *UserService) InviteUser(ctx context.Context, opts InviteUserOptions) (*model.Invitation, error) {
	if _, err := netmail.ParseAddress(opts.Email); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, opts.Email); err == nil {
		return nil, ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token, err := common.GenerateSecret(params.InvitationTokenLength)
	if err != nil {
		return nil, err
	}
	role := opts.Role
	if role == "" {
		role = model.RoleMember
	}
	invitation := model.Invitation{
		Email:     opts.Email,
		FullName:  opts.FullName,
		Role:      role,
		CompanyID: opts.CompanyID,
		InvitedBy: opts.InvitedBy,
		Token:     token,
	}
	if err := s.invitationRepo.Create(ctx, &invitation); err != nil {
		return nil, err
	}

	if s.mailSender != nil {
		msg := mail.NewInvitationMessage(s.baseURL, s.siteName, opts.Email, opts.CompanyName, token)
		if err := s.mailSender.Send(msg); err != nil {
			slog.Error("Failed to send invitation email", "email", opts.Email, "error", err)
		}
	}

	s.auditLogger.Record(ctx, audit.Entry{
		UserID:    opts.InvitedBy,
		CompanyID: opts.CompanyID,
		Action:    audit.ActionUserInvited,
		Details:   opts.Email,
		IP:        opts.IP,
		UserAgent: opts.UserAgent,
	})
	return &invitation, nil
}

func (s *UserService) ListInvitations(ctx context.Context, companyID uint) ([]*model.Invitation, error) {
	return s.invitationRepo.ListByCompany(ctx, companyID)
}

// AcceptInvitation redeems an invitation token, creating the user account and
// retiring the invitation in a single transaction.
func (s *UserService) AcceptInvitation(ctx context.Context, token string, fullName string, password string, ip string, userAgent string) (*model.User, error) {
	invitation, err := s.invitationRepo.GetByToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, err
	}
	if invitation.Accepted {
		return nil, ErrInvitationInvalid
	}
	if time.Since(invitation.CreatedAt) > params.InvitationExpiration {
		return nil, ErrInvitationExpired
	}

	passwordHash, err := common.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if fullName == "" {
		fullName = invitation.FullName
	}
	user := model.User{
		Email:              invitation.Email,
		FullName:           fullName,
		Password:           passwordHash,
		Role:               invitation.Role,
		Status:             model.UserStatusActive,
		CompanyID:          invitation.CompanyID,
		LastPasswordChange: time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, &user); err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				return ErrEmailRegistered
			}
			return err
		}
		updates := map[string]interface{}{
			"accepted":   true,
			"deleted_at": time.Now(),
		}
		affected, err := s.invitationRepo.WithTx(tx).Updates(ctx, invitation.ID, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvitationInvalid
		}
		return s.auditLogger.RecordIn(ctx, tx, audit.Entry{
			UserID:    user.ID,
			CompanyID: user.CompanyID,
			Action:    audit.ActionInvitationAccepted,
			Details:   user.Email,
			IP:        ip,
			UserAgent: userAgent,
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func NewUserService(db *gorm.DB, userRepo UserRepository, invitationRepo InvitationRepository, auditLogger *audit.Logger, mailSender mail.MailSender, baseURL string, siteName string) *UserService {
	return &UserService{
		db:             db,
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		auditLogger:    auditLogger,
		mailSender:     mailSender,
		baseURL:        baseURL,
		siteName:       siteName,
	}
}
