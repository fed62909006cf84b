package api

import (
	"context"

	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/notifications"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
)

type AuthService interface {
	SignIn(ctx context.Context, input auth.SignInInput) (*auth.SignInResult, error)
	SignOut(ctx context.Context, sessionID string) error
	ChangePassword(ctx context.Context, userID uint, currentPassword string, newPassword string, ip string, userAgent string) error
	InvalidateSessions(ctx context.Context, opts auth.InvalidateSessionsOptions) (int64, error)
}

type CompanyService interface {
	CreateCompany(ctx context.Context, opts companies.CreateCompanyOptions) (*model.Company, error)
	GetCompany(ctx context.Context, companyID uint) (*model.Company, error)
	ListCompanies(ctx context.Context, status string) ([]*model.Company, error)
	UpdateCompanyStatus(ctx context.Context, companyID uint, status string, actorID uint, ip string, userAgent string) error
	UpdateCompanyName(ctx context.Context, companyID uint, name string, actorID uint, ip string, userAgent string) error
	UpdateSecurityConfig(ctx context.Context, companyID uint, update companies.SecurityConfigUpdate, actorID uint, ip string, userAgent string) error
	GetSecurityConfig(ctx context.Context, companyID uint) (*model.SecurityConfig, error)
}

type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	ListCompanyUsers(ctx context.Context, companyID uint) ([]*model.User, error)
	CreateUser(ctx context.Context, opts users.CreateUserOptions) (*model.User, error)
	SetUserStatus(ctx context.Context, userID uint, status string, actorID uint, ip string, userAgent string) error
	ResetLockout(ctx context.Context, userID uint, actorID uint, ip string, userAgent string) error
	InviteUser(ctx context.Context, opts users.InviteUserOptions) (*model.Invitation, error)
	ListInvitations(ctx context.Context, companyID uint) ([]*model.Invitation, error)
	AcceptInvitation(ctx context.Context, token string, fullName string, password string, ip string, userAgent string) (*model.User, error)
}

type NotificationService interface {
	Notify(ctx context.Context, opts notifications.NotifyOptions) (int, error)
	ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, notificationID uint, userID uint) error
	Delete(ctx context.Context, notificationID uint, userID uint) error
}
