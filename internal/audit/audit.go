package audit

import (
	"context"
	"log/slog"
	"sort"

	"github.com/opsdeck/console/model"
	"gorm.io/gorm"
)

const (
	ActionLogin                 = "login"
	ActionLoginFailed           = "login_failed"
	ActionPasswordChange        = "password_change"
	ActionSessionsTerminated    = "sessions_terminated"
	ActionLockoutReset          = "lockout_reset"
	ActionUserCreated           = "user_created"
	ActionUserStatusChanged     = "user_status_changed"
	ActionUserInvited           = "user_invited"
	ActionInvitationAccepted    = "invitation_accepted"
	ActionCompanyCreated        = "company_created"
	ActionCompanyUpdated        = "company_updated"
	ActionCompanyStatusChanged  = "company_status_changed"
	ActionSecurityConfigUpdated = "security_config_updated"
)

type Entry struct {
	UserID    uint
	CompanyID uint
	Action    string
	Details   string
	IP        string
	UserAgent string
	Metadata  map[string]string
}

// Logger appends immutable audit events. It is a side-effect sink: Record
// never fails the caller, write errors are logged server-side and dropped.
type Logger struct {
	repo AuditLogRepository
}

func (l *Logger) WithTx(tx *gorm.DB) *Logger {
	return &Logger{repo: l.repo.WithTx(tx)}
}

func buildEvent(entry Entry) *model.AuditLog {
	event := &model.AuditLog{
		UserID:    entry.UserID,
		CompanyID: entry.CompanyID,
		Action:    entry.Action,
		Details:   entry.Details,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
	}
	keys := make([]string, 0, len(entry.Metadata))
	for key := range entry.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		event.Metadata = append(event.Metadata, model.AuditMetadata{
			Key:   key,
			Value: entry.Metadata[key],
		})
	}
	return event
}

// Record appends an audit entry, swallowing any storage error so that
// observability problems never block the primary decision.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if err := l.repo.Create(ctx, buildEvent(entry)); err != nil {
		slog.Error("Failed to record audit event", "action", entry.Action, "user", entry.UserID, "error", err)
	}
}

// RecordIn appends an audit entry inside the caller's transaction and returns
// the error, for operations whose audit row must commit atomically with them.
func (l *Logger) RecordIn(ctx context.Context, tx *gorm.DB, entry Entry) error {
	return l.repo.WithTx(tx).Create(ctx, buildEvent(entry))
}

// Recent returns the newest events, optionally filtered by company.
func (l *Logger) Recent(ctx context.Context, companyID uint, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return l.repo.Find(ctx, companyID, limit)
}

func NewLogger(repo AuditLogRepository) *Logger {
	return &Logger{repo: repo}
}
