package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/common"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/policy"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type testEnv struct {
	db             *gorm.DB
	authService    *AuthService
	companyService *companies.CompanyService
	company        *model.Company
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	auditLogger := audit.NewLogger(audit.NewAuditLogRepository(db))
	companyService := companies.NewCompanyService(db, companies.NewCompanyRepository(db), companies.NewSecurityConfigRepository(db), auditLogger, nil)
	userRepo := users.NewUserRepository(db)
	policyEngine := policy.NewEngine(db, userRepo, policy.NewPasswordHistoryRepository(db), companyService, auditLogger)
	authService := NewAuthService(db, NewTokenIssuer([]byte(testTokenSecret)), userRepo, NewSessionRepository(db), companyService, policyEngine, auditLogger, time.Hour)

	company, err := companyService.CreateCompany(context.Background(), companies.CreateCompanyOptions{
		Name:       "Acme Corp",
		Identifier: "acme",
	})
	if err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}
	return &testEnv{
		db:             db,
		authService:    authService,
		companyService: companyService,
		company:        company,
	}
}

func (env *testEnv) createUser(t *testing.T, email string, password string, status string) *model.User {
	t.Helper()
	hash, err := common.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := model.User{
		Email:              email,
		FullName:           "Test User",
		Password:           hash,
		Role:               model.RoleMember,
		Status:             status,
		CompanyID:          env.company.ID,
		LastPasswordChange: time.Now(),
	}
	if err := env.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

func (env *testEnv) signIn(t *testing.T, email string, password string) *SignInResult {
	t.Helper()
	result, err := env.authService.SignIn(context.Background(), SignInInput{
		Email:    email,
		Password: password,
		IP:       "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("SignIn(%s): %v", email, err)
	}
	return result
}

func TestSignInAndAuthorize(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)

	result := env.signIn(t, "alice@example.com", "s3cret-pw")
	if result.Token == "" {
		t.Fatal("SignIn returned an empty token")
	}
	if result.User.ID != user.ID {
		t.Errorf("SignIn user = %d, want %d", result.User.ID, user.ID)
	}

	var sessionCount int64
	env.db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&sessionCount)
	if sessionCount != 1 {
		t.Fatalf("session rows = %d, want 1", sessionCount)
	}

	claims, err := env.authService.Authorize(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if claims.UserID() != user.ID {
		t.Errorf("claims user = %d, want %d", claims.UserID(), user.ID)
	}
	if claims.CompanyID != env.company.ID {
		t.Errorf("claims company = %d, want %d", claims.CompanyID, env.company.ID)
	}

	var loginEvents int64
	env.db.Model(&model.AuditLog{}).Where("action = ?", audit.ActionLogin).Count(&loginEvents)
	if loginEvents != 1 {
		t.Errorf("login audit events = %d, want 1", loginEvents)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)

	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	var got model.User
	env.db.First(&got, "id = ?", user.ID)
	if got.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", got.FailedLoginAttempts)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "ghost@example.com", Password: "whatever"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

// A locked account is rejected before the password is even compared, so the
// correct password gets the same lockout answer as a wrong one.
func TestSignInLockedRejectsCorrectPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusLocked)

	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "s3cret-pw"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	// the rejected attempt must not advance the failure counter
	var got model.User
	env.db.First(&got, "id = ?", user.ID)
	if got.FailedLoginAttempts != 0 {
		t.Errorf("failed attempts = %d, want 0", got.FailedLoginAttempts)
	}
}

func TestSignInLockoutProgression(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	// default policy locks after 5 failures
	for i := 0; i < 5; i++ {
		_, err := env.authService.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	_, err := env.authService.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "s3cret-pw"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("after threshold: err = %v, want ErrAccountLocked", err)
	}
}

func TestSignInSuspendedAccount(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusSuspended)

	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "s3cret-pw"})
	if !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("err = %v, want ErrAccountSuspended", err)
	}
}

func TestSignInInactiveCompany(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	if err := env.db.Model(env.company).Update("status", model.CompanyStatusInactive).Error; err != nil {
		t.Fatal(err)
	}

	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "s3cret-pw"})
	if !errors.Is(err, ErrCompanyInactive) {
		t.Fatalf("err = %v, want ErrCompanyInactive", err)
	}
}

func TestSignInExpiredPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)

	// default policy expires passwords after 90 days
	stale := time.Now().AddDate(0, 0, -91)
	if err := env.db.Model(user).Update("last_password_change", stale).Error; err != nil {
		t.Fatal(err)
	}

	_, err := env.authService.SignIn(context.Background(), SignInInput{Email: "alice@example.com", Password: "s3cret-pw"})
	if !errors.Is(err, ErrPasswordExpired) {
		t.Fatalf("err = %v, want ErrPasswordExpired", err)
	}
}

func TestSignInResetsFailedAttempts(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.authService.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "wrong"})
	}
	env.signIn(t, "alice@example.com", "s3cret-pw")

	var got model.User
	env.db.First(&got, "id = ?", user.ID)
	if got.FailedLoginAttempts != 0 {
		t.Errorf("failed attempts after successful login = %d, want 0", got.FailedLoginAttempts)
	}
}

func TestSignInSessionTimeoutFromConfig(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	err := env.db.Model(&model.SecurityConfig{}).
		Where("company_id = ?", env.company.ID).
		Update("session_timeout_mins", 15).Error
	if err != nil {
		t.Fatal(err)
	}

	result := env.signIn(t, "alice@example.com", "s3cret-pw")
	ttl := time.Until(result.ExpiresAt)
	if ttl > 15*time.Minute || ttl < 14*time.Minute {
		t.Errorf("session ttl = %v, want ~15m", ttl)
	}
}

func TestSignInEnforceSingleSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	err := env.db.Model(&model.SecurityConfig{}).
		Where("company_id = ?", env.company.ID).
		Update("enforce_single_session", true).Error
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first := env.signIn(t, "alice@example.com", "s3cret-pw")
	second := env.signIn(t, "alice@example.com", "s3cret-pw")

	if _, err := env.authService.Authorize(ctx, first.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("first token after second login: err = %v, want ErrSessionInvalid", err)
	}
	if _, err := env.authService.Authorize(ctx, second.Token); err != nil {
		t.Fatalf("second token: %v", err)
	}

	var sessionCount int64
	env.db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&sessionCount)
	if sessionCount != 1 {
		t.Errorf("session rows = %d, want 1", sessionCount)
	}
}

func TestAuthorizeAfterSignOut(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	result := env.signIn(t, "alice@example.com", "s3cret-pw")
	claims, err := env.authService.Authorize(ctx, result.Token)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.authService.SignOut(ctx, claims.SessionID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	// the token itself is still signed and unexpired, only the row is gone
	if _, err := env.authService.Authorize(ctx, result.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("err = %v, want ErrSessionInvalid", err)
	}
}

func TestAuthorizeSuspendedMidSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	result := env.signIn(t, "alice@example.com", "s3cret-pw")
	if err := env.db.Model(user).Update("status", model.UserStatusSuspended).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := env.authService.Authorize(ctx, result.Token); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("err = %v, want ErrAccountSuspended", err)
	}
}

func TestAuthorizeCompanyDeactivatedMidSession(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	result := env.signIn(t, "alice@example.com", "s3cret-pw")
	if err := env.db.Model(env.company).Update("status", model.CompanyStatusInactive).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := env.authService.Authorize(ctx, result.Token); !errors.Is(err, ErrCompanyInactive) {
		t.Fatalf("err = %v, want ErrCompanyInactive", err)
	}
}

func TestAuthorizeRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.authService.Authorize(context.Background(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAuthorizeRejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)

	foreign := NewTokenIssuer([]byte("another-secret-another-secret-32"))
	token, _, err := foreign.Issue(user, env.company, "deadbeef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.authService.Authorize(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	err := env.authService.ChangePassword(ctx, user.ID, "wrong-current", "a-new-password", "10.0.0.1", "test")
	if !errors.Is(err, ErrCurrentPassword) {
		t.Fatalf("err = %v, want ErrCurrentPassword", err)
	}

	if err := env.authService.ChangePassword(ctx, user.ID, "s3cret-pw", "a-new-password", "10.0.0.1", "test"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	env.signIn(t, "alice@example.com", "a-new-password")
}

func TestInvalidateSessionsByCompany(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	env.createUser(t, "bob@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	alice := env.signIn(t, "alice@example.com", "s3cret-pw")
	bob := env.signIn(t, "bob@example.com", "s3cret-pw")

	terminated, err := env.authService.InvalidateSessions(ctx, InvalidateSessionsOptions{
		CompanyID: env.company.ID,
		Reason:    "security incident",
	})
	if err != nil {
		t.Fatalf("InvalidateSessions: %v", err)
	}
	if terminated != 2 {
		t.Errorf("terminated = %d, want 2", terminated)
	}

	for _, token := range []string{alice.Token, bob.Token} {
		if _, err := env.authService.Authorize(ctx, token); !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("err = %v, want ErrSessionInvalid", err)
		}
	}

	// one audit row for the bulk operation, not one per session
	var events []*model.AuditLog
	err = env.db.Preload("Metadata").Where("action = ?", audit.ActionSessionsTerminated).Find(&events).Error
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("sessions_terminated audit events = %d, want 1", len(events))
	}
	meta := map[string]string{}
	for _, m := range events[0].Metadata {
		meta[m.Key] = m.Value
	}
	if meta["sessions_terminated"] != "2" {
		t.Errorf("sessions_terminated metadata = %q, want %q", meta["sessions_terminated"], "2")
	}
}

func TestInvalidateSessionsNoTargets(t *testing.T) {
	env := newTestEnv(t)
	terminated, err := env.authService.InvalidateSessions(context.Background(), InvalidateSessionsOptions{})
	if err != nil {
		t.Fatalf("InvalidateSessions: %v", err)
	}
	if terminated != 0 {
		t.Errorf("terminated = %d, want 0", terminated)
	}
	var count int64
	env.db.Model(&model.AuditLog{}).Where("action = ?", audit.ActionSessionsTerminated).Count(&count)
	if count != 0 {
		t.Errorf("audit events for a no-op invalidation = %d, want 0", count)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice@example.com", "s3cret-pw", model.UserStatusActive)
	ctx := context.Background()

	live := env.signIn(t, "alice@example.com", "s3cret-pw")
	expired := model.Session{
		ID:        "expired-session",
		UserID:    user.ID,
		CompanyID: env.company.ID,
		TokenHash: "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := env.db.Create(&expired).Error; err != nil {
		t.Fatal(err)
	}

	purged, err := env.authService.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if _, err := env.authService.Authorize(ctx, live.Token); err != nil {
		t.Errorf("live session purged: %v", err)
	}
}
