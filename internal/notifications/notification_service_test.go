package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func createTestUser(t *testing.T, db *gorm.DB, email string, companyID uint) *model.User {
	t.Helper()
	user := model.User{
		Email:     email,
		FullName:  "Test User",
		Password:  "x",
		Role:      model.RoleMember,
		Status:    model.UserStatusActive,
		CompanyID: companyID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	return &user
}

func newTestService(t *testing.T, db *gorm.DB) *NotificationService {
	t.Helper()
	return NewNotificationService(NewNotificationRepository(db), users.NewUserRepository(db))
}

func TestNotifyFansOutToCompany(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice@example.com", 1)
	bob := createTestUser(t, db, "bob@example.com", 1)
	createTestUser(t, db, "carol@example.com", 2)

	delivered, err := service.Notify(ctx, NotifyOptions{
		CompanyID: 1,
		Kind:      model.NotificationKindSecurity,
		Title:     "All sessions were terminated",
		Body:      "Sign in again to continue.",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}

	for _, user := range []*model.User{alice, bob} {
		list, err := service.ListForUser(ctx, user.ID, false, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 {
			t.Fatalf("notifications for %s = %d, want 1", user.Email, len(list))
		}
		if list[0].Kind != model.NotificationKindSecurity {
			t.Errorf("kind = %q, want %q", list[0].Kind, model.NotificationKindSecurity)
		}
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com", 1)

	if _, err := service.Notify(ctx, NotifyOptions{UserIDs: []uint{user.ID}, Title: "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := service.Notify(ctx, NotifyOptions{UserIDs: []uint{user.ID}, Title: "second"}); err != nil {
		t.Fatal(err)
	}

	unread, err := service.CountUnread(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unread != 2 {
		t.Errorf("unread = %d, want 2", unread)
	}

	list, err := service.ListForUser(ctx, user.ID, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := service.MarkRead(ctx, list[0].ID, user.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, _ = service.CountUnread(ctx, user.ID)
	if unread != 1 {
		t.Errorf("unread after MarkRead = %d, want 1", unread)
	}
	unreadOnly, err := service.ListForUser(ctx, user.ID, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unreadOnly) != 1 {
		t.Errorf("unread list length = %d, want 1", len(unreadOnly))
	}
}

func TestNotificationOwnership(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com", 1)
	bob := createTestUser(t, db, "bob@example.com", 1)

	if _, err := service.Notify(ctx, NotifyOptions{UserIDs: []uint{alice.ID}, Title: "for alice"}); err != nil {
		t.Fatal(err)
	}
	list, err := service.ListForUser(ctx, alice.ID, false, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := service.MarkRead(ctx, list[0].ID, bob.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("MarkRead by non-owner: err = %v, want ErrNotOwner", err)
	}
	if err := service.Delete(ctx, list[0].ID, bob.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Delete by non-owner: err = %v, want ErrNotOwner", err)
	}
	if err := service.Delete(ctx, 999999, alice.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("Delete missing: err = %v, want ErrNotificationNotFound", err)
	}

	if err := service.Delete(ctx, list[0].ID, alice.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	remaining, _ := service.ListForUser(ctx, alice.ID, false, 0)
	if len(remaining) != 0 {
		t.Errorf("notifications after delete = %d, want 0", len(remaining))
	}
}
