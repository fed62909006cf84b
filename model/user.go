package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleSuperAdmin   = "super_admin"
	RoleCompanyAdmin = "company_admin"
	RoleMember       = "member"
)

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusLocked    = "locked"
)

// User stores user account information. Users are never deleted, only
// status-transitioned. Status moves to locked only when the failed-attempt
// threshold is breached, and out of locked only via a password change or an
// administrative lockout reset.
type User struct {
	ID                  uint   `gorm:"primarykey"`
	Email               string `gorm:"uniqueIndex;size:256;not null"`
	FullName            string `gorm:"size:64;not null"`
	Password            string `gorm:"size:64;not null"`
	Role                string `gorm:"size:32;not null;default:member"`
	Status              string `gorm:"size:16;not null;default:active;index"`
	CompanyID           uint   `gorm:"index;not null"`
	FailedLoginAttempts int    `gorm:"not null;default:0"`
	LastFailedAttempt   *time.Time
	LastPasswordChange  time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}
