package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	CompanyStatusPendingSetup = "pending_setup"
	CompanyStatusActive       = "active"
	CompanyStatusSuspended    = "suspended"
	CompanyStatusInactive     = "inactive"
	CompanyStatusArchived     = "archived" // terminal, no further transitions
)

// Company is a tenant record. Each company owns its users and exactly one
// SecurityConfig created at company creation time.
type Company struct {
	ID             uint            `gorm:"primarykey"`
	Identifier     string          `gorm:"uniqueIndex;size:64;not null"`
	Name           string          `gorm:"size:128;not null"`
	Status         string          `gorm:"size:16;not null;default:pending_setup;index"`
	SecurityConfig *SecurityConfig `gorm:"foreignKey:CompanyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

// SecurityConfig holds the per-company password and session policy. It is a
// read-only input to the password policy engine; a company with no config row
// gets policy-disabled defaults (no lockout, no forced expiry).
type SecurityConfig struct {
	ID                   uint `gorm:"primarykey"`
	CompanyID            uint `gorm:"uniqueIndex;not null"`
	PasswordHistoryLimit int  `gorm:"not null;default:3"`
	PasswordExpiryDays   int  `gorm:"not null;default:90"`
	MaxFailedAttempts    int  `gorm:"not null;default:5"`
	SessionTimeoutMins   int  `gorm:"not null;default:60"`
	EnforceSingleSession bool `gorm:"not null;default:false"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (c *SecurityConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}
