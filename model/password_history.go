package model

import (
	"time"

	"gorm.io/gorm"
)

// PasswordHistory is an append-only list of previous password hashes per
// user. Rows are never pruned; the reuse check only looks back the company's
// history limit.
type PasswordHistory struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"index;not null"`
	CompanyID uint   `gorm:"index;not null"`
	Password  string `gorm:"size:64;not null"`
	CreatedAt time.Time
}

func (h *PasswordHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == 0 {
		h.ID = GenerateID()
	}
	return nil
}
