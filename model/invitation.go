package model

import (
	"time"

	"gorm.io/gorm"
)

// Invitation is a pending user record. Accepting a valid invitation creates
// the user account and soft-deletes the invitation.
type Invitation struct {
	ID        uint   `gorm:"primarykey"`
	Email     string `gorm:"index;size:256;not null"`
	FullName  string `gorm:"size:64"`
	Role      string `gorm:"size:32;not null;default:member"`
	CompanyID uint   `gorm:"index;not null"`
	InvitedBy uint   `gorm:"not null"`
	Token     string `gorm:"uniqueIndex;size:64;not null"`
	Accepted  bool   `gorm:"default:false;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == 0 {
		i.ID = GenerateID()
	}
	return nil
}
