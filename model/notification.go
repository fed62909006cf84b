package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationKindInfo     = "info"
	NotificationKindWarning  = "warning"
	NotificationKindSecurity = "security"
)

type Notification struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"index;not null"`
	Kind      string `gorm:"size:32;not null;default:info"`
	Title     string `gorm:"size:128;not null"`
	Body      string `gorm:"size:1024"`
	Read      bool   `gorm:"column:is_read;default:false;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == 0 {
		n.ID = GenerateID()
	}
	return nil
}
