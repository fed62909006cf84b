package model

import "time"

// AuditLog is an append-only event record. Rows are never mutated or deleted.
type AuditLog struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	UserID    uint            `gorm:"index"` // zero for system events
	CompanyID uint            `gorm:"index"`
	Action    string          `gorm:"size:64;not null;index"` // login, login_failed, password_change...
	Details   string          `gorm:"size:512"`               // failure reason or context
	IP        string          `gorm:"size:45"`                // IPv4/IPv6
	UserAgent string          `gorm:"size:512"`
	Metadata  []AuditMetadata `gorm:"foreignKey:AuditLogID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// AuditMetadata is an optional key-value child row of an audit entry.
type AuditMetadata struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	AuditLogID uint64 `gorm:"index;not null"`
	Key        string `gorm:"size:64;not null;column:meta_key"`
	Value      string `gorm:"size:256;column:meta_value"`
}

func (AuditMetadata) TableName() string {
	return "audit_metadata"
}
