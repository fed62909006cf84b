package model

import "time"

// Session is the server-side record of an issued session token. A token is
// only honored while its matching row exists; deleting the row forces logout
// even though the token itself is still cryptographically valid.
type Session struct {
	ID        string `gorm:"primarykey;size:36"` // matches the token's sid claim
	UserID    uint   `gorm:"index;not null"`
	CompanyID uint   `gorm:"index;not null"`
	TokenHash string `gorm:"size:64;not null"`
	IP        string `gorm:"size:45"`
	UserAgent string `gorm:"size:512"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}
