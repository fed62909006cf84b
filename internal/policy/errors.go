package policy

import "errors"

var (
	ErrPasswordReused = errors.New("password was used recently and cannot be reused")
)

const (
	ReasonUserNotFound  = "User not found"
	ReasonAccountLocked = "Account is locked"
)
