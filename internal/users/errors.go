package users

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrInvalidStatus     = errors.New("invalid user status")
	ErrInvitationInvalid = errors.New("invitation not found or already used")
	ErrInvitationExpired = errors.New("invitation expired")
)
