package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrCompanyInactive    = errors.New("company is not active")
	ErrPasswordExpired    = errors.New("password has expired and must be changed")
	ErrCurrentPassword    = errors.New("current password is incorrect")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrSessionInvalid     = errors.New("session no longer exists")
)

// Error codes surfaced to the sign-in client. The client UI branches on the
// specific code, so every gate rejection must map to a distinct one except
// bad credentials, which stay deliberately non-specific.
const (
	CodeCredentialsSignin = "CredentialsSignin"
	CodeAccessDenied      = "AccessDenied"
	CodeAccountLocked     = "AccountLocked"
	CodePasswordExpired   = "PasswordExpired"
)

func SignInErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAccountLocked):
		return CodeAccountLocked
	case errors.Is(err, ErrAccountSuspended), errors.Is(err, ErrCompanyInactive):
		return CodeAccessDenied
	case errors.Is(err, ErrPasswordExpired):
		return CodePasswordExpired
	default:
		return CodeCredentialsSignin
	}
}
