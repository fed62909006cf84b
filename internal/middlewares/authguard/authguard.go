package authguard

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/internal/users"
)

// HeaderAuthError carries the machine-readable rejection reason. The client
// interceptor maps each value to a specific message and forces sign-out, so
// "wrong password" and "suspended mid-session" never look the same.
const HeaderAuthError = "x-auth-error"

const (
	ReasonAccountSuspended = "account_suspended"
	ReasonCompanyInactive  = "company_inactive"
	ReasonInvalidSession   = "invalid_session"
)

const claimsContextKey = "authClaims"

type Authorizer interface {
	Authorize(ctx context.Context, token string) (*auth.Claims, error)
}

type Config struct {
	Authorizer Authorizer
	CookieName string
	LoginPath  string
}

func extractToken(ctx *fiber.Ctx, cookieName string) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookieName != "" {
		return ctx.Cookies(cookieName)
	}
	return ""
}

// New returns the request gatekeeper. It runs before every protected route
// and re-validates live user, company and session state on each request; all
// checks are pure reads and the first failure short-circuits.
func New(config Config) fiber.Handler {
	loginPath := config.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(ctx *fiber.Ctx) error {
		token := extractToken(ctx, config.CookieName)
		if token == "" {
			// a navigational boundary, not an API error
			if ctx.Accepts("text/html") != "" {
				return ctx.Redirect(loginPath)
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}

		claims, err := config.Authorizer.Authorize(ctx.Context(), token)
		switch {
		case err == nil:
			ctx.Locals(claimsContextKey, claims)
			return ctx.Next()
		case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, users.ErrUserNotFound):
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		case errors.Is(err, auth.ErrAccountSuspended):
			ctx.Set(HeaderAuthError, ReasonAccountSuspended)
			return fiber.NewError(fiber.StatusForbidden, "Account is suspended")
		case errors.Is(err, auth.ErrCompanyInactive):
			ctx.Set(HeaderAuthError, ReasonCompanyInactive)
			return fiber.NewError(fiber.StatusForbidden, "Company is inactive")
		case errors.Is(err, auth.ErrSessionInvalid):
			ctx.Set(HeaderAuthError, ReasonInvalidSession)
			return fiber.NewError(fiber.StatusUnauthorized, "Session is no longer valid")
		default:
			return err
		}
	}
}

// Claims returns the authorized token claims stored by the gatekeeper.
func Claims(ctx *fiber.Ctx) *auth.Claims {
	claims, _ := ctx.Locals(claimsContextKey).(*auth.Claims)
	return claims
}

// RequireRole rejects requests whose authorized user has none of the given
// roles. Must run after New.
func RequireRole(roles ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		claims := Claims(ctx)
		if claims == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		for _, role := range roles {
			if claims.Role == role {
				return ctx.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
	}
}
