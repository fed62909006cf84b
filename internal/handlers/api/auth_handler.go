package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/internal/middlewares/authguard"
	"github.com/opsdeck/console/internal/policy"
)

type AuthHandler struct {
	authService    AuthService
	cookieName     string
	cookieSecure   bool
	cookieHttpOnly bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userInfo  `json:"user"`
}

type userInfo struct {
	UserID    uint   `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CompanyID uint   `json:"companyId"`
}

func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := h.authService.SignIn(ctx.Context(), auth.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		code := auth.SignInErrorCode(err)
		status := fiber.StatusUnauthorized
		if code != auth.CodeCredentialsSignin {
			status = fiber.StatusForbidden
		}
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials),
			errors.Is(err, auth.ErrAccountLocked),
			errors.Is(err, auth.ErrAccountSuspended),
			errors.Is(err, auth.ErrCompanyInactive),
			errors.Is(err, auth.ErrPasswordExpired):
			return ctx.Status(status).JSON(
				NewReasonedErrorResponse(status, "auth", code, err.Error()),
			)
		default:
			return err
		}
	}

	if h.cookieName != "" {
		ctx.Cookie(&fiber.Cookie{
			Name:     h.cookieName,
			Value:    result.Token,
			Expires:  result.ExpiresAt,
			Secure:   h.cookieSecure,
			HTTPOnly: h.cookieHttpOnly,
		})
	}
	return ctx.JSON(NewDataResponse(loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: userInfo{
			UserID:    result.User.ID,
			Email:     result.User.Email,
			FullName:  result.User.FullName,
			Role:      result.User.Role,
			Status:    result.User.Status,
			CompanyID: result.User.CompanyID,
		},
	}))
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)
	if claims != nil {
		if err := h.authService.SignOut(ctx.Context(), claims.SessionID); err != nil {
			return err
		}
	}
	if h.cookieName != "" {
		ctx.ClearCookie(h.cookieName)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return errors.New("currentPassword and newPassword are required")
	}
	return nil
}

func (h *AuthHandler) PostChangePassword(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)

	var req changePasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	err := h.authService.ChangePassword(ctx.Context(), claims.UserID(), req.CurrentPassword, req.NewPassword, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	switch {
	case err == nil:
		return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
	case errors.Is(err, auth.ErrCurrentPassword):
		return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, policy.ErrPasswordReused):
		return fiber.NewError(fiber.StatusBadRequest, "New password was used recently and cannot be reused")
	default:
		return err
	}
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)
	return ctx.JSON(NewDataResponse(userInfo{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		Role:      claims.Role,
		Status:    claims.Status,
		CompanyID: claims.CompanyID,
	}))
}

func NewAuthHandler(authService AuthService, cookieName string, cookieSecure bool, cookieHttpOnly bool) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		cookieName:     cookieName,
		cookieSecure:   cookieSecure,
		cookieHttpOnly: cookieHttpOnly,
	}
}
