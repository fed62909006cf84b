package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/internal/middlewares/authguard"
)

type SessionHandler struct {
	authService AuthService
}

type invalidateSessionsRequest struct {
	UserIDs   []uint `json:"userIds"`
	CompanyID uint   `json:"companyId"`
	Reason    string `json:"reason"`
}

func (r *invalidateSessionsRequest) Validate() error {
	if len(r.UserIDs) == 0 && r.CompanyID == 0 {
		return errors.New("userIds or companyId is required")
	}
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

type invalidateSessionsResponse struct {
	Success            bool  `json:"success"`
	SessionsTerminated int64 `json:"sessionsTerminated"`
}

// PostInvalidateSessions force-logs-out users whose tokens are still
// cryptographically valid by deleting their server-side session rows.
func (h *SessionHandler) PostInvalidateSessions(ctx *fiber.Ctx) error {
	var req invalidateSessionsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	claims := authguard.Claims(ctx)
	terminated, err := h.authService.InvalidateSessions(ctx.Context(), auth.InvalidateSessionsOptions{
		UserIDs:   req.UserIDs,
		CompanyID: req.CompanyID,
		Reason:    req.Reason,
		ActorID:   claims.UserID(),
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(invalidateSessionsResponse{
		Success:            true,
		SessionsTerminated: terminated,
	}))
}

func authInvalidateForUser(userID uint, actorID uint, ctx *fiber.Ctx) auth.InvalidateSessionsOptions {
	return auth.InvalidateSessionsOptions{
		UserIDs:   []uint{userID},
		Reason:    "user suspended",
		ActorID:   actorID,
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func NewSessionHandler(authService AuthService) *SessionHandler {
	return &SessionHandler{authService: authService}
}
