package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/middlewares/authguard"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"github.com/spf13/cast"
)

type UserHandler struct {
	userService    UserService
	companyService CompanyService
	authService    AuthService
}

type userResponse struct {
	UserID              uint      `json:"userId"`
	Email               string    `json:"email"`
	FullName            string    `json:"fullName"`
	Role                string    `json:"role"`
	Status              string    `json:"status"`
	CompanyID           uint      `json:"companyId"`
	FailedLoginAttempts int       `json:"failedLoginAttempts"`
	CreatedAt           time.Time `json:"createdAt"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		UserID:              user.ID,
		Email:               user.Email,
		FullName:            user.FullName,
		Role:                user.Role,
		Status:              user.Status,
		CompanyID:           user.CompanyID,
		FailedLoginAttempts: user.FailedLoginAttempts,
		CreatedAt:           user.CreatedAt,
	}
}

func mapUserError(err error) error {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	case errors.Is(err, users.ErrEmailRegistered):
		return fiber.NewError(fiber.StatusConflict, "Email already registered")
	case errors.Is(err, users.ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrInvitationInvalid):
		return fiber.NewError(fiber.StatusBadRequest, "Invitation not found or already used")
	case errors.Is(err, users.ErrInvitationExpired):
		return fiber.NewError(fiber.StatusBadRequest, "Invitation expired")
	default:
		return err
	}
}

func (h *UserHandler) GetCompanyUsers(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	userList, err := h.userService.ListCompanyUsers(ctx.Context(), companyID)
	if err != nil {
		return mapUserError(err)
	}
	resp := make([]userResponse, 0, len(userList))
	for _, user := range userList {
		resp = append(resp, newUserResponse(user))
	}
	return ctx.JSON(NewDataResponse(resp))
}

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r *createUserRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

func (h *UserHandler) PostCompanyUser(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	var req createUserRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	claims := authguard.Claims(ctx)
	user, err := h.userService.CreateUser(ctx.Context(), users.CreateUserOptions{
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  req.Password,
		Role:      req.Role,
		CompanyID: companyID,
		ActorID:   claims.UserID(),
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return mapUserError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserResponse(user)))
}

// PutUserStatus suspends or re-activates a user. Suspending also terminates
// the user's sessions so the change takes effect immediately.
func (h *UserHandler) PutUserStatus(ctx *fiber.Ctx) error {
	userID := cast.ToUint(ctx.Params("id"))
	var req updateStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	claims := authguard.Claims(ctx)
	if err := h.userService.SetUserStatus(ctx.Context(), userID, req.Status, claims.UserID(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent)); err != nil {
		return mapUserError(err)
	}
	if req.Status == model.UserStatusSuspended {
		_, err := h.authService.InvalidateSessions(ctx.Context(), authInvalidateForUser(userID, claims.UserID(), ctx))
		if err != nil {
			return err
		}
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

func (h *UserHandler) PostResetLockout(ctx *fiber.Ctx) error {
	userID := cast.ToUint(ctx.Params("id"))
	claims := authguard.Claims(ctx)
	if err := h.userService.ResetLockout(ctx.Context(), userID, claims.UserID(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent)); err != nil {
		return mapUserError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

type inviteUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func (h *UserHandler) PostInvitation(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	var req inviteUserRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	company, err := h.companyService.GetCompany(ctx.Context(), companyID)
	if errors.Is(err, companies.ErrCompanyNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Company not found")
	}
	if err != nil {
		return err
	}

	claims := authguard.Claims(ctx)
	invitation, err := h.userService.InviteUser(ctx.Context(), users.InviteUserOptions{
		Email:       req.Email,
		FullName:    req.FullName,
		Role:        req.Role,
		CompanyID:   companyID,
		CompanyName: company.Name,
		InvitedBy:   claims.UserID(),
		IP:          ctx.IP(),
		UserAgent:   ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return mapUserError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(fiber.Map{
		"invitationId": invitation.ID,
		"email":        invitation.Email,
	}))
}

func (h *UserHandler) GetInvitations(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	invitations, err := h.userService.ListInvitations(ctx.Context(), companyID)
	if err != nil {
		return mapUserError(err)
	}
	type invitationResponse struct {
		InvitationID uint      `json:"invitationId"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		Accepted     bool      `json:"accepted"`
		CreatedAt    time.Time `json:"createdAt"`
	}
	resp := make([]invitationResponse, 0, len(invitations))
	for _, invitation := range invitations {
		resp = append(resp, invitationResponse{
			InvitationID: invitation.ID,
			Email:        invitation.Email,
			Role:         invitation.Role,
			Accepted:     invitation.Accepted,
			CreatedAt:    invitation.CreatedAt,
		})
	}
	return ctx.JSON(NewDataResponse(resp))
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

func (r *acceptInvitationRequest) Validate() error {
	if r.Token == "" || r.Password == "" {
		return errors.New("token and password are required")
	}
	return nil
}

// PostAcceptInvitation is a public route: the invitee has no account yet.
func (h *UserHandler) PostAcceptInvitation(ctx *fiber.Ctx) error {
	var req acceptInvitationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	user, err := h.userService.AcceptInvitation(ctx.Context(), req.Token, req.FullName, req.Password, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return mapUserError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserResponse(user)))
}

func NewUserHandler(userService UserService, companyService CompanyService, authService AuthService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		companyService: companyService,
		authService:    authService,
	}
}
