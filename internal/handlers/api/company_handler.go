package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/middlewares/authguard"
	"github.com/opsdeck/console/model"
	"github.com/spf13/cast"
)

type CompanyHandler struct {
	companyService CompanyService
}

type companyResponse struct {
	CompanyID  uint      `json:"companyId"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newCompanyResponse(company *model.Company) companyResponse {
	return companyResponse{
		CompanyID:  company.ID,
		Identifier: company.Identifier,
		Name:       company.Name,
		Status:     company.Status,
		CreatedAt:  company.CreatedAt,
	}
}

func mapCompanyError(err error) error {
	switch {
	case errors.Is(err, companies.ErrCompanyNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Company not found")
	case errors.Is(err, companies.ErrIdentifierTaken):
		return fiber.NewError(fiber.StatusConflict, "Company identifier already registered")
	case errors.Is(err, companies.ErrCompanyArchived):
		return fiber.NewError(fiber.StatusConflict, "Company is archived and cannot be modified")
	case errors.Is(err, companies.ErrInvalidStatus),
		errors.Is(err, companies.ErrCompanyNameEmpty),
		errors.Is(err, companies.ErrIdentifierEmpty):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, companies.ErrConfigNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Security config not found")
	default:
		return err
	}
}

func (h *CompanyHandler) GetCompanies(ctx *fiber.Ctx) error {
	companyList, err := h.companyService.ListCompanies(ctx.Context(), ctx.Query("status"))
	if err != nil {
		return mapCompanyError(err)
	}
	resp := make([]companyResponse, 0, len(companyList))
	for _, company := range companyList {
		resp = append(resp, newCompanyResponse(company))
	}
	return ctx.JSON(NewDataResponse(resp))
}

type createCompanyRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

func (h *CompanyHandler) PostCompany(ctx *fiber.Ctx) error {
	var req createCompanyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	claims := authguard.Claims(ctx)
	company, err := h.companyService.CreateCompany(ctx.Context(), companies.CreateCompanyOptions{
		Name:       req.Name,
		Identifier: req.Identifier,
		ActorID:    claims.UserID(),
		IP:         ctx.IP(),
		UserAgent:  ctx.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return mapCompanyError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newCompanyResponse(company)))
}

func (h *CompanyHandler) GetCompany(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	company, err := h.companyService.GetCompany(ctx.Context(), companyID)
	if err != nil {
		return mapCompanyError(err)
	}
	return ctx.JSON(NewDataResponse(newCompanyResponse(company)))
}

type updateCompanyRequest struct {
	Name string `json:"name"`
}

func (h *CompanyHandler) PatchCompany(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	var req updateCompanyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	claims := authguard.Claims(ctx)
	err := h.companyService.UpdateCompanyName(ctx.Context(), companyID, req.Name, claims.UserID(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return mapCompanyError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *CompanyHandler) PutCompanyStatus(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	var req updateStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	claims := authguard.Claims(ctx)
	err := h.companyService.UpdateCompanyStatus(ctx.Context(), companyID, req.Status, claims.UserID(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return mapCompanyError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

type securityConfigResponse struct {
	CompanyID            uint `json:"companyId"`
	PasswordHistoryLimit int  `json:"passwordHistoryLimit"`
	PasswordExpiryDays   int  `json:"passwordExpiryDays"`
	MaxFailedAttempts    int  `json:"maxFailedAttempts"`
	SessionTimeoutMins   int  `json:"sessionTimeoutMins"`
	EnforceSingleSession bool `json:"enforceSingleSession"`
}

func (h *CompanyHandler) GetSecurityConfig(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	config, err := h.companyService.GetSecurityConfig(ctx.Context(), companyID)
	if err != nil {
		return mapCompanyError(err)
	}
	if config == nil {
		return fiber.NewError(fiber.StatusNotFound, "Security config not found")
	}
	return ctx.JSON(NewDataResponse(securityConfigResponse{
		CompanyID:            config.CompanyID,
		PasswordHistoryLimit: config.PasswordHistoryLimit,
		PasswordExpiryDays:   config.PasswordExpiryDays,
		MaxFailedAttempts:    config.MaxFailedAttempts,
		SessionTimeoutMins:   config.SessionTimeoutMins,
		EnforceSingleSession: config.EnforceSingleSession,
	}))
}

type updateSecurityConfigRequest struct {
	PasswordHistoryLimit *int  `json:"passwordHistoryLimit"`
	PasswordExpiryDays   *int  `json:"passwordExpiryDays"`
	MaxFailedAttempts    *int  `json:"maxFailedAttempts"`
	SessionTimeoutMins   *int  `json:"sessionTimeoutMins"`
	EnforceSingleSession *bool `json:"enforceSingleSession"`
}

func (h *CompanyHandler) PutSecurityConfig(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Params("id"))
	var req updateSecurityConfigRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	claims := authguard.Claims(ctx)
	err := h.companyService.UpdateSecurityConfig(ctx.Context(), companyID, companies.SecurityConfigUpdate{
		PasswordHistoryLimit: req.PasswordHistoryLimit,
		PasswordExpiryDays:   req.PasswordExpiryDays,
		MaxFailedAttempts:    req.MaxFailedAttempts,
		SessionTimeoutMins:   req.SessionTimeoutMins,
		EnforceSingleSession: req.EnforceSingleSession,
	}, claims.UserID(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return mapCompanyError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

func NewCompanyHandler(companyService CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}
