package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/audit"
	"github.com/spf13/cast"
)

type AuditHandler struct {
	auditLogger *audit.Logger
}

type auditEventResponse struct {
	EventID   uint64            `json:"eventId"`
	UserID    uint              `json:"userId"`
	CompanyID uint              `json:"companyId"`
	Action    string            `json:"action"`
	Details   string            `json:"details,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (h *AuditHandler) GetAuditLog(ctx *fiber.Ctx) error {
	companyID := cast.ToUint(ctx.Query("companyId"))
	limit := ctx.QueryInt("limit", 100)

	events, err := h.auditLogger.Recent(ctx.Context(), companyID, limit)
	if err != nil {
		return err
	}
	resp := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		item := auditEventResponse{
			EventID:   event.ID,
			UserID:    event.UserID,
			CompanyID: event.CompanyID,
			Action:    event.Action,
			Details:   event.Details,
			IP:        event.IP,
			UserAgent: event.UserAgent,
			CreatedAt: event.CreatedAt,
		}
		if len(event.Metadata) > 0 {
			item.Metadata = make(map[string]string, len(event.Metadata))
			for _, meta := range event.Metadata {
				item.Metadata[meta.Key] = meta.Value
			}
		}
		resp = append(resp, item)
	}
	return ctx.JSON(NewDataResponse(resp))
}

func NewAuditHandler(auditLogger *audit.Logger) *AuditHandler {
	return &AuditHandler{auditLogger: auditLogger}
}
