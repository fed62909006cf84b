package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/middlewares/authguard"
	"github.com/opsdeck/console/internal/notifications"
	"github.com/spf13/cast"
)

type NotificationHandler struct {
	notificationService NotificationService
}

type notificationResponse struct {
	NotificationID uint      `json:"notificationId"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *NotificationHandler) GetNotifications(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)
	unreadOnly := ctx.QueryBool("unread")
	limit := ctx.QueryInt("limit", 50)

	notificationList, err := h.notificationService.ListForUser(ctx.Context(), claims.UserID(), unreadOnly, limit)
	if err != nil {
		return err
	}
	unread, err := h.notificationService.CountUnread(ctx.Context(), claims.UserID())
	if err != nil {
		return err
	}

	resp := make([]notificationResponse, 0, len(notificationList))
	for _, notification := range notificationList {
		resp = append(resp, notificationResponse{
			NotificationID: notification.ID,
			Kind:           notification.Kind,
			Title:          notification.Title,
			Body:           notification.Body,
			Read:           notification.Read,
			CreatedAt:      notification.CreatedAt,
		})
	}
	return ctx.JSON(NewDataResponse(fiber.Map{
		"notifications": resp,
		"unreadCount":   unread,
	}))
}

type notifyRequest struct {
	UserIDs   []uint `json:"userIds"`
	CompanyID uint   `json:"companyId"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

func (r *notifyRequest) Validate() error {
	if len(r.UserIDs) == 0 && r.CompanyID == 0 {
		return errors.New("userIds or companyId is required")
	}
	if r.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

func (h *NotificationHandler) PostNotification(ctx *fiber.Ctx) error {
	var req notifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	delivered, err := h.notificationService.Notify(ctx.Context(), notifications.NotifyOptions{
		UserIDs:   req.UserIDs,
		CompanyID: req.CompanyID,
		Kind:      req.Kind,
		Title:     req.Title,
		Body:      req.Body,
	})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(fiber.Map{"delivered": delivered}))
}

func (h *NotificationHandler) mapError(err error) error {
	switch {
	case errors.Is(err, notifications.ErrNotificationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Notification not found")
	case errors.Is(err, notifications.ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, "Notification belongs to another user")
	default:
		return err
	}
}

func (h *NotificationHandler) PutNotificationRead(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)
	notificationID := cast.ToUint(ctx.Params("id"))
	if err := h.notificationService.MarkRead(ctx.Context(), notificationID, claims.UserID()); err != nil {
		return h.mapError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

func (h *NotificationHandler) DeleteNotification(ctx *fiber.Ctx) error {
	claims := authguard.Claims(ctx)
	notificationID := cast.ToUint(ctx.Params("id"))
	if err := h.notificationService.Delete(ctx.Context(), notificationID, claims.UserID()); err != nil {
		return h.mapError(err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"success": true}))
}

func NewNotificationHandler(notificationService NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}
