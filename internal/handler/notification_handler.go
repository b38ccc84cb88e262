package handler

import (
	"github.com/gofiber/fiber/v2"

	"activity-hub/internal/middleware"
	"activity-hub/internal/service/notification"
)

type NotificationHandler struct {
	notifService notification.Service
}

func NewNotificationHandler(notifService notification.Service) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	unreadOnly := c.Query("unread_only") == "true"

	result, err := h.notifService.List(c.Context(), middleware.GetCaller(c), unreadOnly, getPaginationParams(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	count, err := h.notifService.GetUnreadCount(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	notifID, err := paramUUID(c, "id", "notification id")
	if err != nil {
		return err
	}

	if err := h.notifService.MarkAsRead(c.Context(), middleware.GetCaller(c), notifID); err != nil {
		return err
	}
	return middleware.OK(c, nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	n, err := h.notifService.MarkAllAsRead(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"updated": n})
}
