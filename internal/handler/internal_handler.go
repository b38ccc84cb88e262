package handler

import (
	"github.com/gofiber/fiber/v2"

	"activity-hub/internal/middleware"
	"activity-hub/internal/service/activity"
)

// InternalHandler serves the scheduler trigger endpoints.
type InternalHandler struct {
	activityService activity.Service
}

func NewInternalHandler(activityService activity.Service) *InternalHandler {
	return &InternalHandler{activityService: activityService}
}

func (h *InternalHandler) AutoCompleteExpired(c *fiber.Ctx) error {
	n, err := h.activityService.AutoCompleteExpired(c.Context(), middleware.GetCaller(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"completed": n})
}

func (h *InternalHandler) AutoCompleteOne(c *fiber.Ctx) error {
	id, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	completed, err := h.activityService.AutoCompleteOne(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"completed": completed})
}
