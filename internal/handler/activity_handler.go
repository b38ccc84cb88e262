package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/middleware"
	"activity-hub/internal/service/activity"
)

type ActivityHandler struct {
	activityService activity.Service
}

func NewActivityHandler(activityService activity.Service) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) Create(c *fiber.Ctx) error {
	var input domain.CreateActivityInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	view, err := h.activityService.Create(c.Context(), middleware.GetCaller(c), input)
	if err != nil {
		return err
	}
	return middleware.Created(c, view)
}

func (h *ActivityHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	view, err := h.activityService.Get(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return err
	}
	return middleware.OK(c, view)
}

func (h *ActivityHandler) List(c *fiber.Ctx) error {
	filter, err := activityFilter(c)
	if err != nil {
		return err
	}

	result, err := h.activityService.List(c.Context(), middleware.GetCaller(c), filter, getPaginationParams(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *ActivityHandler) Search(c *fiber.Ctx) error {
	filter, err := activityFilter(c)
	if err != nil {
		return err
	}

	result, err := h.activityService.Search(c.Context(), middleware.GetCaller(c), c.Query("q"), filter, getPaginationParams(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *ActivityHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}
	var input domain.UpdateActivityInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	view, err := h.activityService.Update(c.Context(), middleware.GetCaller(c), id, input)
	if err != nil {
		return err
	}
	return middleware.OK(c, view)
}

func (h *ActivityHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	result, err := h.activityService.Delete(c.Context(), middleware.GetCaller(c), id)
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{
		"activity_id":     result.Activity.ID,
		"removed_members": len(result.RemovedMembers),
	})
}

func activityFilter(c *fiber.Ctx) (domain.ActivityFilter, error) {
	var filter domain.ActivityFilter
	if k := c.Query("kind"); k != "" {
		kind := domain.ActivityKind(k)
		if !kind.IsValid() {
			return filter, domain.BadRequest("invalid activity kind")
		}
		filter.Kind = &kind
	}
	if h := c.Query("host_id"); h != "" {
		hostID, err := uuid.Parse(h)
		if err != nil {
			return filter, domain.InvalidID("host id")
		}
		filter.HostID = &hostID
	}
	return filter, nil
}
