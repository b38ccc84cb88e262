package handler

import (
	"github.com/gofiber/fiber/v2"

	"activity-hub/internal/middleware"
	"activity-hub/internal/service/audit"
)

type AuditHandler struct {
	auditService audit.Service
}

func NewAuditHandler(auditService audit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) ListForActivity(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	logs, err := h.auditService.ListForActivity(c.Context(), middleware.GetCaller(c), activityID, getPaginationParams(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, logs)
}
