package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/service/activity"
	"activity-hub/internal/service/audit"
	"activity-hub/internal/service/joinrequest"
	"activity-hub/internal/service/membership"
	"activity-hub/internal/service/notification"
)

type Services struct {
	Activity     activity.Service
	JoinRequest  joinrequest.Service
	Membership   membership.Service
	Notification notification.Service
	Audit        audit.Service
}

type Handlers struct {
	Activity     *ActivityHandler
	JoinRequest  *JoinRequestHandler
	Membership   *MembershipHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Internal     *InternalHandler
}

func NewHandlers(services *Services) *Handlers {
	return &Handlers{
		Activity:     NewActivityHandler(services.Activity),
		JoinRequest:  NewJoinRequestHandler(services.JoinRequest),
		Membership:   NewMembershipHandler(services.Membership),
		Notification: NewNotificationHandler(services.Notification),
		Audit:        NewAuditHandler(services.Audit),
		Internal:     NewInternalHandler(services.Activity),
	}
}

func getPaginationParams(c *fiber.Ctx) domain.PaginationParams {
	params := domain.DefaultPagination()

	if page := c.QueryInt("page", 1); page > 0 {
		params.Page = page
	}
	if pageSize := c.QueryInt("page_size", domain.DefaultPageSize); pageSize > 0 {
		params.PageSize = pageSize
	}

	params.Validate()
	return params
}

// paramUUID parses a path parameter. field names the id in the error.
func paramUUID(c *fiber.Ctx, name, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, domain.InvalidID(field)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.BadRequest("invalid request body")
	}
	return nil
}
