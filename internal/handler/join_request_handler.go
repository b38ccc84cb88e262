package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/middleware"
	"activity-hub/internal/service/joinrequest"
)

type JoinRequestHandler struct {
	joinService joinrequest.Service
}

func NewJoinRequestHandler(joinService joinrequest.Service) *JoinRequestHandler {
	return &JoinRequestHandler{joinService: joinService}
}

type requestJoinBody struct {
	Message *string  `json:"message"`
	Answers []string `json:"answers"`
}

func (h *JoinRequestHandler) RequestJoin(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}
	var body requestJoinBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &body); err != nil {
			return err
		}
	}

	result, err := h.joinService.RequestJoin(c.Context(), middleware.GetCaller(c), domain.RequestJoinCommand{
		ActivityID: activityID,
		Message:    body.Message,
		Answers:    body.Answers,
	})
	if err != nil {
		return err
	}
	if result.DuplicatePending {
		return middleware.OK(c, result)
	}
	return middleware.Created(c, result)
}

func (h *JoinRequestHandler) ListForActivity(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}
	var status *domain.JoinRequestStatus
	if s := c.Query("status"); s != "" {
		st := domain.JoinRequestStatus(s)
		status = &st
	}

	result, err := h.joinService.ListForActivity(c.Context(), middleware.GetCaller(c), activityID, status, getPaginationParams(c))
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *JoinRequestHandler) Approve(c *fiber.Ctx) error {
	cmd, err := resolveCommand(c)
	if err != nil {
		return err
	}

	result, err := h.joinService.Approve(c.Context(), middleware.GetCaller(c), cmd)
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *JoinRequestHandler) Reject(c *fiber.Ctx) error {
	cmd, err := resolveCommand(c)
	if err != nil {
		return err
	}

	jr, err := h.joinService.Reject(c.Context(), middleware.GetCaller(c), cmd)
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"join_request": jr})
}

// resolveBody accepts every spelling clients have used for the three ids.
type resolveBody struct {
	JoinRequestID      string `json:"join_request_id"`
	JoinRequestIDCamel string `json:"joinRequestId"`
	RequestID          string `json:"request_id"`
	RequestIDCamel     string `json:"requestId"`
	ID                 string `json:"id"`
	ActivityID         string `json:"activity_id"`
	ActivityIDCamel    string `json:"activityId"`
	RequesterID        string `json:"requester_id"`
	RequesterIDCamel   string `json:"requesterId"`
	UserID             string `json:"user_id"`
	UserIDCamel        string `json:"userId"`
}

func (b resolveBody) normalize() (domain.ResolveJoinCommand, error) {
	var cmd domain.ResolveJoinCommand
	var err error
	if cmd.JoinRequestID, err = optionalUUID("join request id",
		b.JoinRequestID, b.JoinRequestIDCamel, b.RequestID, b.RequestIDCamel, b.ID); err != nil {
		return cmd, err
	}
	if cmd.ActivityID, err = optionalUUID("activity id", b.ActivityID, b.ActivityIDCamel); err != nil {
		return cmd, err
	}
	if cmd.RequesterID, err = optionalUUID("requester id",
		b.RequesterID, b.RequesterIDCamel, b.UserID, b.UserIDCamel); err != nil {
		return cmd, err
	}
	if !cmd.IsValid() {
		return cmd, domain.BadRequest("join_request_id or activity_id and requester_id are required")
	}
	return cmd, nil
}

// optionalUUID parses the first non-empty candidate.
func optionalUUID(field string, candidates ...string) (*uuid.UUID, error) {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, domain.InvalidID(field)
		}
		return &id, nil
	}
	return nil, nil
}

func resolveCommand(c *fiber.Ctx) (domain.ResolveJoinCommand, error) {
	if c.Params("requestId") != "" {
		id, err := paramUUID(c, "requestId", "join request id")
		if err != nil {
			return domain.ResolveJoinCommand{}, err
		}
		return domain.ResolveJoinCommand{JoinRequestID: &id}, nil
	}

	var body resolveBody
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return domain.ResolveJoinCommand{}, domain.BadRequest("invalid request body")
		}
	}
	return body.normalize()
}
