package handler

import (
	"github.com/gofiber/fiber/v2"

	"activity-hub/internal/domain"
	"activity-hub/internal/middleware"
	"activity-hub/internal/service/membership"
)

type MembershipHandler struct {
	membershipService membership.Service
}

func NewMembershipHandler(membershipService membership.Service) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

func (h *MembershipHandler) ListMembers(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	members, err := h.membershipService.ListMembers(c.Context(), middleware.GetCaller(c), activityID)
	if err != nil {
		return err
	}
	return middleware.OK(c, members)
}

func (h *MembershipHandler) Remove(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}
	userID, err := paramUUID(c, "userId", "user id")
	if err != nil {
		return err
	}

	result, err := h.membershipService.RemoveMember(c.Context(), middleware.GetCaller(c), domain.RemoveMemberCommand{
		ActivityID:   activityID,
		TargetUserID: userID,
	})
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *MembershipHandler) Leave(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	result, err := h.membershipService.Leave(c.Context(), middleware.GetCaller(c), activityID)
	if err != nil {
		return err
	}
	return middleware.OK(c, result)
}

func (h *MembershipHandler) MarkSeen(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	if err := h.membershipService.MarkSeen(c.Context(), middleware.GetCaller(c), activityID); err != nil {
		return err
	}
	return middleware.OK(c, nil)
}

func (h *MembershipHandler) NotifyChat(c *fiber.Ctx) error {
	activityID, err := paramUUID(c, "activityId", "activity id")
	if err != nil {
		return err
	}

	n, err := h.membershipService.NotifyChat(c.Context(), middleware.GetCaller(c), activityID)
	if err != nil {
		return err
	}
	return middleware.OK(c, fiber.Map{"recipients": n})
}
