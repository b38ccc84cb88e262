package handler

import (
	"github.com/gofiber/fiber/v2"

	"activity-hub/internal/metrics"
	"activity-hub/internal/middleware"
	"activity-hub/internal/ratelimit"
	"activity-hub/internal/service/auth"
)

type RouteDeps struct {
	Auth           auth.Service
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	InternalSecret string
}

func SetupRoutes(app *fiber.App, h *Handlers, deps RouteDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1", middleware.AuthRequired(deps.Auth))
	limit := func(group string) fiber.Handler {
		return middleware.RateLimit(deps.Limiter, group, deps.Metrics)
	}

	activities := v1.Group("/activities")
	activities.Get("/", h.Activity.List)
	activities.Get("/search", limit("search"), h.Activity.Search)
	activities.Post("/", limit("create"), h.Activity.Create)
	activities.Get("/:activityId", h.Activity.Get)
	activities.Patch("/:activityId", h.Activity.Update)
	activities.Delete("/:activityId", h.Activity.Delete)

	activities.Post("/:activityId/join", limit("join"), h.JoinRequest.RequestJoin)
	activities.Get("/:activityId/join-requests", h.JoinRequest.ListForActivity)

	activities.Get("/:activityId/members", h.Membership.ListMembers)
	activities.Delete("/:activityId/members/:userId", h.Membership.Remove)
	activities.Post("/:activityId/leave", h.Membership.Leave)
	activities.Post("/:activityId/conversation/seen", h.Membership.MarkSeen)
	activities.Post("/:activityId/conversation/notify", limit("chat"), h.Membership.NotifyChat)
	activities.Get("/:activityId/audit", h.Audit.ListForActivity)

	joinRequests := v1.Group("/join-requests", limit("resolve"))
	joinRequests.Post("/approve", h.JoinRequest.Approve)
	joinRequests.Post("/reject", h.JoinRequest.Reject)
	joinRequests.Post("/:requestId/approve", h.JoinRequest.Approve)
	joinRequests.Post("/:requestId/reject", h.JoinRequest.Reject)

	notifications := v1.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.GetUnreadCount)
	notifications.Patch("/:id/read", h.Notification.MarkAsRead)
	notifications.Post("/mark-all-read", h.Notification.MarkAllAsRead)

	internal := app.Group("/internal", middleware.InternalOnly(deps.InternalSecret))
	internal.Post("/activities/auto-complete", h.Internal.AutoCompleteExpired)
	internal.Post("/activities/:activityId/auto-complete", h.Internal.AutoCompleteOne)
}
