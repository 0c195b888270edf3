package handlers

import (
	"net/http"

	"github.com/anonto42/instaverse/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	ledger *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(ledger *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{ledger: ledger}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("", h.GetNotifications)
	g.GET("/read", h.MarkAllAsRead)
	g.GET("/unread-count", h.GetUnreadCount)
	g.DELETE("/:notificationId", h.DeleteNotification)
}

// GetNotifications returns the actor's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	views, err := h.ledger.ListForUser(c.Request().Context(), actor.ID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, views, "Notifications fetched successfully")
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	updated, err := h.ledger.MarkAllRead(c.Request().Context(), actor.ID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, echo.Map{"updated": updated}, "Notifications marked as read")
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	count, err := h.ledger.UnreadCount(c.Request().Context(), actor.ID)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, echo.Map{"count": count}, "Unread count fetched successfully")
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "notificationId")
	if err != nil {
		return err
	}
	if err := h.ledger.Delete(c.Request().Context(), actor.ID, id); err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, nil, "Notification deleted successfully")
}
