package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/models"
)

// ListNotifications returns every notification, served from cache when possible.
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} models.NotificationsResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	notifications, found, err := h.cache.GetNotifications(ctx)
	if err == nil && found {
		h.logger.Debug("Returning cached notifications")
		c.JSON(http.StatusOK, models.NotificationsResponse{Data: notifications})
		return
	}

	notifications, err = h.client.ListNotifications(ctx)
	if err != nil {
		h.upstreamError(c, err, "retrieve notifications")
		return
	}

	_ = h.cache.SetNotifications(ctx, notifications)

	c.JSON(http.StatusOK, models.NotificationsResponse{Data: notifications})
}

// GetNotification returns one notification straight from the upstream API.
func (h *Handler) GetNotification(c *gin.Context) {
	n, err := h.client.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.upstreamError(c, err, "retrieve notification")
		return
	}
	c.JSON(http.StatusOK, models.NotificationResponse{Data: *n})
}

// DeleteNotification removes a notification upstream.
// @Summary Delete notification
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204 "No Content"
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/notifications/{id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if err := h.client.DeleteNotification(ctx, id); err != nil {
		h.upstreamError(c, err, "delete notification")
		return
	}

	_ = h.cache.InvalidateNotifications(ctx)

	h.logger.Info("Deleted notification", zap.String("id", id))
	c.Status(http.StatusNoContent)
}

// ListRoles returns the roles a notification can target.
func (h *Handler) ListRoles(c *gin.Context) {
	ctx := c.Request.Context()

	roles, found, err := h.cache.GetRoles(ctx)
	if err == nil && found {
		c.JSON(http.StatusOK, models.RolesResponse{Data: roles})
		return
	}

	roles, err = h.client.ListRoles(ctx)
	if err != nil {
		h.upstreamError(c, err, "retrieve roles")
		return
	}

	_ = h.cache.SetRoles(ctx, roles)

	c.JSON(http.StatusOK, models.RolesResponse{Data: roles})
}
