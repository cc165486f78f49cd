// Package handler provides the HTTP handlers for notification authoring.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/apiclient"
	"github.com/geonotify/backend/internal/authoring"
	"github.com/geonotify/backend/internal/cache"
	"github.com/geonotify/backend/internal/models"
	"github.com/geonotify/backend/internal/notification"
)

// Handler provides HTTP handlers for drafts and the upstream notification API.
type Handler struct {
	registry *authoring.Registry
	client   apiclient.Client
	cache    cache.Cache
	logger   *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(registry *authoring.Registry, client apiclient.Client, cache cache.Cache, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		client:   client,
		cache:    cache,
		logger:   logger,
	}
}

// RegisterRoutes registers the handler routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	drafts := rg.Group("/drafts")
	drafts.POST("", h.OpenDraft)
	drafts.GET("/:id", h.GetDraft)
	drafts.PATCH("/:id", h.UpdateDraft)
	drafts.DELETE("/:id", h.DiscardDraft)
	drafts.PUT("/:id/send-to-all", h.SetSendToAll)
	drafts.PUT("/:id/coordinates", h.SetCoordinates)
	drafts.PUT("/:id/area", h.ReplaceArea)
	drafts.POST("/:id/draw-events", h.ApplyDrawEvent)
	drafts.POST("/:id/navigate", h.Navigate)
	drafts.GET("/:id/payload", h.GetPayload)
	drafts.POST("/:id/submit", h.Submit)

	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/notifications/:id", h.GetNotification)
	rg.DELETE("/notifications/:id", h.DeleteNotification)
	rg.GET("/roles", h.ListRoles)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("Invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}

// draftError maps authoring errors onto HTTP responses.
func (h *Handler) draftError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, authoring.ErrSessionNotFound), errors.Is(err, authoring.ErrSessionClosed):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "draft not found",
		})
	case errors.Is(err, authoring.ErrGlobeView):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "globe_view",
			Message: err.Error(),
		})
	case errors.Is(err, authoring.ErrUnknownDrawEvent), errors.Is(err, notification.ErrInvalidDate):
		h.badRequest(c, err)
	default:
		h.logger.Error("Failed to "+action, zap.String("draft", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to " + action,
		})
	}
}

// upstreamError maps notification API errors onto HTTP responses. Client
// errors of the upstream API are passed through, everything else is a 502.
func (h *Handler) upstreamError(c *gin.Context, err error, action string) {
	if errors.Is(err, apiclient.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "notification not found",
		})
		return
	}

	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
		h.logger.Warn("Upstream rejected request", zap.String("action", action), zap.Int("status", statusErr.Code))
		c.JSON(statusErr.Code, models.ErrorResponse{
			Error:   "upstream_rejected",
			Message: statusErr.Body,
		})
		return
	}

	h.logger.Error("Failed to "+action, zap.Error(err))
	c.JSON(http.StatusBadGateway, models.ErrorResponse{
		Error:   "upstream_error",
		Message: "failed to " + action,
	})
}
