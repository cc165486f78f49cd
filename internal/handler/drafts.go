package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
)

// OpenDraft starts an authoring session.
// @Summary Open draft
// @Description Open a draft for a new notification, or for editing an existing one
// @Tags drafts
// @Accept json
// @Produce json
// @Param draft body models.CreateDraftRequest false "Notification to edit"
// @Success 201 {object} models.DraftResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/v1/drafts [post]
func (h *Handler) OpenDraft(c *gin.Context) {
	var req models.CreateDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	var source *models.Notification
	if req.NotificationID != "" {
		n, err := h.client.GetNotification(c.Request.Context(), req.NotificationID)
		if err != nil {
			h.upstreamError(c, err, "load notification")
			return
		}
		source = n
	}

	session, err := h.registry.Open(source)
	if err != nil {
		h.draftError(c, err, "open draft")
		return
	}

	c.JSON(http.StatusCreated, models.DraftResponse{Data: session.View()})
}

// GetDraft returns the current state of a draft.
// @Summary Get draft
// @Tags drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} models.DraftResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/drafts/{id} [get]
func (h *Handler) GetDraft(c *gin.Context) {
	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "get draft")
		return
	}
	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// UpdateDraft applies a partial update of title, message, roles and dates.
// @Summary Update draft fields
// @Tags drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param fields body models.UpdateDraftRequest true "Changed fields"
// @Success 200 {object} models.DraftResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/drafts/{id} [patch]
func (h *Handler) UpdateDraft(c *gin.Context) {
	var req models.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "update draft")
		return
	}
	if err := session.Update(&req); err != nil {
		h.draftError(c, err, "update draft")
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// DiscardDraft tears down a draft without submitting it.
func (h *Handler) DiscardDraft(c *gin.Context) {
	if err := h.registry.Discard(c.Param("id")); err != nil {
		h.draftError(c, err, "discard draft")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetSendToAll switches between worldwide delivery and a geofence.
// @Summary Toggle worldwide delivery
// @Tags drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param toggle body models.SendToAllRequest true "New value"
// @Success 200 {object} models.DraftResponse
// @Router /api/v1/drafts/{id}/send-to-all [put]
func (h *Handler) SetSendToAll(c *gin.Context) {
	var req models.SendToAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "toggle send to all")
		return
	}
	if err := session.SetSendToAll(*req.SendToAll); err != nil {
		h.draftError(c, err, "toggle send to all")
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// SetCoordinates stores the textual coordinate field. Text that does not
// parse is kept but leaves the geometry unchanged.
func (h *Handler) SetCoordinates(c *gin.Context) {
	var req models.CoordinatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "set coordinates")
		return
	}
	applied, err := session.SetCoordinates(req.Text)
	if err != nil {
		h.draftError(c, err, "set coordinates")
		return
	}
	if !applied {
		h.logger.Debug("Coordinate text not applied", zap.String("draft", session.ID))
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// ReplaceArea swaps the drawn geometry for a JSON coordinate string.
func (h *Handler) ReplaceArea(c *gin.Context) {
	var req models.AreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "replace area")
		return
	}
	if err := session.ReplaceArea(req.Raw); err != nil {
		h.draftError(c, err, "replace area")
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// ApplyDrawEvent forwards a gesture of the browser draw control.
// @Summary Apply draw event
// @Tags drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param event body models.DrawEventRequest true "Draw event"
// @Success 200 {object} models.DraftResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/drafts/{id}/draw-events [post]
func (h *Handler) ApplyDrawEvent(c *gin.Context) {
	var req models.DrawEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "apply draw event")
		return
	}
	if err := session.ApplyDrawEvent(req.Kind, req.Features.Features); err != nil {
		h.draftError(c, err, "apply draw event")
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// Navigate moves the active polygon to the next or previous one.
func (h *Handler) Navigate(c *gin.Context) {
	var req models.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "navigate")
		return
	}
	if _, err := session.Navigate(req.Direction == "next"); err != nil {
		h.draftError(c, err, "navigate")
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Data: session.View()})
}

// GetPayload returns the payload a submit would send, without sending it.
func (h *Handler) GetPayload(c *gin.Context) {
	session, err := h.registry.Get(c.Param("id"))
	if err != nil {
		h.draftError(c, err, "build payload")
		return
	}
	c.JSON(http.StatusOK, models.PayloadResponse{Data: session.Payload()})
}

// Submit sends the draft upstream, creating or updating the notification,
// and discards the draft on success. A failed submit keeps the draft.
// @Summary Submit draft
// @Tags drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} models.NotificationResponse
// @Success 201 {object} models.NotificationResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/v1/drafts/{id}/submit [post]
func (h *Handler) Submit(c *gin.Context) {
	id := c.Param("id")
	session, err := h.registry.Get(id)
	if err != nil {
		h.draftError(c, err, "submit draft")
		return
	}

	ctx := c.Request.Context()
	payload := session.Payload()

	status, outcome := http.StatusCreated, "created"
	var saved *models.Notification
	if sourceID := session.SourceID(); sourceID != "" {
		status, outcome = http.StatusOK, "updated"
		saved, err = h.client.UpdateNotification(ctx, sourceID, &payload)
	} else {
		saved, err = h.client.CreateNotification(ctx, &payload)
	}
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
		h.upstreamError(c, err, "submit notification")
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()

	_ = h.cache.InvalidateNotifications(ctx)
	if err := h.registry.Discard(id); err != nil {
		h.logger.Warn("Failed to discard submitted draft", zap.String("draft", id), zap.Error(err))
	}

	h.logger.Info("Submitted notification", zap.String("id", saved.ID), zap.String("outcome", outcome))
	c.JSON(status, models.NotificationResponse{Data: *saved})
}
