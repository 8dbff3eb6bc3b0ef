package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/dto"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/response"
)

type unreadTracker interface {
	UnreadCount(ctx context.Context) (int, error)
	MarkAllRead(ctx context.Context) (int, error)
}

// NotificationHandler serves the approver notification badge.
type NotificationHandler struct {
	service unreadTracker
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(svc unreadTracker) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// UnreadCount godoc
// @Summary Count unread pending change requests
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "notification service not configured"))
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UnreadCountResponse{Count: count}, nil)
}

// MarkAllRead godoc
// @Summary Acknowledge every pending change request
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/mark-all-read [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "notification service not configured"))
		return
	}
	updated, err := h.service.MarkAllRead(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MarkReadResponse{Updated: updated}, nil)
}
