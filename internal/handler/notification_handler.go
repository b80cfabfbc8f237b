package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, email string) ([]models.Notification, error)
	Delete(ctx context.Context, id int64, email string) error
}

// NotificationHandler exposes the caller's notifications.
type NotificationHandler struct {
	notifications notificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications notificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), actorFromContext(c).Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Delete godoc
// @Summary Delete a notification
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "notification id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), id, actorFromContext(c).Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Notification deleted successfully", nil)
}
