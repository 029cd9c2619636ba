package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type NotificationHandler struct {
  log                 *logger.Logger
  notificationService services.NotificationService
}

func NewNotificationHandler(log *logger.Logger, notificationService services.NotificationService) *NotificationHandler {
  return &NotificationHandler{
    log:                 log.With("handler", "NotificationHandler"),
    notificationService: notificationService,
  }
}

func (h *NotificationHandler) List(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  unreadOnly := c.Query("unread") == "true"
  notifications, err := h.notificationService.ListForUser(c.Request.Context(), rd.UserID, unreadOnly)
  if err != nil {
    RespondServiceError(c, "list_notifications_failed", err)
    return
  }
  RespondOK(c, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  notificationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_notification_id", err)
    return
  }
  if err := h.notificationService.MarkRead(c.Request.Context(), rd.UserID, notificationID); err != nil {
    RespondServiceError(c, "mark_read_failed", err)
    return
  }
  RespondOK(c, gin.H{"message": "read"})
}
