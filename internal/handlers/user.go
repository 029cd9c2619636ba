package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type UserHandler struct {
  log         *logger.Logger
  userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
  return &UserHandler{
    log:         log.With("handler", "UserHandler"),
    userService: userService,
  }
}

func (h *UserHandler) GetMe(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  user, err := h.userService.GetMe(c.Request.Context(), rd.UserID)
  if err != nil {
    RespondServiceError(c, "load_user_failed", err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}
