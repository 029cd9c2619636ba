package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type ImpressionsHandler struct {
  log                *logger.Logger
  impressionsService services.ImpressionsService
}

func NewImpressionsHandler(log *logger.Logger, impressionsService services.ImpressionsService) *ImpressionsHandler {
  return &ImpressionsHandler{
    log:                log.With("handler", "ImpressionsHandler"),
    impressionsService: impressionsService,
  }
}

func (h *ImpressionsHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  var payload types.ImpressionsPayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  impressions, err := h.impressionsService.CreateImpressions(c.Request.Context(), rd.UserID, sessionID, &payload)
  if err != nil {
    h.log.Error("Create impressions failed", "error", err, "session_id", sessionID)
    RespondServiceError(c, "create_impressions_failed", err)
    return
  }
  RespondCreated(c, gin.H{"impressions": impressions})
}

func (h *ImpressionsHandler) Update(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  var payload types.ImpressionsPayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  impressions, err := h.impressionsService.UpdateImpressions(c.Request.Context(), rd.UserID, sessionID, &payload)
  if err != nil {
    RespondServiceError(c, "update_impressions_failed", err)
    return
  }
  RespondOK(c, gin.H{"impressions": impressions})
}

func (h *ImpressionsHandler) Get(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
    return
  }
  impressions, payload, err := h.impressionsService.GetImpressions(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondServiceError(c, "load_impressions_failed", err)
    return
  }
  RespondOK(c, gin.H{
    "id":         impressions.ID,
    "session_id": impressions.SessionID,
    "payload":    payload,
    "created_at": impressions.CreatedAt,
    "updated_at": impressions.UpdatedAt,
  })
}
