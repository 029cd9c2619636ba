package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type RiskFlagHandler struct {
  log             *logger.Logger
  riskFlagService services.RiskFlagService
}

func NewRiskFlagHandler(log *logger.Logger, riskFlagService services.RiskFlagService) *RiskFlagHandler {
  return &RiskFlagHandler{
    log:             log.With("handler", "RiskFlagHandler"),
    riskFlagService: riskFlagService,
  }
}

func (h *RiskFlagHandler) ListForSession(c *gin.Context) {
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
  flags, err := h.riskFlagService.ListForSession(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondServiceError(c, "list_risk_flags_failed", err)
    return
  }
  RespondOK(c, gin.H{"risk_flags": flags})
}

func (h *RiskFlagHandler) Acknowledge(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  flagID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_flag_id", err)
    return
  }
  flag, err := h.riskFlagService.Acknowledge(c.Request.Context(), rd.UserID, flagID)
  if err != nil {
    h.log.Error("Acknowledge risk flag failed", "error", err, "flag_id", flagID)
    RespondServiceError(c, "acknowledge_failed", err)
    return
  }
  RespondOK(c, gin.H{"risk_flag": flag})
}
