package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type AnalysisHandler struct {
  log             *logger.Logger
  analysisService services.AnalysisService
}

func NewAnalysisHandler(log *logger.Logger, analysisService services.AnalysisService) *AnalysisHandler {
  return &AnalysisHandler{
    log:             log.With("handler", "AnalysisHandler"),
    analysisService: analysisService,
  }
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
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
  analysis, flags, err := h.analysisService.RunAnalysis(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    h.log.Error("Analyze failed", "error", err, "session_id", sessionID)
    RespondServiceError(c, "analyze_failed", err)
    return
  }
  RespondCreated(c, gin.H{"analysis": analysis, "risk_flags": flags})
}

func (h *AnalysisHandler) Get(c *gin.Context) {
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
  analysis, payload, err := h.analysisService.GetAnalysis(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondServiceError(c, "load_analysis_failed", err)
    return
  }
  RespondOK(c, gin.H{
    "id":         analysis.ID,
    "session_id": analysis.SessionID,
    "model":      analysis.ModelName,
    "degraded":   analysis.Degraded,
    "payload":    payload,
    "created_at": analysis.CreatedAt,
  })
}
