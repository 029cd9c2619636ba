package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type ComparisonHandler struct {
  log               *logger.Logger
  comparisonService services.ComparisonService
}

func NewComparisonHandler(log *logger.Logger, comparisonService services.ComparisonService) *ComparisonHandler {
  return &ComparisonHandler{
    log:               log.With("handler", "ComparisonHandler"),
    comparisonService: comparisonService,
  }
}

func (h *ComparisonHandler) Compare(c *gin.Context) {
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
  result, err := h.comparisonService.CompareSession(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondServiceError(c, "compare_failed", err)
    return
  }
  RespondOK(c, gin.H{"comparison": result})
}
