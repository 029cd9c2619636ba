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

type PlanHandler struct {
  log         *logger.Logger
  planService services.PlanService
}

func NewPlanHandler(log *logger.Logger, planService services.PlanService) *PlanHandler {
  return &PlanHandler{
    log:         log.With("handler", "PlanHandler"),
    planService: planService,
  }
}

func (h *PlanHandler) Merge(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var req struct {
    ClientID  uuid.UUID         `json:"client_id"`
    SessionID uuid.UUID         `json:"session_id"`
    Content   types.PlanContent `json:"content"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  plan, version, err := h.planService.MergePlan(c.Request.Context(), rd.UserID, services.MergePlanInput{
    ClientID:  req.ClientID,
    SessionID: req.SessionID,
    Content:   req.Content,
  })
  if err != nil {
    h.log.Error("Merge plan failed", "error", err, "client_id", req.ClientID)
    RespondServiceError(c, "merge_plan_failed", err)
    return
  }
  RespondCreated(c, gin.H{"plan": plan, "version": version})
}

func (h *PlanHandler) Edit(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
    return
  }
  var content types.PlanContent
  if err := c.ShouldBindJSON(&content); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  version, err := h.planService.EditPlan(c.Request.Context(), rd.UserID, planID, &content)
  if err != nil {
    RespondServiceError(c, "edit_plan_failed", err)
    return
  }
  RespondOK(c, gin.H{"version": version})
}

func (h *PlanHandler) Approve(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
    return
  }
  version, err := h.planService.ApprovePlan(c.Request.Context(), rd.UserID, planID)
  if err != nil {
    h.log.Error("Approve plan failed", "error", err, "plan_id", planID)
    RespondServiceError(c, "approve_plan_failed", err)
    return
  }
  RespondOK(c, gin.H{"version": version})
}

func (h *PlanHandler) Get(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  planID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
    return
  }
  plan, versions, err := h.planService.GetPlan(c.Request.Context(), rd.UserID, planID)
  if err != nil {
    RespondServiceError(c, "load_plan_failed", err)
    return
  }
  RespondOK(c, gin.H{"plan": plan, "versions": versions})
}

func (h *PlanHandler) GetForClient(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  clientID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_client_id", err)
    return
  }
  plan, version, err := h.planService.GetPlanForClient(c.Request.Context(), rd.UserID, clientID)
  if err != nil {
    RespondServiceError(c, "load_plan_failed", err)
    return
  }
  RespondOK(c, gin.H{"plan": plan, "current_version": version})
}

// PortalPlan serves the client-facing view. The caller is the portal user, not
// the therapist; only an approved plan with generated client content is shown.
func (h *PlanHandler) PortalPlan(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  if rd.Role != types.RoleClient {
    RespondError(c, http.StatusForbidden, "portal_requires_client_role", nil)
    return
  }
  view, err := h.planService.GetPortalPlan(c.Request.Context(), rd.UserID)
  if err != nil {
    RespondServiceError(c, "load_portal_plan_failed", err)
    return
  }
  RespondOK(c, gin.H{"plan": view})
}
