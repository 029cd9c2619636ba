package handlers

import (
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type SessionHandler struct {
  log            *logger.Logger
  sessionService services.SessionService
}

func NewSessionHandler(log *logger.Logger, sessionService services.SessionService) *SessionHandler {
  return &SessionHandler{
    log:            log.With("handler", "SessionHandler"),
    sessionService: sessionService,
  }
}

func (h *SessionHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var req struct {
    ClientID    uuid.UUID `json:"client_id"`
    Transcript  string    `json:"transcript"`
    SessionDate time.Time `json:"session_date"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  session, err := h.sessionService.CreateSession(c.Request.Context(), rd.UserID, req.ClientID, req.Transcript, req.SessionDate)
  if err != nil {
    h.log.Error("Create session failed", "error", err, "client_id", req.ClientID)
    RespondServiceError(c, "create_session_failed", err)
    return
  }
  RespondCreated(c, gin.H{"session": session})
}

func (h *SessionHandler) List(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var clientID *uuid.UUID
  if raw := c.Query("client_id"); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_client_id", err)
      return
    }
    clientID = &parsed
  }
  sessions, err := h.sessionService.ListSessions(c.Request.Context(), rd.UserID, clientID)
  if err != nil {
    RespondServiceError(c, "list_sessions_failed", err)
    return
  }
  RespondOK(c, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Get(c *gin.Context) {
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
  session, err := h.sessionService.GetSession(c.Request.Context(), rd.UserID, sessionID)
  if err != nil {
    RespondServiceError(c, "load_session_failed", err)
    return
  }
  RespondOK(c, gin.H{"session": session})
}
