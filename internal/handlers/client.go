package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type ClientHandler struct {
  log           *logger.Logger
  clientService services.ClientService
}

func NewClientHandler(log *logger.Logger, clientService services.ClientService) *ClientHandler {
  return &ClientHandler{
    log:           log.With("handler", "ClientHandler"),
    clientService: clientService,
  }
}

func (h *ClientHandler) Create(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var req struct {
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  client, err := h.clientService.CreateClient(c.Request.Context(), rd.UserID, req.FirstName, req.LastName)
  if err != nil {
    h.log.Error("Create client failed", "error", err, "user_id", rd.UserID)
    RespondServiceError(c, "create_client_failed", err)
    return
  }
  RespondCreated(c, gin.H{"client": client})
}

func (h *ClientHandler) List(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  clients, err := h.clientService.ListClients(c.Request.Context(), rd.UserID)
  if err != nil {
    h.log.Error("List clients failed", "error", err, "user_id", rd.UserID)
    RespondServiceError(c, "list_clients_failed", err)
    return
  }
  RespondOK(c, gin.H{"clients": clients})
}

func (h *ClientHandler) Get(c *gin.Context) {
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
  client, err := h.clientService.GetClient(c.Request.Context(), rd.UserID, clientID)
  if err != nil {
    RespondServiceError(c, "load_client_failed", err)
    return
  }
  RespondOK(c, gin.H{"client": client})
}
