package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/sagebridge-health/sagebridge-backend/internal/services"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
  c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps the service sentinel errors onto HTTP statuses so
// handlers stay free of case-by-case error inspection.
func RespondServiceError(c *gin.Context, code string, err error) {
  switch {
  case errors.Is(err, services.ErrValidation):
    RespondError(c, http.StatusBadRequest, code, err)
  case errors.Is(err, services.ErrForbidden):
    RespondError(c, http.StatusForbidden, code, err)
  case errors.Is(err, services.ErrNotFound):
    RespondError(c, http.StatusNotFound, code, err)
  case errors.Is(err, services.ErrConflict):
    RespondError(c, http.StatusConflict, code, err)
  default:
    RespondError(c, http.StatusInternalServerError, code, err)
  }
}
