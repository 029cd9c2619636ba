package services

import (
  "errors"
)

// Sentinel errors services wrap with fmt.Errorf("%w: ...") so handlers can map
// them onto HTTP statuses without inspecting message text.
var (
  ErrNotFound   = errors.New("not found")
  ErrConflict   = errors.New("conflict")
  ErrForbidden  = errors.New("forbidden")
  ErrValidation = errors.New("validation failed")
)
