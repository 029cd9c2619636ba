package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type RiskFlagService interface {
  ListForSession(ctx context.Context, therapistID, sessionID uuid.UUID) ([]*types.RiskFlag, error)
  Acknowledge(ctx context.Context, therapistID, flagID uuid.UUID) (*types.RiskFlag, error)
}

type riskFlagService struct {
  db           *gorm.DB
  log          *logger.Logger
  riskFlagRepo repos.RiskFlagRepo
  sessionRepo  repos.SessionRepo
}

func NewRiskFlagService(db *gorm.DB, baseLog *logger.Logger, riskFlagRepo repos.RiskFlagRepo, sessionRepo repos.SessionRepo) RiskFlagService {
  serviceLog := baseLog.With("service", "RiskFlagService")
  return &riskFlagService{db: db, log: serviceLog, riskFlagRepo: riskFlagRepo, sessionRepo: sessionRepo}
}

func (rfs *riskFlagService) ListForSession(ctx context.Context, therapistID, sessionID uuid.UUID) ([]*types.RiskFlag, error) {
  session, err := rfs.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  return rfs.riskFlagRepo.ListBySessionID(ctx, nil, sessionID)
}

// Acknowledge is the only mutation a risk flag supports; flags stay on the
// record as an audit trail.
func (rfs *riskFlagService) Acknowledge(ctx context.Context, therapistID, flagID uuid.UUID) (*types.RiskFlag, error) {
  flag, err := rfs.riskFlagRepo.GetByID(ctx, nil, flagID)
  if err != nil {
    return nil, fmt.Errorf("load risk flag: %w", err)
  }
  if flag == nil {
    return nil, fmt.Errorf("%w: risk flag %s", ErrNotFound, flagID)
  }
  session, err := rfs.sessionRepo.GetByID(ctx, nil, flag.SessionID)
  if err != nil {
    return nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil || session.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: risk flag belongs to another therapist", ErrForbidden)
  }
  if err := rfs.riskFlagRepo.SetAcknowledged(ctx, nil, flagID); err != nil {
    return nil, fmt.Errorf("acknowledge risk flag: %w", err)
  }
  flag.Acknowledged = true
  return flag, nil
}
