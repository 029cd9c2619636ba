package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type ImpressionsService interface {
  CreateImpressions(ctx context.Context, therapistID, sessionID uuid.UUID, payload *types.ImpressionsPayload) (*types.TherapistImpressions, error)
  UpdateImpressions(ctx context.Context, therapistID, sessionID uuid.UUID, payload *types.ImpressionsPayload) (*types.TherapistImpressions, error)
  GetImpressions(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.TherapistImpressions, *types.ImpressionsPayload, error)
}

type impressionsService struct {
  db              *gorm.DB
  log             *logger.Logger
  impressionsRepo repos.ImpressionsRepo
  sessionRepo     repos.SessionRepo
  aiAnalysisRepo  repos.AIAnalysisRepo
}

func NewImpressionsService(
  db *gorm.DB,
  baseLog *logger.Logger,
  impressionsRepo repos.ImpressionsRepo,
  sessionRepo repos.SessionRepo,
  aiAnalysisRepo repos.AIAnalysisRepo,
) ImpressionsService {
  serviceLog := baseLog.With("service", "ImpressionsService")
  return &impressionsService{
    db:              db,
    log:             serviceLog,
    impressionsRepo: impressionsRepo,
    sessionRepo:     sessionRepo,
    aiAnalysisRepo:  aiAnalysisRepo,
  }
}

func validateImpressionsPayload(payload *types.ImpressionsPayload) error {
  problems := []string{}
  for i, c := range payload.Concerns {
    if c.Text == "" {
      problems = append(problems, fmt.Sprintf("concerns[%d].text is empty", i))
    }
    switch c.Severity {
    case types.TherapistRiskLow, types.TherapistRiskModerate, types.TherapistRiskHigh:
    default:
      problems = append(problems, fmt.Sprintf("concerns[%d].severity %q is not one of low/moderate/high", i, c.Severity))
    }
  }
  switch payload.RiskObservations.Level {
  case types.TherapistRiskNone, types.TherapistRiskLow, types.TherapistRiskModerate, types.TherapistRiskHigh:
  default:
    problems = append(problems, fmt.Sprintf("risk_observations.level %q is not one of none/low/moderate/high", payload.RiskObservations.Level))
  }
  q := payload.SessionQuality
  for _, check := range []struct {
    name  string
    value int
  }{
    {"rapport", q.Rapport},
    {"engagement", q.Engagement},
    {"resistance", q.Resistance},
  } {
    if check.value < 1 || check.value > 5 {
      problems = append(problems, fmt.Sprintf("session_quality.%s must be between 1 and 5", check.name))
    }
  }
  if len(problems) > 0 {
    return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
  }
  return nil
}

// CreateImpressions is create-once: a second POST for the same session is a
// conflict, backed by the unique session_id index for the concurrent case.
func (is *impressionsService) CreateImpressions(ctx context.Context, therapistID, sessionID uuid.UUID, payload *types.ImpressionsPayload) (*types.TherapistImpressions, error) {
  session, err := is.ownedSession(ctx, therapistID, sessionID)
  if err != nil {
    return nil, err
  }
  if err := validateImpressionsPayload(payload); err != nil {
    return nil, err
  }

  existing, err := is.impressionsRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("check existing impressions: %w", err)
  }
  if existing != nil {
    return nil, fmt.Errorf("%w: impressions already exist for session %s", ErrConflict, sessionID)
  }

  payloadJSON, err := json.Marshal(payload)
  if err != nil {
    return nil, fmt.Errorf("marshal impressions payload: %w", err)
  }
  impressions := &types.TherapistImpressions{
    ID:        uuid.New(),
    SessionID: sessionID,
    Payload:   payloadJSON,
    CreatedAt: time.Now(),
    UpdatedAt: time.Now(),
  }

  analysisExists, err := is.aiAnalysisRepo.ExistsBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("check analysis: %w", err)
  }
  nextStatus := types.SessionStatusImpressionsComplete
  if analysisExists {
    nextStatus = types.SessionStatusComparisonReady
  }

  txErr := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := is.impressionsRepo.Create(ctx, tx, []*types.TherapistImpressions{impressions}); err != nil {
      return fmt.Errorf("create impressions: %w", err)
    }
    if session.Status != types.SessionStatusPlanMerged {
      if err := is.sessionRepo.UpdateStatus(ctx, tx, sessionID, nextStatus); err != nil {
        return fmt.Errorf("update session status: %w", err)
      }
    }
    return nil
  })
  if txErr != nil {
    if errors.Is(txErr, gorm.ErrDuplicatedKey) {
      return nil, fmt.Errorf("%w: impressions already exist for session %s", ErrConflict, sessionID)
    }
    is.log.Error("CreateImpressions transaction failed", "error", txErr, "session_id", sessionID)
    return nil, txErr
  }

  is.log.Info("Impressions created", "session_id", sessionID, "status", nextStatus)
  return impressions, nil
}

func (is *impressionsService) UpdateImpressions(ctx context.Context, therapistID, sessionID uuid.UUID, payload *types.ImpressionsPayload) (*types.TherapistImpressions, error) {
  if _, err := is.ownedSession(ctx, therapistID, sessionID); err != nil {
    return nil, err
  }
  if err := validateImpressionsPayload(payload); err != nil {
    return nil, err
  }
  existing, err := is.impressionsRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load impressions: %w", err)
  }
  if existing == nil {
    return nil, fmt.Errorf("%w: no impressions for session %s", ErrNotFound, sessionID)
  }
  payloadJSON, err := json.Marshal(payload)
  if err != nil {
    return nil, fmt.Errorf("marshal impressions payload: %w", err)
  }
  if err := is.impressionsRepo.UpdatePayload(ctx, nil, existing.ID, payloadJSON); err != nil {
    return nil, fmt.Errorf("update impressions: %w", err)
  }
  existing.Payload = payloadJSON
  existing.UpdatedAt = time.Now()
  return existing, nil
}

func (is *impressionsService) GetImpressions(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.TherapistImpressions, *types.ImpressionsPayload, error) {
  if _, err := is.ownedSession(ctx, therapistID, sessionID); err != nil {
    return nil, nil, err
  }
  impressions, err := is.impressionsRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load impressions: %w", err)
  }
  if impressions == nil {
    return nil, nil, fmt.Errorf("%w: no impressions for session %s", ErrNotFound, sessionID)
  }
  var payload types.ImpressionsPayload
  if err := json.Unmarshal(impressions.Payload, &payload); err != nil {
    return nil, nil, fmt.Errorf("decode impressions payload: %w", err)
  }
  return impressions, &payload, nil
}

func (is *impressionsService) ownedSession(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.Session, error) {
  session, err := is.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  return session, nil
}
