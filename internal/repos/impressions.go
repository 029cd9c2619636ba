package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type ImpressionsRepo interface {
  Create(ctx context.Context, tx *gorm.DB, impressions []*types.TherapistImpressions) ([]*types.TherapistImpressions, error)
  GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.TherapistImpressions, error)
  UpdatePayload(ctx context.Context, tx *gorm.DB, id uuid.UUID, payload datatypes.JSON) error
}

type impressionsRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewImpressionsRepo(db *gorm.DB, baseLog *logger.Logger) ImpressionsRepo {
  repoLog := baseLog.With("repo", "ImpressionsRepo")
  return &impressionsRepo{db: db, log: repoLog}
}

func (r *impressionsRepo) Create(ctx context.Context, tx *gorm.DB, impressions []*types.TherapistImpressions) ([]*types.TherapistImpressions, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(impressions) == 0 {
    return []*types.TherapistImpressions{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&impressions).Error; err != nil {
    return nil, err
  }
  return impressions, nil
}

func (r *impressionsRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.TherapistImpressions, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var impressions types.TherapistImpressions
  if err := transaction.WithContext(ctx).First(&impressions, "session_id = ?", sessionID).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &impressions, nil
}

func (r *impressionsRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, id uuid.UUID, payload datatypes.JSON) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.TherapistImpressions{}).Where("id = ?", id).Updates(map[string]interface{}{
    "payload":    payload,
    "updated_at": time.Now(),
  }).Error
}
