package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type RiskFlagRepo interface {
  Create(ctx context.Context, tx *gorm.DB, flags []*types.RiskFlag) ([]*types.RiskFlag, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RiskFlag, error)
  ListBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.RiskFlag, error)
  SetAcknowledged(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type riskFlagRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRiskFlagRepo(db *gorm.DB, baseLog *logger.Logger) RiskFlagRepo {
  repoLog := baseLog.With("repo", "RiskFlagRepo")
  return &riskFlagRepo{db: db, log: repoLog}
}

func (r *riskFlagRepo) Create(ctx context.Context, tx *gorm.DB, flags []*types.RiskFlag) ([]*types.RiskFlag, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(flags) == 0 {
    return []*types.RiskFlag{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&flags).Error; err != nil {
    return nil, err
  }
  return flags, nil
}

func (r *riskFlagRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RiskFlag, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var flag types.RiskFlag
  if err := transaction.WithContext(ctx).First(&flag, "id = ?", id).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &flag, nil
}

func (r *riskFlagRepo) ListBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.RiskFlag, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var flags []*types.RiskFlag
  if err := transaction.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&flags).Error; err != nil {
    return nil, err
  }
  return flags, nil
}

func (r *riskFlagRepo) SetAcknowledged(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.RiskFlag{}).Where("id = ?", id).Updates(map[string]interface{}{
    "acknowledged": true,
    "updated_at":   time.Now(),
  }).Error
}
