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

type TreatmentPlanRepo interface {
  Create(ctx context.Context, tx *gorm.DB, plans []*types.TreatmentPlan) ([]*types.TreatmentPlan, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TreatmentPlan, error)
  GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.TreatmentPlan, error)
  SetCurrentVersion(ctx context.Context, tx *gorm.DB, id, versionID uuid.UUID) error
}

type treatmentPlanRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTreatmentPlanRepo(db *gorm.DB, baseLog *logger.Logger) TreatmentPlanRepo {
  repoLog := baseLog.With("repo", "TreatmentPlanRepo")
  return &treatmentPlanRepo{db: db, log: repoLog}
}

func (r *treatmentPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.TreatmentPlan) ([]*types.TreatmentPlan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(plans) == 0 {
    return []*types.TreatmentPlan{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
    return nil, err
  }
  return plans, nil
}

func (r *treatmentPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TreatmentPlan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var plan types.TreatmentPlan
  if err := transaction.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &plan, nil
}

func (r *treatmentPlanRepo) GetByClientID(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.TreatmentPlan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var plan types.TreatmentPlan
  if err := transaction.WithContext(ctx).First(&plan, "client_id = ?", clientID).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &plan, nil
}

func (r *treatmentPlanRepo) SetCurrentVersion(ctx context.Context, tx *gorm.DB, id, versionID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.TreatmentPlan{}).Where("id = ?", id).Updates(map[string]interface{}{
    "current_version_id": versionID,
    "updated_at":         time.Now(),
  }).Error
}
