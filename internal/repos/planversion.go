package repos

import (
  "context"
  "database/sql"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type PlanVersionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, versions []*types.TreatmentPlanVersion) ([]*types.TreatmentPlanVersion, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TreatmentPlanVersion, error)
  ListByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.TreatmentPlanVersion, error)
  MaxVersionNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int, error)
  Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type planVersionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPlanVersionRepo(db *gorm.DB, baseLog *logger.Logger) PlanVersionRepo {
  repoLog := baseLog.With("repo", "PlanVersionRepo")
  return &planVersionRepo{db: db, log: repoLog}
}

func (r *planVersionRepo) Create(ctx context.Context, tx *gorm.DB, versions []*types.TreatmentPlanVersion) ([]*types.TreatmentPlanVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(versions) == 0 {
    return []*types.TreatmentPlanVersion{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&versions).Error; err != nil {
    return nil, err
  }
  return versions, nil
}

func (r *planVersionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TreatmentPlanVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var version types.TreatmentPlanVersion
  if err := transaction.WithContext(ctx).First(&version, "id = ?", id).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &version, nil
}

func (r *planVersionRepo) ListByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.TreatmentPlanVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var versions []*types.TreatmentPlanVersion
  if err := transaction.WithContext(ctx).Where("plan_id = ?", planID).Order("version_number ASC").Find(&versions).Error; err != nil {
    return nil, err
  }
  return versions, nil
}

func (r *planVersionRepo) MaxVersionNumber(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var max sql.NullInt64
  if err := transaction.WithContext(ctx).Model(&types.TreatmentPlanVersion{}).Where("plan_id = ?", planID).Select("MAX(version_number)").Scan(&max).Error; err != nil {
    return 0, err
  }
  if !max.Valid {
    return 0, nil
  }
  return int(max.Int64), nil
}

func (r *planVersionRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.TreatmentPlanVersion{}).Where("id = ?", id).Updates(updates).Error
}
