package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type AIAnalysisRepo interface {
  Create(ctx context.Context, tx *gorm.DB, analyses []*types.AIAnalysis) ([]*types.AIAnalysis, error)
  GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.AIAnalysis, error)
  ExistsBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (bool, error)
}

type aiAnalysisRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAIAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AIAnalysisRepo {
  repoLog := baseLog.With("repo", "AIAnalysisRepo")
  return &aiAnalysisRepo{db: db, log: repoLog}
}

func (r *aiAnalysisRepo) Create(ctx context.Context, tx *gorm.DB, analyses []*types.AIAnalysis) ([]*types.AIAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(analyses) == 0 {
    return []*types.AIAnalysis{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&analyses).Error; err != nil {
    return nil, err
  }
  return analyses, nil
}

func (r *aiAnalysisRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.AIAnalysis, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var analysis types.AIAnalysis
  if err := transaction.WithContext(ctx).First(&analysis, "session_id = ?", sessionID).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &analysis, nil
}

func (r *aiAnalysisRepo) ExistsBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).Model(&types.AIAnalysis{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}
