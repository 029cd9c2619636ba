package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type ClientRepo interface {
  Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error)
  GetByPortalUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Client, error)
  ListByTherapist(ctx context.Context, tx *gorm.DB, therapistID uuid.UUID) ([]*types.Client, error)
}

type clientRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
  repoLog := baseLog.With("repo", "ClientRepo")
  return &clientRepo{db: db, log: repoLog}
}

func (r *clientRepo) Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(clients) == 0 {
    return []*types.Client{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&clients).Error; err != nil {
    return nil, err
  }
  return clients, nil
}

func (r *clientRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var client types.Client
  if err := transaction.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &client, nil
}

func (r *clientRepo) GetByPortalUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var client types.Client
  if err := transaction.WithContext(ctx).First(&client, "portal_user_id = ?", userID).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &client, nil
}

func (r *clientRepo) ListByTherapist(ctx context.Context, tx *gorm.DB, therapistID uuid.UUID) ([]*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var clients []*types.Client
  if err := transaction.WithContext(ctx).Where("therapist_id = ?", therapistID).Order("created_at DESC").Find(&clients).Error; err != nil {
    return nil, err
  }
  return clients, nil
}
