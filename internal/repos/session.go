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

type SessionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, sessions []*types.Session) ([]*types.Session, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error)
  ListByTherapist(ctx context.Context, tx *gorm.DB, therapistID uuid.UUID) ([]*types.Session, error)
  ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Session, error)
  UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type sessionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
  repoLog := baseLog.With("repo", "SessionRepo")
  return &sessionRepo{db: db, log: repoLog}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.Session) ([]*types.Session, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(sessions) == 0 {
    return []*types.Session{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&sessions).Error; err != nil {
    return nil, err
  }
  return sessions, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var session types.Session
  if err := transaction.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &session, nil
}

func (r *sessionRepo) ListByTherapist(ctx context.Context, tx *gorm.DB, therapistID uuid.UUID) ([]*types.Session, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var sessions []*types.Session
  if err := transaction.WithContext(ctx).Where("therapist_id = ?", therapistID).Order("session_date DESC").Find(&sessions).Error; err != nil {
    return nil, err
  }
  return sessions, nil
}

func (r *sessionRepo) ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Session, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var sessions []*types.Session
  if err := transaction.WithContext(ctx).Where("client_id = ?", clientID).Order("session_date DESC").Find(&sessions).Error; err != nil {
    return nil, err
  }
  return sessions, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.Session{}).Where("id = ?", id).Updates(map[string]interface{}{
    "status":     status,
    "updated_at": time.Now(),
  }).Error
}
