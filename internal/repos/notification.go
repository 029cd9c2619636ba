package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type NotificationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error)
  ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]*types.Notification, error)
  MarkRead(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (int64, error)
}

type notificationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
  repoLog := baseLog.With("repo", "NotificationRepo")
  return &notificationRepo{db: db, log: repoLog}
}

func (r *notificationRepo) Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(notifications) == 0 {
    return []*types.Notification{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&notifications).Error; err != nil {
    return nil, err
  }
  return notifications, nil
}

func (r *notificationRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]*types.Notification, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  query := transaction.WithContext(ctx).Where("user_id = ?", userID)
  if unreadOnly {
    query = query.Where("read = ?", false)
  }
  var notifications []*types.Notification
  if err := query.Order("created_at DESC").Find(&notifications).Error; err != nil {
    return nil, err
  }
  return notifications, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  result := transaction.WithContext(ctx).Model(&types.Notification{}).Where("id = ? AND user_id = ?", id, userID).Updates(map[string]interface{}{
    "read":       true,
    "updated_at": time.Now(),
  })
  return result.RowsAffected, result.Error
}
