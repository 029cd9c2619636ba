package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

// NotificationService writes rows the UI picks up on its periodic refresh.
// Delivery is polling, not push.
type NotificationService interface {
  Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind, message string) error
  ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*types.Notification, error)
  MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type notificationService struct {
  db               *gorm.DB
  log              *logger.Logger
  notificationRepo repos.NotificationRepo
}

func NewNotificationService(db *gorm.DB, baseLog *logger.Logger, notificationRepo repos.NotificationRepo) NotificationService {
  serviceLog := baseLog.With("service", "NotificationService")
  return &notificationService{db: db, log: serviceLog, notificationRepo: notificationRepo}
}

func (ns *notificationService) Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind, message string) error {
  notification := &types.Notification{
    ID:        uuid.New(),
    UserID:    userID,
    Kind:      kind,
    Message:   message,
    CreatedAt: time.Now(),
    UpdatedAt: time.Now(),
  }
  if _, err := ns.notificationRepo.Create(ctx, tx, []*types.Notification{notification}); err != nil {
    return fmt.Errorf("create notification: %w", err)
  }
  return nil
}

func (ns *notificationService) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*types.Notification, error) {
  return ns.notificationRepo.ListByUserID(ctx, nil, userID, unreadOnly)
}

func (ns *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
  affected, err := ns.notificationRepo.MarkRead(ctx, nil, notificationID, userID)
  if err != nil {
    return fmt.Errorf("mark notification read: %w", err)
  }
  if affected == 0 {
    return fmt.Errorf("%w: notification %s", ErrNotFound, notificationID)
  }
  return nil
}
