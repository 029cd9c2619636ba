package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type UserService interface {
  GetMe(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
  serviceLog := baseLog.With("service", "UserService")
  return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func (us *userService) GetMe(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  user, err := us.userRepo.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load user: %w", err)
  }
  if user == nil {
    return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
  }
  return user, nil
}
