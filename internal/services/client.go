package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/normalization"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type ClientService interface {
  CreateClient(ctx context.Context, therapistID uuid.UUID, firstName, lastName string) (*types.Client, error)
  GetClient(ctx context.Context, therapistID, clientID uuid.UUID) (*types.Client, error)
  ListClients(ctx context.Context, therapistID uuid.UUID) ([]*types.Client, error)
}

type clientService struct {
  db         *gorm.DB
  log        *logger.Logger
  clientRepo repos.ClientRepo
}

func NewClientService(db *gorm.DB, baseLog *logger.Logger, clientRepo repos.ClientRepo) ClientService {
  serviceLog := baseLog.With("service", "ClientService")
  return &clientService{db: db, log: serviceLog, clientRepo: clientRepo}
}

func (cs *clientService) CreateClient(ctx context.Context, therapistID uuid.UUID, firstName, lastName string) (*types.Client, error) {
  firstName = normalization.TrimInputString(firstName)
  lastName = normalization.TrimInputString(lastName)
  if firstName == "" || lastName == "" {
    return nil, fmt.Errorf("%w: client first and last name are required", ErrValidation)
  }
  client := &types.Client{
    ID:          uuid.New(),
    TherapistID: therapistID,
    FirstName:   firstName,
    LastName:    lastName,
    CreatedAt:   time.Now(),
    UpdatedAt:   time.Now(),
  }
  if _, err := cs.clientRepo.Create(ctx, nil, []*types.Client{client}); err != nil {
    cs.log.Error("CreateClient failed", "error", err)
    return nil, fmt.Errorf("create client: %w", err)
  }
  return client, nil
}

func (cs *clientService) GetClient(ctx context.Context, therapistID, clientID uuid.UUID) (*types.Client, error) {
  client, err := cs.clientRepo.GetByID(ctx, nil, clientID)
  if err != nil {
    return nil, fmt.Errorf("load client: %w", err)
  }
  if client == nil {
    return nil, fmt.Errorf("%w: client %s", ErrNotFound, clientID)
  }
  if client.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: client belongs to another therapist", ErrForbidden)
  }
  return client, nil
}

func (cs *clientService) ListClients(ctx context.Context, therapistID uuid.UUID) ([]*types.Client, error) {
  return cs.clientRepo.ListByTherapist(ctx, nil, therapistID)
}
