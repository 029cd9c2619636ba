package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type SessionService interface {
  CreateSession(ctx context.Context, therapistID, clientID uuid.UUID, transcript string, sessionDate time.Time) (*types.Session, error)
  GetSession(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.Session, error)
  ListSessions(ctx context.Context, therapistID uuid.UUID, clientID *uuid.UUID) ([]*types.Session, error)
}

type sessionService struct {
  db          *gorm.DB
  log         *logger.Logger
  sessionRepo repos.SessionRepo
  clientRepo  repos.ClientRepo
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.SessionRepo, clientRepo repos.ClientRepo) SessionService {
  serviceLog := baseLog.With("service", "SessionService")
  return &sessionService{db: db, log: serviceLog, sessionRepo: sessionRepo, clientRepo: clientRepo}
}

// CreateSession uploads a transcript for a client session. The transcript is
// immutable from here on; analysis and impressions reference it in place.
func (ss *sessionService) CreateSession(ctx context.Context, therapistID, clientID uuid.UUID, transcript string, sessionDate time.Time) (*types.Session, error) {
  if strings.TrimSpace(transcript) == "" {
    return nil, fmt.Errorf("%w: transcript is required", ErrValidation)
  }
  client, err := ss.clientRepo.GetByID(ctx, nil, clientID)
  if err != nil {
    return nil, fmt.Errorf("load client: %w", err)
  }
  if client == nil {
    return nil, fmt.Errorf("%w: client %s", ErrNotFound, clientID)
  }
  if client.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: client belongs to another therapist", ErrForbidden)
  }

  if sessionDate.IsZero() {
    sessionDate = time.Now()
  }
  session := &types.Session{
    ID:          uuid.New(),
    TherapistID: therapistID,
    ClientID:    clientID,
    Transcript:  transcript,
    SessionDate: sessionDate,
    Status:      types.SessionStatusTranscriptUploaded,
    CreatedAt:   time.Now(),
    UpdatedAt:   time.Now(),
  }
  if _, err := ss.sessionRepo.Create(ctx, nil, []*types.Session{session}); err != nil {
    ss.log.Error("CreateSession failed", "error", err, "client_id", clientID)
    return nil, fmt.Errorf("create session: %w", err)
  }
  ss.log.Info("Session created", "session_id", session.ID, "client_id", clientID)
  return session, nil
}

func (ss *sessionService) GetSession(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.Session, error) {
  session, err := ss.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  return session, nil
}

func (ss *sessionService) ListSessions(ctx context.Context, therapistID uuid.UUID, clientID *uuid.UUID) ([]*types.Session, error) {
  if clientID != nil {
    client, err := ss.clientRepo.GetByID(ctx, nil, *clientID)
    if err != nil {
      return nil, fmt.Errorf("load client: %w", err)
    }
    if client == nil {
      return nil, fmt.Errorf("%w: client %s", ErrNotFound, *clientID)
    }
    if client.TherapistID != therapistID {
      return nil, fmt.Errorf("%w: client belongs to another therapist", ErrForbidden)
    }
    return ss.sessionRepo.ListByClient(ctx, nil, *clientID)
  }
  return ss.sessionRepo.ListByTherapist(ctx, nil, therapistID)
}
