package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

func seedRiskFlag(t *testing.T, env *testEnv, sessionID uuid.UUID) *types.RiskFlag {
	t.Helper()
	flag := &types.RiskFlag{
		ID:        uuid.New(),
		SessionID: sessionID,
		RiskType:  RiskTypeSuicidalIdeation,
		Severity:  types.SeverityHigh,
		Excerpt:   "I just want it all to end.",
		Keyword:   "end it all",
	}
	if _, err := env.riskFlagRepo.Create(context.Background(), nil, []*types.RiskFlag{flag}); err != nil {
		t.Fatalf("seed risk flag: %v", err)
	}
	return flag
}

func TestRiskFlagAcknowledge(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript")
	flag := seedRiskFlag(t, env, session.ID)

	rfs := NewRiskFlagService(env.db, env.log, env.riskFlagRepo, env.sessionRepo)

	acked, err := rfs.Acknowledge(context.Background(), therapist.ID, flag.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !acked.Acknowledged {
		t.Fatalf("flag not acknowledged")
	}

	flags, err := rfs.ListForSession(context.Background(), therapist.ID, session.ID)
	if err != nil {
		t.Fatalf("ListForSession: %v", err)
	}
	if len(flags) != 1 || !flags[0].Acknowledged {
		t.Fatalf("acknowledgment not persisted: %+v", flags)
	}
}

func TestRiskFlagOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedTherapist(t)
	other := env.seedTherapist(t)
	client := env.seedClient(t, owner.ID)
	session := env.seedSession(t, owner.ID, client.ID, "transcript")
	flag := seedRiskFlag(t, env, session.ID)

	rfs := NewRiskFlagService(env.db, env.log, env.riskFlagRepo, env.sessionRepo)

	if _, err := rfs.Acknowledge(context.Background(), other.ID, flag.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := rfs.ListForSession(context.Background(), other.ID, session.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := rfs.Acknowledge(context.Background(), owner.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationMarkReadScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedTherapist(t)
	other := env.seedTherapist(t)

	ns := env.notificationService
	if err := ns.Notify(context.Background(), nil, owner.ID, types.NotificationAnalysisComplete, "ready"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	notifications, err := ns.ListForUser(context.Background(), owner.ID, true)
	if err != nil || len(notifications) != 1 {
		t.Fatalf("ListForUser = %d, err %v", len(notifications), err)
	}

	if err := ns.MarkRead(context.Background(), other.ID, notifications[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound marking another user's notification, got %v", err)
	}
	if err := ns.MarkRead(context.Background(), owner.ID, notifications[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, err := ns.ListForUser(context.Background(), owner.ID, true)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}
