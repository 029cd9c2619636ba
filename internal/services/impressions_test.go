package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

func TestCreateImpressions_SetsStatusAndRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript")

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)

	created, err := is.CreateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload())
	if err != nil {
		t.Fatalf("CreateImpressions: %v", err)
	}
	if created.SessionID != session.ID {
		t.Fatalf("session id mismatch")
	}

	updated, _ := env.sessionRepo.GetByID(context.Background(), nil, session.ID)
	if updated.Status != types.SessionStatusImpressionsComplete {
		t.Fatalf("session status = %q, want IMPRESSIONS_COMPLETE", updated.Status)
	}

	_, err = is.CreateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
	}
}

func TestCreateImpressions_ComparisonReadyWhenAnalysisExists(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript")

	analysis := &types.AIAnalysis{ID: uuid.New(), SessionID: session.ID, Payload: datatypes.JSON(validAnalysisJSON()), ModelName: "test-model"}
	if _, err := env.aiAnalysisRepo.Create(context.Background(), nil, []*types.AIAnalysis{analysis}); err != nil {
		t.Fatalf("create analysis: %v", err)
	}

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)
	if _, err := is.CreateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload()); err != nil {
		t.Fatalf("CreateImpressions: %v", err)
	}

	updated, _ := env.sessionRepo.GetByID(context.Background(), nil, session.ID)
	if updated.Status != types.SessionStatusComparisonReady {
		t.Fatalf("session status = %q, want COMPARISON_READY", updated.Status)
	}
}

func TestCreateImpressions_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript")

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)

	cases := []struct {
		name   string
		mutate func(p *types.ImpressionsPayload)
	}{
		{"bad concern severity", func(p *types.ImpressionsPayload) { p.Concerns[0].Severity = "severe" }},
		{"empty concern text", func(p *types.ImpressionsPayload) { p.Concerns[0].Text = "" }},
		{"bad risk level", func(p *types.ImpressionsPayload) { p.RiskObservations.Level = "extreme" }},
		{"rapport out of range", func(p *types.ImpressionsPayload) { p.SessionQuality.Rapport = 6 }},
		{"engagement out of range", func(p *types.ImpressionsPayload) { p.SessionQuality.Engagement = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := validImpressionsPayload()
			c.mutate(payload)
			_, err := is.CreateImpressions(context.Background(), therapist.ID, session.ID, payload)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpdateImpressions_RequiresExisting(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript")

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)

	_, err := is.UpdateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := is.CreateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload()); err != nil {
		t.Fatalf("CreateImpressions: %v", err)
	}

	revised := validImpressionsPayload()
	revised.Themes = []string{"anxiety", "perfectionism"}
	if _, err := is.UpdateImpressions(context.Background(), therapist.ID, session.ID, revised); err != nil {
		t.Fatalf("UpdateImpressions: %v", err)
	}

	_, payload, err := is.GetImpressions(context.Background(), therapist.ID, session.ID)
	if err != nil {
		t.Fatalf("GetImpressions: %v", err)
	}
	if len(payload.Themes) != 2 || payload.Themes[1] != "perfectionism" {
		t.Fatalf("update not persisted: %+v", payload.Themes)
	}
}

func TestImpressions_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedTherapist(t)
	other := env.seedTherapist(t)
	client := env.seedClient(t, owner.ID)
	session := env.seedSession(t, owner.ID, client.ID, "transcript")

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)

	_, err := is.CreateImpressions(context.Background(), other.ID, session.ID, validImpressionsPayload())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = is.CreateImpressions(context.Background(), owner.ID, uuid.New(), validImpressionsPayload())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}
