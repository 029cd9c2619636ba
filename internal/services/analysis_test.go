package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

func newAnalysisServiceForTest(env *testEnv, ai OpenAIClient) AnalysisService {
	riskService := NewRiskService(env.log, ai)
	return NewAnalysisService(env.db, env.log, ai, env.sessionRepo, env.impressionsRepo, env.aiAnalysisRepo, env.riskFlagRepo, riskService, env.notificationService)
}

func TestValidateAnalysisPayload(t *testing.T) {
	valid := types.AnalysisPayload{}
	if err := json.Unmarshal(validAnalysisJSON(), &valid); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	if err := validateAnalysisPayload(&valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	bad := valid
	bad.Concerns = []types.AnalysisConcern{{Text: "", Severity: "EXTREME"}}
	err := validateAnalysisPayload(&bad)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "concerns[0].text") || !strings.Contains(err.Error(), "concerns[0].severity") {
		t.Fatalf("expected both field problems in error, got %v", err)
	}
}

func TestGenerateAnalysis_RetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	attempts := 0
	ai := &fakeOpenAI{generate: func(string) (json.RawMessage, error) {
		attempts++
		if attempts == 1 {
			return nil, fmt.Errorf("transient upstream error")
		}
		return validAnalysisJSON(), nil
	}}
	as := newAnalysisServiceForTest(env, ai)

	payload, err := as.GenerateAnalysis(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if len(payload.Concerns) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGenerateAnalysis_ExhaustsRetries(t *testing.T) {
	env := newTestEnv(t)
	upstreamErr := errors.New("upstream unavailable")
	attempts := 0
	ai := &fakeOpenAI{generate: func(string) (json.RawMessage, error) {
		attempts++
		return nil, upstreamErr
	}}
	as := newAnalysisServiceForTest(env, ai)

	_, err := as.GenerateAnalysis(context.Background(), "transcript")
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if err == nil || !errors.Is(err, upstreamErr) {
		t.Fatalf("terminal error should wrap the last failure, got %v", err)
	}
}

func TestGenerateAnalysis_CancelledContextStopsRetry(t *testing.T) {
	env := newTestEnv(t)
	ai := &fakeOpenAI{generate: func(string) (json.RawMessage, error) {
		return nil, fmt.Errorf("always failing")
	}}
	as := newAnalysisServiceForTest(env, ai)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := as.GenerateAnalysis(ctx, "transcript")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunAnalysis_PersistsAnalysisFlagsAndStatus(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "Some days I want to die. It has been getting worse.")

	ai := &fakeOpenAI{generate: func(schemaName string) (json.RawMessage, error) {
		switch schemaName {
		case "clinical_analysis":
			return validAnalysisJSON(), nil
		case "risk_detections":
			return json.RawMessage(`{"risks":[{"type":"suicidal_ideation","severity":"HIGH","excerpt":"Some days I want to die.","reasoning":"worsening ideation"}]}`), nil
		}
		return nil, fmt.Errorf("unexpected schema %q", schemaName)
	}}
	as := newAnalysisServiceForTest(env, ai)

	analysis, flags, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID)
	if err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	if analysis.ModelName != "test-model" {
		t.Fatalf("model name = %q", analysis.ModelName)
	}
	if analysis.Degraded {
		t.Fatalf("expected Degraded=false")
	}
	// the contextual hit and the keyword hit carry different excerpt windows,
	// so both survive dedup; the HIGH contextual flag sorts first
	if len(flags) != 2 {
		t.Fatalf("expected contextual and keyword flags, got %d", len(flags))
	}
	if flags[0].Severity != types.SeverityHigh || flags[0].Keyword != "" {
		t.Fatalf("expected contextual HIGH flag first, got %+v", flags[0])
	}
	if flags[1].Severity != types.SeverityModerate || flags[1].Keyword != "want to die" {
		t.Fatalf("expected keyword flag second, got %+v", flags[1])
	}

	updated, err := env.sessionRepo.GetByID(context.Background(), nil, session.ID)
	if err != nil || updated == nil {
		t.Fatalf("reload session: %v", err)
	}
	if updated.Status != types.SessionStatusAIAnalyzed {
		t.Fatalf("session status = %q, want AI_ANALYZED", updated.Status)
	}

	notifications, err := env.notificationService.ListForUser(context.Background(), therapist.ID, false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	kinds := map[string]bool{}
	for _, n := range notifications {
		kinds[n.Kind] = true
	}
	if !kinds[types.NotificationAnalysisComplete] || !kinds[types.NotificationHighRisk] {
		t.Fatalf("expected analysis_complete and high_risk_flagged notifications, got %v", kinds)
	}
}

func TestRunAnalysis_SecondRunConflicts(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "A calm and ordinary check-in session.")

	ai := &fakeOpenAI{generate: func(schemaName string) (json.RawMessage, error) {
		if schemaName == "risk_detections" {
			return json.RawMessage(`{"risks":[]}`), nil
		}
		return validAnalysisJSON(), nil
	}}
	as := newAnalysisServiceForTest(env, ai)

	if _, _, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID); err != nil {
		t.Fatalf("first RunAnalysis: %v", err)
	}
	_, _, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on rerun, got %v", err)
	}
}

func TestRunAnalysis_EmptyTranscriptRejected(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "   ")

	as := newAnalysisServiceForTest(env, &fakeOpenAI{generate: func(string) (json.RawMessage, error) {
		t.Fatal("model should not be called for an empty transcript")
		return nil, nil
	}})

	_, _, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunAnalysis_ComparisonReadyWhenImpressionsExist(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "A calm and ordinary check-in session.")

	is := NewImpressionsService(env.db, env.log, env.impressionsRepo, env.sessionRepo, env.aiAnalysisRepo)
	if _, err := is.CreateImpressions(context.Background(), therapist.ID, session.ID, validImpressionsPayload()); err != nil {
		t.Fatalf("create impressions: %v", err)
	}

	ai := &fakeOpenAI{generate: func(schemaName string) (json.RawMessage, error) {
		if schemaName == "risk_detections" {
			return json.RawMessage(`{"risks":[]}`), nil
		}
		return validAnalysisJSON(), nil
	}}
	as := newAnalysisServiceForTest(env, ai)

	if _, _, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	updated, _ := env.sessionRepo.GetByID(context.Background(), nil, session.ID)
	if updated.Status != types.SessionStatusComparisonReady {
		t.Fatalf("session status = %q, want COMPARISON_READY", updated.Status)
	}
}

func TestGetAnalysis_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "A calm and ordinary check-in session.")

	ai := &fakeOpenAI{generate: func(schemaName string) (json.RawMessage, error) {
		if schemaName == "risk_detections" {
			return json.RawMessage(`{"risks":[]}`), nil
		}
		return validAnalysisJSON(), nil
	}}
	as := newAnalysisServiceForTest(env, ai)

	if _, _, err := as.RunAnalysis(context.Background(), therapist.ID, session.ID); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	_, payload, err := as.GetAnalysis(context.Background(), therapist.ID, session.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if len(payload.Concerns) != 1 || payload.Concerns[0].Severity != types.SeverityModerate {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGenerateClientView_RejectsEmptySummary(t *testing.T) {
	env := newTestEnv(t)
	ai := &fakeOpenAI{generate: func(string) (json.RawMessage, error) {
		return json.RawMessage(`{"summary":"","working_on":[],"strengths":[],"next_steps":[],"encouragement":""}`), nil
	}}
	as := newAnalysisServiceForTest(env, ai)

	_, err := as.GenerateClientView(context.Background(), &types.PlanContent{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty summary, got %v", err)
	}
}
