package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/sagebridge-health/sagebridge-backend/internal/logger"
	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Anxiety, and Depression!  ", "anxiety and depression"},
		{"self-esteem", "self esteem"},
		{"a   b\tc", "a b c"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCalculateSimilarity(t *testing.T) {
	if got := CalculateSimilarity("anxiety about work", "anxiety about work"); got != 1.0 {
		t.Fatalf("identical strings = %v, want 1.0", got)
	}
	if got := CalculateSimilarity("anxiety", "depression"); got != 0.0 {
		t.Fatalf("disjoint strings = %v, want 0.0", got)
	}
	if got := CalculateSimilarity("", "anything"); got != 0.0 {
		t.Fatalf("empty string = %v, want 0.0", got)
	}
	// {work, anxiety} vs {work, stress}: intersection 1, union 3
	got := CalculateSimilarity("work anxiety", "work stress")
	if got < 0.33 || got > 0.34 {
		t.Fatalf("partial overlap = %v, want ~1/3", got)
	}
	// duplicate words collapse into the set
	if got := CalculateSimilarity("work work anxiety", "anxiety work"); got != 1.0 {
		t.Fatalf("duplicate words = %v, want 1.0", got)
	}
}

func TestCompareItems_AlignsAboveThreshold(t *testing.T) {
	results := CompareItems(
		[]string{"anxiety about work performance"},
		[]string{"anxiety about work and job performance"},
		ThresholdConcerns,
	)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Alignment != AlignmentAligned {
		t.Fatalf("alignment = %q, want aligned (similarity %v)", results[0].Alignment, results[0].Similarity)
	}
	if results[0].Similarity < ThresholdConcerns {
		t.Fatalf("similarity %v below threshold", results[0].Similarity)
	}
}

func TestCompareItems_EveryItemLandsExactlyOnce(t *testing.T) {
	therapist := []string{"sleep problems", "panic attacks"}
	ai := []string{"difficulty sleeping at night", "social withdrawal"}
	results := CompareItems(therapist, ai, 0.5)

	if len(results) != 4 {
		t.Fatalf("expected 4 results (nothing aligns), got %d", len(results))
	}
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Alignment]++
	}
	if counts[AlignmentTherapistOnly] != 2 || counts[AlignmentAIOnly] != 2 {
		t.Fatalf("unexpected alignment counts: %v", counts)
	}
}

func TestCompareItems_GreedyOneToOne(t *testing.T) {
	// Two therapist items that both resemble the single AI item: only the
	// first claims it.
	results := CompareItems(
		[]string{"anger at family", "anger at family members"},
		[]string{"anger at family"},
		0.5,
	)
	aligned := 0
	for _, r := range results {
		if r.Alignment == AlignmentAligned {
			aligned++
		}
	}
	if aligned != 1 {
		t.Fatalf("expected exactly 1 aligned pair, got %d", aligned)
	}
	if results[0].Alignment != AlignmentAligned {
		t.Fatalf("first therapist item should claim the match, got %q", results[0].Alignment)
	}
}

func TestCompareItems_CountsUnchangedUnderReordering(t *testing.T) {
	therapist := []string{
		"anxiety about work performance",
		"sleep problems",
		"conflict with partner",
	}
	ai := []string{
		"anxiety about work and job performance",
		"difficulty sleeping at night",
		"conflict with partner",
	}

	counts := func(results []ComparisonItem) map[string]int {
		out := map[string]int{}
		for _, r := range results {
			out[r.Alignment]++
		}
		return out
	}

	base := counts(CompareItems(therapist, ai, 0.5))
	if base[AlignmentAligned] != 2 || base[AlignmentTherapistOnly] != 1 || base[AlignmentAIOnly] != 1 {
		t.Fatalf("unexpected baseline counts: %v", base)
	}

	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
	for _, to := range orders {
		for _, ao := range orders {
			shuffledTherapist := []string{therapist[to[0]], therapist[to[1]], therapist[to[2]]}
			shuffledAI := []string{ai[ao[0]], ai[ao[1]], ai[ao[2]]}
			got := counts(CompareItems(shuffledTherapist, shuffledAI, 0.5))
			for alignment, n := range base {
				if got[alignment] != n {
					t.Fatalf("counts changed under reordering %v/%v: got %v, want %v", to, ao, got, base)
				}
			}
		}
	}
}

func TestCompareItems_NearSynonymsBelowThreshold(t *testing.T) {
	therapistItem := "Client reports persistent sadness and low energy"
	aiItem := "Patient shows signs of depressed mood and fatigue"

	// only "and" is shared: 1 of 14 distinct words
	got := CalculateSimilarity(therapistItem, aiItem)
	if math.Abs(got-1.0/14.0) > 1e-9 {
		t.Fatalf("similarity = %v, want %v", got, 1.0/14.0)
	}

	results := CompareItems([]string{therapistItem}, []string{aiItem}, ThresholdConcerns)
	if len(results) != 2 {
		t.Fatalf("expected the near-synonyms to miss each other, got %d results", len(results))
	}
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Alignment]++
	}
	if counts[AlignmentTherapistOnly] != 1 || counts[AlignmentAIOnly] != 1 {
		t.Fatalf("unexpected alignments: %v", counts)
	}
}

func TestCompareItems_EmptyInputs(t *testing.T) {
	if got := CompareItems(nil, nil, 0.5); len(got) != 0 {
		t.Fatalf("expected empty result, got %d items", len(got))
	}
	results := CompareItems(nil, []string{"only ai"}, 0.5)
	if len(results) != 1 || results[0].Alignment != AlignmentAIOnly {
		t.Fatalf("unexpected results for ai-only input: %+v", results)
	}
}

func TestTherapistSeverityToCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"none", types.SeverityNone},
		{"low", types.SeverityLow},
		{"moderate", types.SeverityModerate},
		{"high", types.SeverityHigh},
		{" High ", types.SeverityHigh},
		{"unknown", types.SeverityNone},
		{"", types.SeverityNone},
	}
	for _, c := range cases {
		if got := TherapistSeverityToCanonical(c.in); got != c.want {
			t.Fatalf("TherapistSeverityToCanonical(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompareRiskAssessments(t *testing.T) {
	high := []types.AnalysisRiskIndicator{{Type: "suicidal_ideation", Severity: types.SeverityHigh, Excerpt: "x"}}
	low := []types.AnalysisRiskIndicator{{Type: "self_harm", Severity: types.SeverityLow, Excerpt: "y"}}

	cases := []struct {
		name           string
		therapistLevel string
		aiRisks        []types.AnalysisRiskIndicator
		want           string
	}{
		{"both none", "none", nil, RiskAlignmentAligned},
		{"ai only", "none", high, RiskAlignmentAIDetected},
		{"therapist only", "moderate", nil, RiskAlignmentTherapistDetected},
		{"therapist high ai low", "high", low, RiskAlignmentSeverityMismatch},
		{"therapist moderate ai low", "moderate", low, RiskAlignmentSeverityMismatch},
		{"both high", "high", high, RiskAlignmentAligned},
		{"therapist low ai high", "low", high, RiskAlignmentAligned},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CompareRiskAssessments(c.therapistLevel, c.aiRisks)
			if got.Alignment != c.want {
				t.Fatalf("alignment = %q, want %q", got.Alignment, c.want)
			}
		})
	}
}

func TestBuildComparison_StatsAndCategories(t *testing.T) {
	cs := NewComparisonService(logger.NewNop(), nil, nil, nil)

	impressions := &types.ImpressionsPayload{
		Concerns: []types.ImpressionConcern{
			{Text: "anxiety about work performance", Severity: types.TherapistRiskModerate},
			{Text: "marital conflict", Severity: types.TherapistRiskLow},
		},
		Themes: []string{"anxiety"},
		Goals: []types.ImpressionGoal{
			{Text: "practice grounding exercises daily"},
		},
		RiskObservations: types.RiskObservations{Level: "none"},
		Strengths: []types.ImpressionStrength{
			{Text: "strong support network"},
		},
		SessionQuality: types.SessionQuality{Rapport: 4, Engagement: 4, Resistance: 2},
	}
	analysis := &types.AnalysisPayload{
		Concerns: []types.AnalysisConcern{
			{Text: "anxiety about work performance", Severity: types.SeverityModerate},
		},
		Themes: []string{"anxiety"},
		Goals: []types.AnalysisGoal{
			{Text: "practice grounding exercises daily"},
		},
		Strengths:      []types.AnalysisStrength{{Text: "strong support network"}},
		RiskIndicators: []types.AnalysisRiskIndicator{},
	}

	result := cs.BuildComparison(impressions, analysis)

	if result.Stats.Concerns.Aligned != 1 || result.Stats.Concerns.TherapistOnly != 1 {
		t.Fatalf("concern counts = %+v", result.Stats.Concerns)
	}
	if result.Stats.Themes.Aligned != 1 {
		t.Fatalf("theme counts = %+v", result.Stats.Themes)
	}
	if result.Risk.Alignment != RiskAlignmentAligned {
		t.Fatalf("risk alignment = %q, want aligned", result.Risk.Alignment)
	}
	// 4 aligned of 5 total rows
	if result.Stats.OverallAlignment != 80 {
		t.Fatalf("overall alignment = %d, want 80", result.Stats.OverallAlignment)
	}
}

func TestBuildComparison_EmptyPayloadsZeroStats(t *testing.T) {
	cs := NewComparisonService(logger.NewNop(), nil, nil, nil)
	result := cs.BuildComparison(&types.ImpressionsPayload{RiskObservations: types.RiskObservations{Level: "none"}}, &types.AnalysisPayload{})
	if result.Stats.OverallAlignment != 0 {
		t.Fatalf("overall alignment = %d, want 0 with no items", result.Stats.OverallAlignment)
	}
}

func TestCompareSession_NotFoundWithoutImpressionsOrAnalysis(t *testing.T) {
	env := newTestEnv(t)
	therapist := env.seedTherapist(t)
	client := env.seedClient(t, therapist.ID)
	session := env.seedSession(t, therapist.ID, client.ID, "transcript text")

	cs := NewComparisonService(env.log, env.sessionRepo, env.impressionsRepo, env.aiAnalysisRepo)

	_, err := cs.CompareSession(context.Background(), therapist.ID, session.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without impressions, got %v", err)
	}

	payloadJSON, _ := json.Marshal(validImpressionsPayload())
	impressions := &types.TherapistImpressions{ID: uuid.New(), SessionID: session.ID, Payload: payloadJSON}
	if _, err := env.impressionsRepo.Create(context.Background(), nil, []*types.TherapistImpressions{impressions}); err != nil {
		t.Fatalf("create impressions: %v", err)
	}

	_, err = cs.CompareSession(context.Background(), therapist.ID, session.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without analysis, got %v", err)
	}

	analysis := &types.AIAnalysis{ID: uuid.New(), SessionID: session.ID, Payload: datatypes.JSON(validAnalysisJSON()), ModelName: "test-model"}
	if _, err := env.aiAnalysisRepo.Create(context.Background(), nil, []*types.AIAnalysis{analysis}); err != nil {
		t.Fatalf("create analysis: %v", err)
	}

	result, err := cs.CompareSession(context.Background(), therapist.ID, session.ID)
	if err != nil {
		t.Fatalf("CompareSession: %v", err)
	}
	if result.Risk.TherapistLevel != types.SeverityNone {
		t.Fatalf("therapist level = %q, want NONE", result.Risk.TherapistLevel)
	}
}

func TestCompareSession_ForbiddenForOtherTherapist(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedTherapist(t)
	other := env.seedTherapist(t)
	client := env.seedClient(t, owner.ID)
	session := env.seedSession(t, owner.ID, client.ID, "transcript text")

	cs := NewComparisonService(env.log, env.sessionRepo, env.impressionsRepo, env.aiAnalysisRepo)
	_, err := cs.CompareSession(context.Background(), other.ID, session.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
