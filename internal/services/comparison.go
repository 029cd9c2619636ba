package services

import (
  "context"
  "encoding/json"
  "fmt"
  "math"
  "regexp"
  "strings"

  "github.com/google/uuid"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

const (
  AlignmentAligned       = "aligned"
  AlignmentAIOnly        = "ai_only"
  AlignmentTherapistOnly = "therapist_only"
)

const (
  RiskAlignmentAligned           = "aligned"
  RiskAlignmentAIDetected        = "ai_detected_risk"
  RiskAlignmentTherapistDetected = "therapist_detected_risk"
  RiskAlignmentSeverityMismatch  = "severity_mismatch"
)

// Similarity thresholds per category. Themes get a stricter bar: they are
// short single words or phrases where small text differences matter more.
// Tunable constants, kept in sync with the UI recomputation path.
const (
  ThresholdConcerns  = 0.5
  ThresholdGoals     = 0.5
  ThresholdStrengths = 0.5
  ThresholdThemes    = 0.6
)

type ComparisonItem struct {
  Therapist  string  `json:"therapist,omitempty"`
  AI         string  `json:"ai,omitempty"`
  Alignment  string  `json:"alignment"`
  Similarity float64 `json:"similarity,omitempty"`
}

type CategoryCounts struct {
  Aligned       int `json:"aligned"`
  AIOnly        int `json:"ai_only"`
  TherapistOnly int `json:"therapist_only"`
}

type ComparisonStats struct {
  Concerns         CategoryCounts `json:"concerns"`
  Themes           CategoryCounts `json:"themes"`
  Goals            CategoryCounts `json:"goals"`
  Strengths        CategoryCounts `json:"strengths"`
  OverallAlignment int            `json:"overall_alignment"`
}

type RiskComparison struct {
  TherapistLevel    string `json:"therapist_level"`
  AIHighestSeverity string `json:"ai_highest_severity"`
  Alignment         string `json:"alignment"`
}

// ComparisonResult is derived on every request and never persisted.
type ComparisonResult struct {
  Concerns  []ComparisonItem `json:"concerns"`
  Themes    []ComparisonItem `json:"themes"`
  Goals     []ComparisonItem `json:"goals"`
  Strengths []ComparisonItem `json:"strengths"`
  Risk      RiskComparison   `json:"risk"`
  Stats     ComparisonStats  `json:"stats"`
}

type ComparisonService interface {
  CompareSession(ctx context.Context, therapistID, sessionID uuid.UUID) (*ComparisonResult, error)
  BuildComparison(impressions *types.ImpressionsPayload, analysis *types.AnalysisPayload) *ComparisonResult
}

type comparisonService struct {
  log             *logger.Logger
  sessionRepo     repos.SessionRepo
  impressionsRepo repos.ImpressionsRepo
  aiAnalysisRepo  repos.AIAnalysisRepo
}

func NewComparisonService(
  baseLog *logger.Logger,
  sessionRepo repos.SessionRepo,
  impressionsRepo repos.ImpressionsRepo,
  aiAnalysisRepo repos.AIAnalysisRepo,
) ComparisonService {
  serviceLog := baseLog.With("service", "ComparisonService")
  return &comparisonService{
    log:             serviceLog,
    sessionRepo:     sessionRepo,
    impressionsRepo: impressionsRepo,
    aiAnalysisRepo:  aiAnalysisRepo,
  }
}

// CompareSession recomputes the comparison on every request; results are
// derived, never cached or stored.
func (cs *comparisonService) CompareSession(ctx context.Context, therapistID, sessionID uuid.UUID) (*ComparisonResult, error) {
  session, err := cs.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }

  impressions, err := cs.impressionsRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load impressions: %w", err)
  }
  if impressions == nil {
    return nil, fmt.Errorf("%w: no impressions for session %s", ErrNotFound, sessionID)
  }
  analysis, err := cs.aiAnalysisRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("load analysis: %w", err)
  }
  if analysis == nil {
    return nil, fmt.Errorf("%w: no analysis for session %s", ErrNotFound, sessionID)
  }

  var impressionsPayload types.ImpressionsPayload
  if err := json.Unmarshal(impressions.Payload, &impressionsPayload); err != nil {
    return nil, fmt.Errorf("decode impressions payload: %w", err)
  }
  var analysisPayload types.AnalysisPayload
  if err := json.Unmarshal(analysis.Payload, &analysisPayload); err != nil {
    return nil, fmt.Errorf("decode analysis payload: %w", err)
  }

  return cs.BuildComparison(&impressionsPayload, &analysisPayload), nil
}

var (
  punctRE = regexp.MustCompile(`[^a-z0-9\s]+`)
  wsRE    = regexp.MustCompile(`\s+`)
)

func NormalizeText(s string) string {
  s = strings.ToLower(strings.TrimSpace(s))
  s = punctRE.ReplaceAllString(s, " ")
  s = wsRE.ReplaceAllString(s, " ")
  return strings.TrimSpace(s)
}

// CalculateSimilarity is the Jaccard index over the normalized word sets of
// a and b: |intersection| / |union|.
func CalculateSimilarity(a, b string) float64 {
  wordsA := wordSet(a)
  wordsB := wordSet(b)
  if len(wordsA) == 0 || len(wordsB) == 0 {
    return 0
  }
  intersection := 0
  for w := range wordsA {
    if wordsB[w] {
      intersection++
    }
  }
  union := len(wordsA) + len(wordsB) - intersection
  if union == 0 {
    return 0
  }
  return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
  normalized := NormalizeText(s)
  if normalized == "" {
    return map[string]bool{}
  }
  set := map[string]bool{}
  for _, w := range strings.Split(normalized, " ") {
    set[w] = true
  }
  return set
}

// CompareItems aligns therapist items against AI items with greedy one-to-one
// matching: each therapist item, in order, claims its best-scoring unmatched
// AI item when the score clears the threshold (ties broken by AI array
// order). Unclaimed AI items come out ai_only. Every input item lands in
// exactly one result.
func CompareItems(therapistItems, aiItems []string, threshold float64) []ComparisonItem {
  results := make([]ComparisonItem, 0, len(therapistItems)+len(aiItems))
  claimed := make([]bool, len(aiItems))

  for _, tItem := range therapistItems {
    bestIdx := -1
    bestScore := 0.0
    for i, aItem := range aiItems {
      if claimed[i] {
        continue
      }
      score := CalculateSimilarity(tItem, aItem)
      if score > bestScore {
        bestScore = score
        bestIdx = i
      }
    }
    if bestIdx >= 0 && bestScore >= threshold {
      claimed[bestIdx] = true
      results = append(results, ComparisonItem{
        Therapist:  tItem,
        AI:         aiItems[bestIdx],
        Alignment:  AlignmentAligned,
        Similarity: bestScore,
      })
    } else {
      results = append(results, ComparisonItem{
        Therapist: tItem,
        Alignment: AlignmentTherapistOnly,
      })
    }
  }

  for i, aItem := range aiItems {
    if !claimed[i] {
      results = append(results, ComparisonItem{
        AI:        aItem,
        Alignment: AlignmentAIOnly,
      })
    }
  }
  return results
}

// TherapistSeverityToCanonical maps the lowercase therapist-entered risk
// levels onto the uppercase severities the AI side uses. The two enums stay
// distinct on their own records; this is the one conversion point.
func TherapistSeverityToCanonical(level string) string {
  switch strings.ToLower(strings.TrimSpace(level)) {
  case types.TherapistRiskNone:
    return types.SeverityNone
  case types.TherapistRiskLow:
    return types.SeverityLow
  case types.TherapistRiskModerate:
    return types.SeverityModerate
  case types.TherapistRiskHigh:
    return types.SeverityHigh
  }
  return types.SeverityNone
}

// CompareRiskAssessments is the rule-based safety net that catches under- and
// over-reporting on either side. It never drops a mismatch.
func CompareRiskAssessments(therapistLevel string, aiRisks []types.AnalysisRiskIndicator) RiskComparison {
  canonical := TherapistSeverityToCanonical(therapistLevel)
  aiHighest := types.SeverityNone
  for _, r := range aiRisks {
    if severityRank(r.Severity) > severityRank(aiHighest) {
      aiHighest = r.Severity
    }
  }

  alignment := RiskAlignmentAligned
  switch {
  case canonical == types.SeverityNone && aiHighest != types.SeverityNone:
    alignment = RiskAlignmentAIDetected
  case canonical != types.SeverityNone && aiHighest == types.SeverityNone:
    alignment = RiskAlignmentTherapistDetected
  case (canonical == types.SeverityHigh || canonical == types.SeverityModerate) && severityRank(aiHighest) < severityRank(canonical):
    alignment = RiskAlignmentSeverityMismatch
  }

  return RiskComparison{
    TherapistLevel:    canonical,
    AIHighestSeverity: aiHighest,
    Alignment:         alignment,
  }
}

func (cs *comparisonService) BuildComparison(impressions *types.ImpressionsPayload, analysis *types.AnalysisPayload) *ComparisonResult {
  therapistConcerns := make([]string, 0, len(impressions.Concerns))
  for _, c := range impressions.Concerns {
    therapistConcerns = append(therapistConcerns, c.Text)
  }
  aiConcerns := make([]string, 0, len(analysis.Concerns))
  for _, c := range analysis.Concerns {
    aiConcerns = append(aiConcerns, c.Text)
  }
  therapistGoals := make([]string, 0, len(impressions.Goals))
  for _, g := range impressions.Goals {
    therapistGoals = append(therapistGoals, g.Text)
  }
  aiGoals := make([]string, 0, len(analysis.Goals))
  for _, g := range analysis.Goals {
    aiGoals = append(aiGoals, g.Text)
  }
  therapistStrengths := make([]string, 0, len(impressions.Strengths))
  for _, s := range impressions.Strengths {
    therapistStrengths = append(therapistStrengths, s.Text)
  }
  aiStrengths := make([]string, 0, len(analysis.Strengths))
  for _, s := range analysis.Strengths {
    aiStrengths = append(aiStrengths, s.Text)
  }

  result := &ComparisonResult{
    Concerns:  CompareItems(therapistConcerns, aiConcerns, ThresholdConcerns),
    Themes:    CompareItems(impressions.Themes, analysis.Themes, ThresholdThemes),
    Goals:     CompareItems(therapistGoals, aiGoals, ThresholdGoals),
    Strengths: CompareItems(therapistStrengths, aiStrengths, ThresholdStrengths),
    Risk:      CompareRiskAssessments(impressions.RiskObservations.Level, analysis.RiskIndicators),
  }
  result.Stats = buildStats(result)
  return result
}

func countCategory(items []ComparisonItem) CategoryCounts {
  counts := CategoryCounts{}
  for _, item := range items {
    switch item.Alignment {
    case AlignmentAligned:
      counts.Aligned++
    case AlignmentAIOnly:
      counts.AIOnly++
    case AlignmentTherapistOnly:
      counts.TherapistOnly++
    }
  }
  return counts
}

func buildStats(result *ComparisonResult) ComparisonStats {
  stats := ComparisonStats{
    Concerns:  countCategory(result.Concerns),
    Themes:    countCategory(result.Themes),
    Goals:     countCategory(result.Goals),
    Strengths: countCategory(result.Strengths),
  }

  totalAligned := stats.Concerns.Aligned + stats.Themes.Aligned + stats.Goals.Aligned + stats.Strengths.Aligned
  totalItems := len(result.Concerns) + len(result.Themes) + len(result.Goals) + len(result.Strengths)
  if totalItems > 0 {
    stats.OverallAlignment = int(math.Round(100 * float64(totalAligned) / float64(totalItems)))
  }
  return stats
}
