package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sort"
  "strings"
  "unicode/utf8"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

const (
  RiskTypeSuicidalIdeation = "suicidal_ideation"
  RiskTypeSelfHarm         = "self_harm"
  RiskTypeHarmToOthers     = "harm_to_others"
  RiskTypeSubstanceCrisis  = "substance_crisis"
)

type RiskDetection struct {
  Type      string `json:"type"`
  Severity  string `json:"severity"`
  Excerpt   string `json:"excerpt"`
  Keyword   string `json:"keyword,omitempty"`
  Reasoning string `json:"reasoning,omitempty"`
}

// RiskDetectionResult carries Degraded=true when the contextual stage failed
// and only keyword hits are present.
type RiskDetectionResult struct {
  Risks    []RiskDetection `json:"risks"`
  Degraded bool            `json:"degraded"`
}

type RiskSummary struct {
  Total           int            `json:"total"`
  ByType          map[string]int `json:"by_type"`
  BySeverity      map[string]int `json:"by_severity"`
  HighestSeverity string         `json:"highest_severity"`
}

type RiskService interface {
  DetectRisks(ctx context.Context, transcript string) *RiskDetectionResult
  GetRiskSummary(risks []RiskDetection) RiskSummary
}

type riskCategory struct {
  riskType string
  phrases  []string
}

// Fixed trigger taxonomy for the deterministic first pass. Phrase presence
// alone cannot determine severity, so every keyword hit starts MODERATE and
// the contextual stage is authoritative when it succeeds.
var riskTaxonomy = []riskCategory{
  {
    riskType: RiskTypeSuicidalIdeation,
    phrases: []string{
      "want to die",
      "kill myself",
      "end my life",
      "end it all",
      "suicide",
      "suicidal",
      "better off dead",
      "no reason to live",
      "don't want to be here anymore",
    },
  },
  {
    riskType: RiskTypeSelfHarm,
    phrases: []string{
      "hurt myself",
      "cut myself",
      "cutting myself",
      "burn myself",
      "self harm",
      "self-harm",
      "punish myself",
    },
  },
  {
    riskType: RiskTypeHarmToOthers,
    phrases: []string{
      "hurt someone",
      "hurt him",
      "hurt her",
      "hurt them",
      "kill him",
      "kill her",
      "kill them",
      "make them pay",
    },
  },
  {
    riskType: RiskTypeSubstanceCrisis,
    phrases: []string{
      "overdose",
      "drank until i blacked out",
      "blackout",
      "can't stop using",
      "can't stop drinking",
      "relapse",
      "withdrawal",
    },
  },
}

const (
  riskContextWindow  = 100
  riskDedupKeyLength = 50
)

type riskService struct {
  log *logger.Logger
  ai  OpenAIClient
}

func NewRiskService(baseLog *logger.Logger, ai OpenAIClient) RiskService {
  serviceLog := baseLog.With("service", "RiskService")
  return &riskService{log: serviceLog, ai: ai}
}

// DetectRisks runs the keyword scan, then the contextual classification with
// the keyword hits as a hint, then merges and deduplicates. The contextual
// stage failing is non-fatal: the keyword hits are still a usable safety net
// and blocking the whole workflow would be worse.
func (rs *riskService) DetectRisks(ctx context.Context, transcript string) *RiskDetectionResult {
  keywordRisks := scanKeywords(transcript)

  aiRisks, err := rs.classifyContextual(ctx, transcript, keywordRisks)
  if err != nil {
    rs.log.Warn("Contextual risk classification failed, degrading to keyword-only results", "error", err)
    return &RiskDetectionResult{Risks: mergeRisks(nil, keywordRisks), Degraded: true}
  }

  return &RiskDetectionResult{Risks: mergeRisks(aiRisks, keywordRisks), Degraded: false}
}

type keywordMatch struct {
  detection RiskDetection
  position  int
}

// scanKeywords finds every occurrence of every trigger phrase, not just the
// first, each with up to 100 characters of context on both sides.
func scanKeywords(transcript string) []RiskDetection {
  lowered := strings.ToLower(transcript)
  matches := []keywordMatch{}

  for _, category := range riskTaxonomy {
    for _, phrase := range category.phrases {
      from := 0
      for {
        idx := strings.Index(lowered[from:], phrase)
        if idx < 0 {
          break
        }
        pos := from + idx
        matches = append(matches, keywordMatch{
          detection: RiskDetection{
            Type:     category.riskType,
            Severity: types.SeverityModerate,
            Excerpt:  excerptAround(transcript, pos, len(phrase)),
            Keyword:  phrase,
          },
          position: pos,
        })
        from = pos + len(phrase)
      }
    }
  }

  sort.SliceStable(matches, func(i, j int) bool {
    return matches[i].position < matches[j].position
  })

  out := make([]RiskDetection, len(matches))
  for i, m := range matches {
    out[i] = m.detection
  }
  return out
}

func excerptAround(transcript string, pos, phraseLen int) string {
  start := pos - riskContextWindow
  end := pos + phraseLen + riskContextWindow
  if start < 0 {
    start = 0
  }
  if end > len(transcript) {
    end = len(transcript)
  }
  // widen to rune starts so the window never splits a multi-byte rune
  for start > 0 && !utf8.RuneStart(transcript[start]) {
    start--
  }
  for end < len(transcript) && !utf8.RuneStart(transcript[end]) {
    end++
  }
  prefix := ""
  suffix := ""
  if start > 0 {
    prefix = "..."
  }
  if end < len(transcript) {
    suffix = "..."
  }
  return prefix + transcript[start:end] + suffix
}

const riskRubricSystem = `You are a clinical safety reviewer for therapy session transcripts.
Identify safety risks (suicidal_ideation, self_harm, harm_to_others, substance_crisis) and rate each:
- LOW: past history or fleeting ideation without plan.
- MODERATE: current ideation with some planning but ambivalence or protective factors.
- HIGH: current intent, specific plan, imminent danger, no protective factors.
Quote the relevant transcript excerpt for each risk and explain your reasoning briefly.
Return an empty list when no risk is present. Absence of risk is an expected, valid outcome.`

var riskListSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"risks"},
  "properties": map[string]any{
    "risks": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type":                 "object",
        "additionalProperties": false,
        "required":             []string{"type", "severity", "excerpt", "reasoning"},
        "properties": map[string]any{
          "type": map[string]any{
            "type": "string",
            "enum": []string{RiskTypeSuicidalIdeation, RiskTypeSelfHarm, RiskTypeHarmToOthers, RiskTypeSubstanceCrisis},
          },
          "severity": map[string]any{
            "type": "string",
            "enum": []string{types.SeverityLow, types.SeverityModerate, types.SeverityHigh},
          },
          "excerpt":   map[string]any{"type": "string"},
          "reasoning": map[string]any{"type": "string"},
        },
      },
    },
  },
}

func (rs *riskService) classifyContextual(ctx context.Context, transcript string, keywordRisks []RiskDetection) ([]RiskDetection, error) {
  var hint strings.Builder
  if len(keywordRisks) > 0 {
    hint.WriteString("Keyword scan hits (context only, verify against the transcript):\n")
    for _, kr := range keywordRisks {
      fmt.Fprintf(&hint, "- [%s] %q\n", kr.Type, kr.Keyword)
    }
  } else {
    hint.WriteString("Keyword scan found no trigger phrases.\n")
  }

  user := fmt.Sprintf("%s\nTranscript:\n%s", hint.String(), transcript)

  raw, err := rs.ai.GenerateJSON(ctx, riskRubricSystem, user, "risk_detections", riskListSchema)
  if err != nil {
    return nil, fmt.Errorf("risk classification call: %w", err)
  }

  var parsed struct {
    Risks []RiskDetection `json:"risks"`
  }
  if err := json.Unmarshal(raw, &parsed); err != nil {
    return nil, fmt.Errorf("parse risk classification: %w", err)
  }
  for _, r := range parsed.Risks {
    if severityRank(r.Severity) == 0 {
      return nil, fmt.Errorf("risk classification returned unknown severity %q", r.Severity)
    }
  }
  return parsed.Risks, nil
}

// mergeRisks concatenates AI risks (authoritative for severity, placed first
// so they win dedup ties) and keyword risks, dedups on normalized excerpt and
// sorts by severity descending.
func mergeRisks(aiRisks, keywordRisks []RiskDetection) []RiskDetection {
  merged := make([]RiskDetection, 0, len(aiRisks)+len(keywordRisks))
  merged = append(merged, aiRisks...)
  merged = append(merged, keywordRisks...)

  seen := map[string]bool{}
  deduped := make([]RiskDetection, 0, len(merged))
  for _, r := range merged {
    key := normalizeExcerptKey(r.Excerpt)
    if seen[key] {
      continue
    }
    seen[key] = true
    deduped = append(deduped, r)
  }

  sort.SliceStable(deduped, func(i, j int) bool {
    return severityRank(deduped[i].Severity) > severityRank(deduped[j].Severity)
  })
  return deduped
}

func normalizeExcerptKey(excerpt string) string {
  var b strings.Builder
  for _, r := range strings.ToLower(excerpt) {
    if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
      b.WriteRune(r)
    }
  }
  key := b.String()
  if len(key) > riskDedupKeyLength {
    key = key[:riskDedupKeyLength]
  }
  return key
}

func severityRank(severity string) int {
  switch severity {
  case types.SeverityHigh:
    return 3
  case types.SeverityModerate:
    return 2
  case types.SeverityLow:
    return 1
  }
  return 0
}

func (rs *riskService) GetRiskSummary(risks []RiskDetection) RiskSummary {
  summary := RiskSummary{
    Total:           len(risks),
    ByType:          map[string]int{},
    BySeverity:      map[string]int{},
    HighestSeverity: types.SeverityNone,
  }
  for _, r := range risks {
    summary.ByType[r.Type]++
    summary.BySeverity[r.Severity]++
    if severityRank(r.Severity) > severityRank(summary.HighestSeverity) {
      summary.HighestSeverity = r.Severity
    }
  }
  return summary
}
