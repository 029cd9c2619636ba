package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

const analysisMaxRetries = 3

type AnalysisService interface {
  RunAnalysis(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.AIAnalysis, []*types.RiskFlag, error)
  GetAnalysis(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.AIAnalysis, *types.AnalysisPayload, error)
  GenerateAnalysis(ctx context.Context, transcript string) (*types.AnalysisPayload, error)
  GenerateClientView(ctx context.Context, content *types.PlanContent) (*types.ClientPlanView, error)
}

type analysisService struct {
  db                  *gorm.DB
  log                 *logger.Logger
  ai                  OpenAIClient
  sessionRepo         repos.SessionRepo
  impressionsRepo     repos.ImpressionsRepo
  aiAnalysisRepo      repos.AIAnalysisRepo
  riskFlagRepo        repos.RiskFlagRepo
  riskService         RiskService
  notificationService NotificationService

  maxRetries int
}

func NewAnalysisService(
  db *gorm.DB,
  baseLog *logger.Logger,
  ai OpenAIClient,
  sessionRepo repos.SessionRepo,
  impressionsRepo repos.ImpressionsRepo,
  aiAnalysisRepo repos.AIAnalysisRepo,
  riskFlagRepo repos.RiskFlagRepo,
  riskService RiskService,
  notificationService NotificationService,
) AnalysisService {
  serviceLog := baseLog.With("service", "AnalysisService")
  return &analysisService{
    db:                  db,
    log:                 serviceLog,
    ai:                  ai,
    sessionRepo:         sessionRepo,
    impressionsRepo:     impressionsRepo,
    aiAnalysisRepo:      aiAnalysisRepo,
    riskFlagRepo:        riskFlagRepo,
    riskService:         riskService,
    notificationService: notificationService,
    maxRetries:          analysisMaxRetries,
  }
}

const analysisSystemPrompt = `You are a clinical assistant extracting structured observations from a therapy session transcript.
Extract: presenting concerns (with severity LOW/MODERATE/HIGH), recurring themes, treatment goals (with timeline when stated),
suggested interventions (with rationale), suggested homework (with rationale), client strengths, and risk indicators
(with type, severity and supporting excerpt). Base everything strictly on the transcript. Empty arrays are valid.`

func stringProp() map[string]any {
  return map[string]any{"type": "string"}
}

func arrayOf(required []string, props map[string]any) map[string]any {
  return map[string]any{
    "type": "array",
    "items": map[string]any{
      "type":                 "object",
      "additionalProperties": false,
      "required":             required,
      "properties":           props,
    },
  }
}

var severityProp = map[string]any{
  "type": "string",
  "enum": []string{types.SeverityLow, types.SeverityModerate, types.SeverityHigh},
}

var analysisSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"concerns", "themes", "goals", "interventions", "homework", "strengths", "risk_indicators"},
  "properties": map[string]any{
    "concerns": arrayOf([]string{"text", "severity"}, map[string]any{
      "text":     stringProp(),
      "severity": severityProp,
    }),
    "themes": map[string]any{"type": "array", "items": stringProp()},
    "goals": arrayOf([]string{"text", "timeline"}, map[string]any{
      "text":     stringProp(),
      "timeline": stringProp(),
    }),
    "interventions": arrayOf([]string{"name", "rationale"}, map[string]any{
      "name":      stringProp(),
      "rationale": stringProp(),
    }),
    "homework": arrayOf([]string{"task", "rationale"}, map[string]any{
      "task":      stringProp(),
      "rationale": stringProp(),
    }),
    "strengths": arrayOf([]string{"text"}, map[string]any{
      "text": stringProp(),
    }),
    "risk_indicators": arrayOf([]string{"type", "severity", "excerpt"}, map[string]any{
      "type":     stringProp(),
      "severity": severityProp,
      "excerpt":  stringProp(),
    }),
  },
}

// GenerateAnalysis calls the extraction model and validates the response,
// retrying the whole attempt with exponential backoff (1s, 2s, 4s) on any
// failure. Attempts are fully independent; after exhaustion the terminal
// error carries the last underlying failure.
func (as *analysisService) GenerateAnalysis(ctx context.Context, transcript string) (*types.AnalysisPayload, error) {
  var lastErr error
  for attempt := 0; attempt < as.maxRetries; attempt++ {
    if attempt > 0 {
      backoff := time.Duration(1<<(attempt-1)) * time.Second
      as.log.Warn("Retrying analysis extraction", "attempt", attempt+1, "max_retries", as.maxRetries, "backoff", backoff.String(), "error", lastErr)
      select {
      case <-time.After(backoff):
      case <-ctx.Done():
        return nil, ctx.Err()
      }
    }

    payload, err := as.extractOnce(ctx, transcript)
    if err != nil {
      lastErr = err
      continue
    }
    return payload, nil
  }
  return nil, fmt.Errorf("analysis extraction failed after %d attempts: %w", as.maxRetries, lastErr)
}

func (as *analysisService) extractOnce(ctx context.Context, transcript string) (*types.AnalysisPayload, error) {
  raw, err := as.ai.GenerateJSON(ctx, analysisSystemPrompt, "Transcript:\n"+transcript, "clinical_analysis", analysisSchema)
  if err != nil {
    return nil, err
  }
  var payload types.AnalysisPayload
  if err := json.Unmarshal(raw, &payload); err != nil {
    return nil, fmt.Errorf("parse analysis response: %w", err)
  }
  if err := validateAnalysisPayload(&payload); err != nil {
    return nil, err
  }
  return &payload, nil
}

func validateAnalysisPayload(payload *types.AnalysisPayload) error {
  problems := []string{}
  for i, c := range payload.Concerns {
    if strings.TrimSpace(c.Text) == "" {
      problems = append(problems, fmt.Sprintf("concerns[%d].text is empty", i))
    }
    if severityRank(c.Severity) == 0 {
      problems = append(problems, fmt.Sprintf("concerns[%d].severity %q is not one of LOW/MODERATE/HIGH", i, c.Severity))
    }
  }
  for i, t := range payload.Themes {
    if strings.TrimSpace(t) == "" {
      problems = append(problems, fmt.Sprintf("themes[%d] is empty", i))
    }
  }
  for i, g := range payload.Goals {
    if strings.TrimSpace(g.Text) == "" {
      problems = append(problems, fmt.Sprintf("goals[%d].text is empty", i))
    }
  }
  for i, iv := range payload.Interventions {
    if strings.TrimSpace(iv.Name) == "" {
      problems = append(problems, fmt.Sprintf("interventions[%d].name is empty", i))
    }
  }
  for i, h := range payload.Homework {
    if strings.TrimSpace(h.Task) == "" {
      problems = append(problems, fmt.Sprintf("homework[%d].task is empty", i))
    }
  }
  for i, s := range payload.Strengths {
    if strings.TrimSpace(s.Text) == "" {
      problems = append(problems, fmt.Sprintf("strengths[%d].text is empty", i))
    }
  }
  for i, r := range payload.RiskIndicators {
    if strings.TrimSpace(r.Type) == "" {
      problems = append(problems, fmt.Sprintf("risk_indicators[%d].type is empty", i))
    }
    if severityRank(r.Severity) == 0 {
      problems = append(problems, fmt.Sprintf("risk_indicators[%d].severity %q is not one of LOW/MODERATE/HIGH", i, r.Severity))
    }
  }
  if len(problems) > 0 {
    return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
  }
  return nil
}

const clientViewSystemPrompt = `You rewrite a therapist-approved treatment plan for the client to read.
Use warm, encouraging, non-clinical language at roughly an 8th grade reading level.
No diagnoses, no clinical jargon, no severity labels. Focus on what the client is working on,
their strengths, and concrete next steps.`

var clientViewSchema = map[string]any{
  "type":                 "object",
  "additionalProperties": false,
  "required":             []string{"summary", "working_on", "strengths", "next_steps", "encouragement"},
  "properties": map[string]any{
    "summary":       stringProp(),
    "working_on":    map[string]any{"type": "array", "items": stringProp()},
    "strengths":     map[string]any{"type": "array", "items": stringProp()},
    "next_steps":    map[string]any{"type": "array", "items": stringProp()},
    "encouragement": stringProp(),
  },
}

// GenerateClientView has no retry logic on purpose: approval must fail loudly
// when paraphrasing fails, never silently retry into an inconsistent state.
func (as *analysisService) GenerateClientView(ctx context.Context, content *types.PlanContent) (*types.ClientPlanView, error) {
  clinical, err := json.Marshal(content)
  if err != nil {
    return nil, fmt.Errorf("marshal plan content: %w", err)
  }
  raw, err := as.ai.GenerateJSON(ctx, clientViewSystemPrompt, "Treatment plan:\n"+string(clinical), "client_plan_view", clientViewSchema)
  if err != nil {
    return nil, fmt.Errorf("client view generation: %w", err)
  }
  var view types.ClientPlanView
  if err := json.Unmarshal(raw, &view); err != nil {
    return nil, fmt.Errorf("parse client view response: %w", err)
  }
  if strings.TrimSpace(view.Summary) == "" {
    return nil, fmt.Errorf("%w: client view summary is empty", ErrValidation)
  }
  return &view, nil
}

// RunAnalysis runs extraction and risk detection for a session and persists
// the analysis, its risk flags and the session status in one transaction.
func (as *analysisService) RunAnalysis(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.AIAnalysis, []*types.RiskFlag, error) {
  session, err := as.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  if strings.TrimSpace(session.Transcript) == "" {
    return nil, nil, fmt.Errorf("%w: session transcript is empty", ErrValidation)
  }

  exists, err := as.aiAnalysisRepo.ExistsBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("check existing analysis: %w", err)
  }
  if exists {
    return nil, nil, fmt.Errorf("%w: analysis already exists for session %s", ErrConflict, sessionID)
  }

  payload, err := as.GenerateAnalysis(ctx, session.Transcript)
  if err != nil {
    return nil, nil, err
  }
  detection := as.riskService.DetectRisks(ctx, session.Transcript)

  payloadJSON, err := json.Marshal(payload)
  if err != nil {
    return nil, nil, fmt.Errorf("marshal analysis payload: %w", err)
  }

  analysis := &types.AIAnalysis{
    ID:        uuid.New(),
    SessionID: sessionID,
    Payload:   payloadJSON,
    ModelName: as.ai.Model(),
    Degraded:  detection.Degraded,
    CreatedAt: time.Now(),
    UpdatedAt: time.Now(),
  }

  flags := make([]*types.RiskFlag, 0, len(detection.Risks))
  for _, r := range detection.Risks {
    flags = append(flags, &types.RiskFlag{
      ID:        uuid.New(),
      SessionID: sessionID,
      RiskType:  r.Type,
      Severity:  r.Severity,
      Excerpt:   r.Excerpt,
      Keyword:   r.Keyword,
      CreatedAt: time.Now(),
      UpdatedAt: time.Now(),
    })
  }

  impressions, err := as.impressionsRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("check impressions: %w", err)
  }
  nextStatus := types.SessionStatusAIAnalyzed
  if impressions != nil {
    nextStatus = types.SessionStatusComparisonReady
  }

  txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := as.aiAnalysisRepo.Create(ctx, tx, []*types.AIAnalysis{analysis}); err != nil {
      return fmt.Errorf("create analysis: %w", err)
    }
    if _, err := as.riskFlagRepo.Create(ctx, tx, flags); err != nil {
      return fmt.Errorf("create risk flags: %w", err)
    }
    if err := as.sessionRepo.UpdateStatus(ctx, tx, sessionID, nextStatus); err != nil {
      return fmt.Errorf("update session status: %w", err)
    }
    if err := as.notificationService.Notify(ctx, tx, therapistID, types.NotificationAnalysisComplete, "AI analysis is ready for review"); err != nil {
      return err
    }
    for _, f := range flags {
      if f.Severity == types.SeverityHigh {
        if err := as.notificationService.Notify(ctx, tx, therapistID, types.NotificationHighRisk, "A high-severity safety risk was flagged"); err != nil {
          return err
        }
        break
      }
    }
    return nil
  })
  if txErr != nil {
    // a concurrent second run loses on the unique session_id index
    if errors.Is(txErr, gorm.ErrDuplicatedKey) {
      return nil, nil, fmt.Errorf("%w: analysis already exists for session %s", ErrConflict, sessionID)
    }
    as.log.Error("RunAnalysis transaction failed", "error", txErr, "session_id", sessionID)
    return nil, nil, txErr
  }

  as.log.Info("Analysis complete", "session_id", sessionID, "risk_flags", len(flags), "degraded", detection.Degraded, "status", nextStatus)
  return analysis, flags, nil
}

func (as *analysisService) GetAnalysis(ctx context.Context, therapistID, sessionID uuid.UUID) (*types.AIAnalysis, *types.AnalysisPayload, error) {
  session, err := as.sessionRepo.GetByID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
  }
  if session.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  analysis, err := as.aiAnalysisRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load analysis: %w", err)
  }
  if analysis == nil {
    return nil, nil, fmt.Errorf("%w: no analysis for session %s", ErrNotFound, sessionID)
  }
  var payload types.AnalysisPayload
  if err := json.Unmarshal(analysis.Payload, &payload); err != nil {
    return nil, nil, fmt.Errorf("decode analysis payload: %w", err)
  }
  return analysis, &payload, nil
}
