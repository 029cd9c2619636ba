package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type MergePlanInput struct {
  ClientID  uuid.UUID
  SessionID uuid.UUID
  Content   types.PlanContent
}

type PlanService interface {
  MergePlan(ctx context.Context, therapistID uuid.UUID, input MergePlanInput) (*types.TreatmentPlan, *types.TreatmentPlanVersion, error)
  EditPlan(ctx context.Context, therapistID, planID uuid.UUID, content *types.PlanContent) (*types.TreatmentPlanVersion, error)
  ApprovePlan(ctx context.Context, therapistID, planID uuid.UUID) (*types.TreatmentPlanVersion, error)
  GetPlan(ctx context.Context, therapistID, planID uuid.UUID) (*types.TreatmentPlan, []*types.TreatmentPlanVersion, error)
  GetPlanForClient(ctx context.Context, therapistID, clientID uuid.UUID) (*types.TreatmentPlan, *types.TreatmentPlanVersion, error)
  GetPortalPlan(ctx context.Context, portalUserID uuid.UUID) (*types.ClientPlanView, error)
}

type planService struct {
  db                  *gorm.DB
  log                 *logger.Logger
  clientRepo          repos.ClientRepo
  sessionRepo         repos.SessionRepo
  planRepo            repos.TreatmentPlanRepo
  planVersionRepo     repos.PlanVersionRepo
  analysisService     AnalysisService
  notificationService NotificationService
}

func NewPlanService(
  db *gorm.DB,
  baseLog *logger.Logger,
  clientRepo repos.ClientRepo,
  sessionRepo repos.SessionRepo,
  planRepo repos.TreatmentPlanRepo,
  planVersionRepo repos.PlanVersionRepo,
  analysisService AnalysisService,
  notificationService NotificationService,
) PlanService {
  serviceLog := baseLog.With("service", "PlanService")
  return &planService{
    db:                  db,
    log:                 serviceLog,
    clientRepo:          clientRepo,
    sessionRepo:         sessionRepo,
    planRepo:            planRepo,
    planVersionRepo:     planVersionRepo,
    analysisService:     analysisService,
    notificationService: notificationService,
  }
}

// MergePlan turns the therapist's comparison selections into a new DRAFT plan
// version: version 1 on a fresh plan, N+1 otherwise. Version creation, the
// current-version repoint and the source session's terminal status land in
// one transaction.
func (ps *planService) MergePlan(ctx context.Context, therapistID uuid.UUID, input MergePlanInput) (*types.TreatmentPlan, *types.TreatmentPlanVersion, error) {
  client, err := ps.clientRepo.GetByID(ctx, nil, input.ClientID)
  if err != nil {
    return nil, nil, fmt.Errorf("load client: %w", err)
  }
  if client == nil {
    return nil, nil, fmt.Errorf("%w: client %s", ErrNotFound, input.ClientID)
  }
  if client.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: client belongs to another therapist", ErrForbidden)
  }

  session, err := ps.sessionRepo.GetByID(ctx, nil, input.SessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load session: %w", err)
  }
  if session == nil {
    return nil, nil, fmt.Errorf("%w: session %s", ErrNotFound, input.SessionID)
  }
  if session.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: session belongs to another therapist", ErrForbidden)
  }
  if session.ClientID != input.ClientID {
    return nil, nil, fmt.Errorf("%w: session does not belong to client %s", ErrValidation, input.ClientID)
  }

  contentJSON, err := json.Marshal(input.Content)
  if err != nil {
    return nil, nil, fmt.Errorf("marshal plan content: %w", err)
  }

  var plan *types.TreatmentPlan
  var version *types.TreatmentPlanVersion

  txErr := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    plan, err = ps.planRepo.GetByClientID(ctx, tx, input.ClientID)
    if err != nil {
      return fmt.Errorf("load plan: %w", err)
    }
    if plan == nil {
      plan = &types.TreatmentPlan{
        ID:          uuid.New(),
        ClientID:    input.ClientID,
        TherapistID: therapistID,
        CreatedAt:   time.Now(),
        UpdatedAt:   time.Now(),
      }
      if _, err := ps.planRepo.Create(ctx, tx, []*types.TreatmentPlan{plan}); err != nil {
        return fmt.Errorf("create plan: %w", err)
      }
    }

    maxVersion, err := ps.planVersionRepo.MaxVersionNumber(ctx, tx, plan.ID)
    if err != nil {
      return fmt.Errorf("load max version number: %w", err)
    }

    version = &types.TreatmentPlanVersion{
      ID:               uuid.New(),
      PlanID:           plan.ID,
      VersionNumber:    maxVersion + 1,
      SourceSessionID:  input.SessionID,
      TherapistContent: contentJSON,
      Status:           types.PlanStatusDraft,
      CreatedAt:        time.Now(),
      UpdatedAt:        time.Now(),
    }
    if _, err := ps.planVersionRepo.Create(ctx, tx, []*types.TreatmentPlanVersion{version}); err != nil {
      return fmt.Errorf("create plan version: %w", err)
    }
    if err := ps.planRepo.SetCurrentVersion(ctx, tx, plan.ID, version.ID); err != nil {
      return fmt.Errorf("repoint current version: %w", err)
    }
    if err := ps.sessionRepo.UpdateStatus(ctx, tx, input.SessionID, types.SessionStatusPlanMerged); err != nil {
      return fmt.Errorf("update session status: %w", err)
    }
    return nil
  })
  if txErr != nil {
    // a concurrent first merge loses on the unique client_id index
    if errors.Is(txErr, gorm.ErrDuplicatedKey) {
      return nil, nil, fmt.Errorf("%w: plan already exists for client %s", ErrConflict, input.ClientID)
    }
    ps.log.Error("MergePlan transaction failed", "error", txErr, "client_id", input.ClientID)
    return nil, nil, txErr
  }

  plan.CurrentVersionID = &version.ID
  ps.log.Info("Plan merged", "plan_id", plan.ID, "version", version.VersionNumber, "source_session_id", input.SessionID)
  return plan, version, nil
}

// EditPlan revises the current version in place. It does not create a new
// version row: editing is corrective on the same version, while a merge from
// a new session produces a genuinely new one. The edit forces DRAFT and
// clears the client paraphrase so it can never go stale.
func (ps *planService) EditPlan(ctx context.Context, therapistID, planID uuid.UUID, content *types.PlanContent) (*types.TreatmentPlanVersion, error) {
  plan, version, err := ps.loadPlanAndCurrentVersion(ctx, therapistID, planID)
  if err != nil {
    return nil, err
  }

  contentJSON, err := json.Marshal(content)
  if err != nil {
    return nil, fmt.Errorf("marshal plan content: %w", err)
  }

  now := time.Now()
  updates := map[string]interface{}{
    "therapist_content": contentJSON,
    "client_content":    nil,
    "status":            types.PlanStatusDraft,
    "edited_at":         now,
    "updated_at":        now,
  }
  if err := ps.planVersionRepo.Update(ctx, nil, version.ID, updates); err != nil {
    return nil, fmt.Errorf("update plan version: %w", err)
  }

  version.TherapistContent = contentJSON
  version.ClientContent = nil
  version.Status = types.PlanStatusDraft
  version.EditedAt = &now
  version.UpdatedAt = now
  ps.log.Info("Plan edited", "plan_id", plan.ID, "version", version.VersionNumber)
  return version, nil
}

// ApprovePlan is all-or-nothing: the paraphrase is generated synchronously
// and the version only flips to APPROVED once it exists. A paraphrase
// failure surfaces directly and the version stays DRAFT.
func (ps *planService) ApprovePlan(ctx context.Context, therapistID, planID uuid.UUID) (*types.TreatmentPlanVersion, error) {
  plan, version, err := ps.loadPlanAndCurrentVersion(ctx, therapistID, planID)
  if err != nil {
    return nil, err
  }
  if version.Status == types.PlanStatusApproved {
    return nil, fmt.Errorf("%w: plan version %d is already approved", ErrConflict, version.VersionNumber)
  }

  content, err := types.NormalizePlanContent(version.TherapistContent)
  if err != nil {
    return nil, err
  }
  view, err := ps.analysisService.GenerateClientView(ctx, content)
  if err != nil {
    return nil, err
  }
  viewJSON, err := json.Marshal(view)
  if err != nil {
    return nil, fmt.Errorf("marshal client view: %w", err)
  }

  now := time.Now()
  txErr := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    updates := map[string]interface{}{
      "client_content": viewJSON,
      "status":         types.PlanStatusApproved,
      "updated_at":     now,
    }
    if err := ps.planVersionRepo.Update(ctx, tx, version.ID, updates); err != nil {
      return fmt.Errorf("update plan version: %w", err)
    }
    return ps.notificationService.Notify(ctx, tx, therapistID, types.NotificationPlanApproved, "Treatment plan approved and shared with the client")
  })
  if txErr != nil {
    ps.log.Error("ApprovePlan transaction failed", "error", txErr, "plan_id", plan.ID)
    return nil, txErr
  }

  version.ClientContent = viewJSON
  version.Status = types.PlanStatusApproved
  version.UpdatedAt = now
  ps.log.Info("Plan approved", "plan_id", plan.ID, "version", version.VersionNumber)
  return version, nil
}

func (ps *planService) GetPlan(ctx context.Context, therapistID, planID uuid.UUID) (*types.TreatmentPlan, []*types.TreatmentPlanVersion, error) {
  plan, err := ps.planRepo.GetByID(ctx, nil, planID)
  if err != nil {
    return nil, nil, fmt.Errorf("load plan: %w", err)
  }
  if plan == nil {
    return nil, nil, fmt.Errorf("%w: plan %s", ErrNotFound, planID)
  }
  if plan.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: plan belongs to another therapist", ErrForbidden)
  }
  versions, err := ps.planVersionRepo.ListByPlanID(ctx, nil, planID)
  if err != nil {
    return nil, nil, fmt.Errorf("load plan versions: %w", err)
  }
  return plan, versions, nil
}

func (ps *planService) GetPlanForClient(ctx context.Context, therapistID, clientID uuid.UUID) (*types.TreatmentPlan, *types.TreatmentPlanVersion, error) {
  client, err := ps.clientRepo.GetByID(ctx, nil, clientID)
  if err != nil {
    return nil, nil, fmt.Errorf("load client: %w", err)
  }
  if client == nil {
    return nil, nil, fmt.Errorf("%w: client %s", ErrNotFound, clientID)
  }
  if client.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: client belongs to another therapist", ErrForbidden)
  }
  plan, err := ps.planRepo.GetByClientID(ctx, nil, clientID)
  if err != nil {
    return nil, nil, fmt.Errorf("load plan: %w", err)
  }
  if plan == nil || plan.CurrentVersionID == nil {
    return nil, nil, fmt.Errorf("%w: no plan for client %s", ErrNotFound, clientID)
  }
  version, err := ps.planVersionRepo.GetByID(ctx, nil, *plan.CurrentVersionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load current version: %w", err)
  }
  if version == nil {
    return nil, nil, fmt.Errorf("%w: current version missing for plan %s", ErrNotFound, plan.ID)
  }
  return plan, version, nil
}

// GetPortalPlan returns only the approved paraphrase for the client linked to
// the acting portal user. Drafts are invisible to clients.
func (ps *planService) GetPortalPlan(ctx context.Context, portalUserID uuid.UUID) (*types.ClientPlanView, error) {
  client, err := ps.clientRepo.GetByPortalUserID(ctx, nil, portalUserID)
  if err != nil {
    return nil, fmt.Errorf("load client: %w", err)
  }
  if client == nil {
    return nil, fmt.Errorf("%w: no client record for this account", ErrNotFound)
  }
  plan, err := ps.planRepo.GetByClientID(ctx, nil, client.ID)
  if err != nil {
    return nil, fmt.Errorf("load plan: %w", err)
  }
  if plan == nil || plan.CurrentVersionID == nil {
    return nil, fmt.Errorf("%w: no plan available", ErrNotFound)
  }
  version, err := ps.planVersionRepo.GetByID(ctx, nil, *plan.CurrentVersionID)
  if err != nil {
    return nil, fmt.Errorf("load current version: %w", err)
  }
  if version == nil || version.Status != types.PlanStatusApproved || len(version.ClientContent) == 0 {
    return nil, fmt.Errorf("%w: no approved plan available", ErrNotFound)
  }
  var view types.ClientPlanView
  if err := json.Unmarshal(version.ClientContent, &view); err != nil {
    return nil, fmt.Errorf("decode client view: %w", err)
  }
  return &view, nil
}

func (ps *planService) loadPlanAndCurrentVersion(ctx context.Context, therapistID, planID uuid.UUID) (*types.TreatmentPlan, *types.TreatmentPlanVersion, error) {
  plan, err := ps.planRepo.GetByID(ctx, nil, planID)
  if err != nil {
    return nil, nil, fmt.Errorf("load plan: %w", err)
  }
  if plan == nil {
    return nil, nil, fmt.Errorf("%w: plan %s", ErrNotFound, planID)
  }
  if plan.TherapistID != therapistID {
    return nil, nil, fmt.Errorf("%w: plan belongs to another therapist", ErrForbidden)
  }
  if plan.CurrentVersionID == nil {
    return nil, nil, fmt.Errorf("%w: plan %s has no versions", ErrNotFound, planID)
  }
  version, err := ps.planVersionRepo.GetByID(ctx, nil, *plan.CurrentVersionID)
  if err != nil {
    return nil, nil, fmt.Errorf("load current version: %w", err)
  }
  if version == nil {
    return nil, nil, fmt.Errorf("%w: current version missing for plan %s", ErrNotFound, planID)
  }
  return plan, version, nil
}
