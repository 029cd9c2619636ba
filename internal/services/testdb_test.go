package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sagebridge-health/sagebridge-backend/internal/logger"
	"github.com/sagebridge-health/sagebridge-backend/internal/repos"
	"github.com/sagebridge-health/sagebridge-backend/internal/types"
)

// The production schema relies on Postgres (uuid defaults, jsonb), so tests
// create the sqlite tables explicitly. IDs are always set by the services, so
// no uuid default is needed here.
var testSchema = []string{
	`CREATE TABLE "user" (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'therapist',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE user_token (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE client (
		id TEXT PRIMARY KEY,
		therapist_id TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		portal_user_id TEXT UNIQUE,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE session (
		id TEXT PRIMARY KEY,
		therapist_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		transcript TEXT NOT NULL,
		session_date DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'TRANSCRIPT_UPLOADED',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE therapist_impressions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE ai_analysis (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL,
		model_name TEXT,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE risk_flag (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		risk_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		excerpt TEXT NOT NULL,
		keyword TEXT,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE treatment_plan (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL UNIQUE,
		therapist_id TEXT NOT NULL,
		current_version_id TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE treatment_plan_version (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		source_session_id TEXT NOT NULL,
		therapist_content TEXT NOT NULL,
		client_content TEXT,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		edited_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (plan_id, version_number)
	)`,
	`CREATE TABLE notification (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create test schema: %v", err)
		}
	}
	return db
}

type testEnv struct {
	db                  *gorm.DB
	log                 *logger.Logger
	userRepo            repos.UserRepo
	userTokenRepo       repos.UserTokenRepo
	clientRepo          repos.ClientRepo
	sessionRepo         repos.SessionRepo
	impressionsRepo     repos.ImpressionsRepo
	aiAnalysisRepo      repos.AIAnalysisRepo
	riskFlagRepo        repos.RiskFlagRepo
	planRepo            repos.TreatmentPlanRepo
	planVersionRepo     repos.PlanVersionRepo
	notificationRepo    repos.NotificationRepo
	notificationService NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	env := &testEnv{
		db:               db,
		log:              log,
		userRepo:         repos.NewUserRepo(db, log),
		userTokenRepo:    repos.NewUserTokenRepo(db, log),
		clientRepo:       repos.NewClientRepo(db, log),
		sessionRepo:      repos.NewSessionRepo(db, log),
		impressionsRepo:  repos.NewImpressionsRepo(db, log),
		aiAnalysisRepo:   repos.NewAIAnalysisRepo(db, log),
		riskFlagRepo:     repos.NewRiskFlagRepo(db, log),
		planRepo:         repos.NewTreatmentPlanRepo(db, log),
		planVersionRepo:  repos.NewPlanVersionRepo(db, log),
		notificationRepo: repos.NewNotificationRepo(db, log),
	}
	env.notificationService = NewNotificationService(db, log, env.notificationRepo)
	return env
}

func (env *testEnv) seedTherapist(t *testing.T) *types.User {
	t.Helper()
	user := &types.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("therapist-%s@example.com", uuid.NewString()[:8]),
		Password:  "hashed",
		FirstName: "Dana",
		LastName:  "Reyes",
		Role:      types.RoleTherapist,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if _, err := env.userRepo.Create(context.Background(), nil, []*types.User{user}); err != nil {
		t.Fatalf("seed therapist: %v", err)
	}
	return user
}

func (env *testEnv) seedClient(t *testing.T, therapistID uuid.UUID) *types.Client {
	t.Helper()
	client := &types.Client{
		ID:          uuid.New(),
		TherapistID: therapistID,
		FirstName:   "Jordan",
		LastName:    "Lee",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if _, err := env.clientRepo.Create(context.Background(), nil, []*types.Client{client}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client
}

func (env *testEnv) seedSession(t *testing.T, therapistID, clientID uuid.UUID, transcript string) *types.Session {
	t.Helper()
	session := &types.Session{
		ID:          uuid.New(),
		TherapistID: therapistID,
		ClientID:    clientID,
		Transcript:  transcript,
		SessionDate: time.Now(),
		Status:      types.SessionStatusTranscriptUploaded,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if _, err := env.sessionRepo.Create(context.Background(), nil, []*types.Session{session}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

// fakeOpenAI satisfies OpenAIClient with a programmable response per call.
type fakeOpenAI struct {
	generate func(schemaName string) (json.RawMessage, error)
	calls    int
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (json.RawMessage, error) {
	f.calls++
	return f.generate(schemaName)
}

func (f *fakeOpenAI) Model() string { return "test-model" }

func validImpressionsPayload() *types.ImpressionsPayload {
	return &types.ImpressionsPayload{
		Concerns: []types.ImpressionConcern{
			{Text: "Work-related anxiety", Severity: types.TherapistRiskModerate},
		},
		Highlights: []string{"Opened up about the layoff"},
		Themes:     []string{"anxiety", "avoidance"},
		Goals: []types.ImpressionGoal{
			{Text: "Practice grounding before meetings", Timeline: "2 weeks"},
		},
		RiskObservations: types.RiskObservations{Level: types.TherapistRiskNone},
		Strengths: []types.ImpressionStrength{
			{Text: "Strong support network"},
		},
		SessionQuality: types.SessionQuality{Rapport: 4, Engagement: 4, Resistance: 2},
	}
}

func validAnalysisJSON() json.RawMessage {
	payload := types.AnalysisPayload{
		Concerns: []types.AnalysisConcern{
			{Text: "Anxiety around job performance", Severity: types.SeverityModerate},
		},
		Themes: []string{"anxiety"},
		Goals: []types.AnalysisGoal{
			{Text: "Build a grounding routine", Timeline: "2 weeks"},
		},
		Interventions: []types.AnalysisIntervention{
			{Name: "Cognitive restructuring", Rationale: "Recurring catastrophic thinking"},
		},
		Homework: []types.AnalysisHomework{
			{Task: "Daily thought record", Rationale: "Capture triggers between sessions"},
		},
		Strengths: []types.AnalysisStrength{
			{Text: "Motivated to change"},
		},
		RiskIndicators: []types.AnalysisRiskIndicator{},
	}
	raw, _ := json.Marshal(payload)
	return raw
}
