package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Canonical severity values. The AI side of the system speaks uppercase;
// NONE is the explicit zero-risk sentinel used by risk summaries.
const (
	SeverityNone     = "NONE"
	SeverityLow      = "LOW"
	SeverityModerate = "MODERATE"
	SeverityHigh     = "HIGH"
)

// AIAnalysis is the structured extraction for a session transcript. Exactly
// one per session; a second run is rejected rather than overwriting.
type AIAnalysis struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	Session   *Session       `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	ModelName string         `gorm:"column:model_name" json:"model_name"`
	Degraded  bool           `gorm:"column:degraded;not null;default:false" json:"degraded"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AIAnalysis) TableName() string { return "ai_analysis" }

type AnalysisConcern struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
}

type AnalysisGoal struct {
	Text     string `json:"text"`
	Timeline string `json:"timeline,omitempty"`
}

type AnalysisIntervention struct {
	Name      string `json:"name"`
	Rationale string `json:"rationale"`
}

type AnalysisHomework struct {
	Task      string `json:"task"`
	Rationale string `json:"rationale"`
}

type AnalysisStrength struct {
	Text string `json:"text"`
}

type AnalysisRiskIndicator struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Excerpt  string `json:"excerpt"`
}

type AnalysisPayload struct {
	Concerns       []AnalysisConcern       `json:"concerns"`
	Themes         []string                `json:"themes"`
	Goals          []AnalysisGoal          `json:"goals"`
	Interventions  []AnalysisIntervention  `json:"interventions"`
	Homework       []AnalysisHomework      `json:"homework"`
	Strengths      []AnalysisStrength      `json:"strengths"`
	RiskIndicators []AnalysisRiskIndicator `json:"risk_indicators"`
}
