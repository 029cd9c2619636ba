package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TherapistImpressions is the therapist-authored structured record for a
// session. There is at most one per session; the unique index backs the
// create-once contract under concurrent submission.
type TherapistImpressions struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	Session   *Session       `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (TherapistImpressions) TableName() string { return "therapist_impressions" }

// Therapist-entered risk levels. Lowercase on the wire; see
// services.TherapistSeverityToCanonical for the mapping to the uppercase
// severities used by the AI side.
const (
	TherapistRiskNone     = "none"
	TherapistRiskLow      = "low"
	TherapistRiskModerate = "moderate"
	TherapistRiskHigh     = "high"
)

type ImpressionConcern struct {
	Text       string   `json:"text"`
	Severity   string   `json:"severity"`
	ExcerptIDs []string `json:"excerpt_ids,omitempty"`
}

type ImpressionGoal struct {
	Text     string `json:"text"`
	Timeline string `json:"timeline,omitempty"`
}

type ImpressionStrength struct {
	Text string `json:"text"`
}

type RiskObservations struct {
	Level string `json:"level"`
	Notes string `json:"notes,omitempty"`
}

type SessionQuality struct {
	Rapport    int    `json:"rapport"`
	Engagement int    `json:"engagement"`
	Resistance int    `json:"resistance"`
	Notes      string `json:"notes,omitempty"`
}

type ImpressionsPayload struct {
	Concerns         []ImpressionConcern  `json:"concerns"`
	Highlights       []string             `json:"highlights"`
	Themes           []string             `json:"themes"`
	Goals            []ImpressionGoal     `json:"goals"`
	Diagnoses        []string             `json:"diagnoses,omitempty"`
	Modalities       []string             `json:"modalities,omitempty"`
	RiskObservations RiskObservations     `json:"risk_observations"`
	Strengths        []ImpressionStrength `json:"strengths"`
	SessionQuality   SessionQuality       `json:"session_quality"`
}
