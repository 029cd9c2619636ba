package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PlanStatusDraft    = "DRAFT"
	PlanStatusApproved = "APPROVED"
)

// TreatmentPlan is logically one-per-client; CurrentVersionID tracks the most
// recently merged version. Superseded versions are retained for audit.
type TreatmentPlan struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ClientID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"client_id"`
	Client           *Client        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	TherapistID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"therapist_id"`
	Therapist        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:TherapistID;references:ID" json:"therapist,omitempty"`
	CurrentVersionID *uuid.UUID     `gorm:"type:uuid" json:"current_version_id,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TreatmentPlan) TableName() string { return "treatment_plan" }

// TreatmentPlanVersion snapshots the clinical content merged from one source
// session. ClientContent is only populated on approval and is cleared the
// moment TherapistContent is edited, so it can never go stale.
type TreatmentPlanVersion struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PlanID           uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:ux_plan_version" json:"plan_id"`
	Plan             *TreatmentPlan `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	VersionNumber    int            `gorm:"column:version_number;not null;uniqueIndex:ux_plan_version" json:"version_number"`
	SourceSessionID  uuid.UUID      `gorm:"type:uuid;not null" json:"source_session_id"`
	TherapistContent datatypes.JSON `gorm:"column:therapist_content;type:jsonb;not null" json:"therapist_content"`
	ClientContent    datatypes.JSON `gorm:"column:client_content;type:jsonb" json:"client_content,omitempty"`
	Status           string         `gorm:"column:status;not null;default:'DRAFT'" json:"status"`
	EditedAt         *time.Time     `gorm:"column:edited_at" json:"edited_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (TreatmentPlanVersion) TableName() string { return "treatment_plan_version" }
