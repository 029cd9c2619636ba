package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session status moves forward only: a transcript is uploaded, impressions and
// AI analysis land in either order, and a merged plan closes the workflow.
const (
	SessionStatusTranscriptUploaded  = "TRANSCRIPT_UPLOADED"
	SessionStatusImpressionsComplete = "IMPRESSIONS_COMPLETE"
	SessionStatusAIAnalyzed          = "AI_ANALYZED"
	SessionStatusComparisonReady     = "COMPARISON_READY"
	SessionStatusPlanMerged          = "PLAN_MERGED"
)

type Session struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TherapistID uuid.UUID      `gorm:"type:uuid;not null;index" json:"therapist_id"`
	Therapist   *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:TherapistID;references:ID" json:"therapist,omitempty"`
	ClientID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      *Client        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
	Transcript  string         `gorm:"column:transcript;type:text;not null" json:"transcript"`
	SessionDate time.Time      `gorm:"column:session_date;not null;default:now()" json:"session_date"`
	Status      string         `gorm:"column:status;not null;default:'TRANSCRIPT_UPLOADED'" json:"status"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "session" }
