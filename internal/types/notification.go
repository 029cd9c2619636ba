package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationAnalysisComplete = "analysis_complete"
	NotificationHighRisk         = "high_risk_flagged"
	NotificationPlanApproved     = "plan_approved"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Kind      string    `gorm:"column:kind;not null" json:"kind"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	Read      bool      `gorm:"column:read;not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Notification) TableName() string { return "notification" }
