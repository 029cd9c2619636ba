package types

import (
	"time"

	"github.com/google/uuid"
)

// RiskFlag rows are an audit trail: bulk-inserted when analysis runs and
// never deleted. Acknowledgment is the only mutation.
type RiskFlag struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID    uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Session      *Session  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	RiskType     string    `gorm:"column:risk_type;not null" json:"risk_type"`
	Severity     string    `gorm:"column:severity;not null" json:"severity"`
	Excerpt      string    `gorm:"column:excerpt;type:text;not null" json:"excerpt"`
	Keyword      string    `gorm:"column:keyword" json:"keyword,omitempty"`
	Acknowledged bool      `gorm:"column:acknowledged;not null;default:false" json:"acknowledged"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RiskFlag) TableName() string { return "risk_flag" }
