package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TherapistID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"therapist_id"`
	Therapist    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:TherapistID;references:ID" json:"therapist,omitempty"`
	FirstName    string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string         `gorm:"column:last_name;not null" json:"last_name"`
	PortalUserID *uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"portal_user_id,omitempty"`
	PortalUser   *User          `gorm:"constraint:OnDelete:SET NULL;foreignKey:PortalUserID;references:ID" json:"portal_user,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Client) TableName() string { return "client" }
