package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/enums"
)

// CertificationEvent is one row of a certification's status history.
type CertificationEvent struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	CertificationID uuid.UUID                  `gorm:"column:certification_id;type:uuid;not null;index"`
	FromStatus      *enums.CertificationStatus `gorm:"column:from_status;size:16"`
	ToStatus        enums.CertificationStatus  `gorm:"column:to_status;size:16;not null"`
	ActorID         uuid.UUID                  `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole       enums.Role                 `gorm:"column:actor_role;size:16;not null"`
	Notes           string                     `gorm:"column:notes"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (CertificationEvent) TableName() string { return "certification_events" }

func (e *CertificationEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
