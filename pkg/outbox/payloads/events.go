package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/firmasegura/certifications-backend/pkg/enums"
)

// CertificationSubmittedEvent is emitted when an owner sends a draft for review.
type CertificationSubmittedEvent struct {
	CertificationID uuid.UUID             `json:"certification_id"`
	UserID          uuid.UUID             `json:"user_id"`
	ApplicationType enums.ApplicationType `json:"application_type"`
	Period          string                `json:"period"`
	SubmittedAt     time.Time             `json:"submitted_at"`
	Resubmission    bool                  `json:"resubmission"`
}

// CertificationStatusChangedEvent covers reviewer-driven transitions.
type CertificationStatusChangedEvent struct {
	CertificationID uuid.UUID                 `json:"certification_id"`
	UserID          uuid.UUID                 `json:"user_id"`
	FromStatus      enums.CertificationStatus `json:"from_status"`
	ToStatus        enums.CertificationStatus `json:"to_status"`
	ProcessedBy     *uuid.UUID                `json:"processed_by,omitempty"`
	RejectionReason *string                   `json:"rejection_reason,omitempty"`
	Notes           *string                   `json:"notes,omitempty"`
	ChangedAt       time.Time                 `json:"changed_at"`
}

// CertificationDeletedEvent lets downstream consumers drop projections of a removed draft.
type CertificationDeletedEvent struct {
	CertificationID  uuid.UUID `json:"certification_id"`
	UserID           uuid.UUID `json:"user_id"`
	AttachmentsTotal int       `json:"attachments_total"`
	DeletedAt        time.Time `json:"deleted_at"`
}
