package certifications

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/firmasegura/certifications-backend/pkg/db/types"
	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
)

// Metadata keys written by lifecycle transitions.
const (
	MetaApprovalNotes   = "approval_notes"
	MetaApprovedAt      = "approved_at"
	MetaResubmittedAt   = "resubmitted_at"
	MetaReviewStartedAt = "review_started_at"
	MetaReviewerID      = "reviewer_id"
	MetaCompletedAt     = "completed_at"
	MetaReopenedAt      = "reopened_at"
)

// RequiresCompanyDocuments reports whether the RUC and its PDF must be supplied.
func RequiresCompanyDocuments(c *models.Certification) bool {
	switch c.ApplicationType {
	case enums.ApplicationTypeLegalRepresentative:
		return true
	case enums.ApplicationTypeNaturalPerson:
		return notBlank(c.CompanyRUC)
	default:
		return false
	}
}

// RequiresAppointmentDocuments reports whether the appointment fields and PDFs must be supplied.
func RequiresAppointmentDocuments(c *models.Certification) bool {
	return c.ApplicationType == enums.ApplicationTypeLegalRepresentative
}

// RequiredFields returns the fields that must hold a value for the record as it is now.
func RequiredFields(c *models.Certification) []Field {
	out := make([]Field, 0, len(baseFields)+len(companyFields)+len(appointmentFields))
	out = append(out, baseFields...)
	if RequiresCompanyDocuments(c) {
		out = append(out, companyFields...)
	}
	if RequiresAppointmentDocuments(c) {
		out = append(out, appointmentFields...)
	}
	return out
}

// MissingFields returns the required fields that are still empty, in required-set order.
func MissingFields(c *models.Certification) []Field {
	missing := []Field{}
	for _, f := range RequiredFields(c) {
		if !isFilled(c, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// CompletionPercentage is 100 x filled / required, rounded half up.
func CompletionPercentage(c *models.Certification) int {
	required := RequiredFields(c)
	filled := 0
	for _, f := range required {
		if isFilled(c, f) {
			filled++
		}
	}
	n := len(required)
	return (200*filled + n) / (2 * n)
}

func CanBeEdited(c *models.Certification) bool {
	return c.Status == enums.CertificationStatusDraft || c.Status == enums.CertificationStatusRejected
}

func CanBeSubmitted(c *models.Certification) bool {
	return c.Status == enums.CertificationStatusDraft && c.TermsAccepted && CompletionPercentage(c) == 100
}

func CanBeDeleted(c *models.Certification) bool {
	return c.Status == enums.CertificationStatusDraft
}

// Submit moves a complete draft to pending. submitted_at keeps the first submission time.
func Submit(c *models.Certification, now time.Time) error {
	if !CanBeSubmitted(c) {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "certification cannot be submitted").
			WithDetails(map[string]any{
				"status":                c.Status,
				"terms_accepted":        c.TermsAccepted,
				"completion_percentage": CompletionPercentage(c),
				"missing_fields":        MissingFields(c),
			})
	}
	now = now.UTC()
	c.Status = enums.CertificationStatusPending
	if c.SubmittedAt == nil {
		c.SubmittedAt = &now
	} else {
		c.Metadata = mergeMetadata(c.Metadata, map[string]any{MetaResubmittedAt: now.Format(time.RFC3339)})
	}
	return nil
}

// StartReview takes a pending record into review.
func StartReview(c *models.Certification, reviewer uuid.UUID, now time.Time) error {
	if err := checkReviewer(c, reviewer); err != nil {
		return err
	}
	if err := requireStatus(c, enums.CertificationStatusPending, "start review"); err != nil {
		return err
	}
	c.Status = enums.CertificationStatusInReview
	c.Metadata = mergeMetadata(c.Metadata, map[string]any{
		MetaReviewStartedAt: now.UTC().Format(time.RFC3339),
		MetaReviewerID:      reviewer.String(),
	})
	return nil
}

// Approve accepts a record under review. Existing metadata keys are preserved.
func Approve(c *models.Certification, reviewer uuid.UUID, notes string, now time.Time) error {
	if err := checkReviewer(c, reviewer); err != nil {
		return err
	}
	if err := requireStatus(c, enums.CertificationStatusInReview, "approve"); err != nil {
		return err
	}
	now = now.UTC()
	patch := map[string]any{MetaApprovedAt: now.Format(time.RFC3339)}
	if notes = strings.TrimSpace(notes); notes != "" {
		patch[MetaApprovalNotes] = notes
	}
	c.Status = enums.CertificationStatusApproved
	c.ProcessedBy = &reviewer
	c.ProcessedAt = &now
	c.RejectionReason = ""
	c.Metadata = mergeMetadata(c.Metadata, patch)
	return nil
}

// Reject sends a record under review back to its owner. A blank reason leaves the record untouched.
func Reject(c *models.Certification, reviewer uuid.UUID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required").
			WithDetails(map[string]string{"reason": "required"})
	}
	if err := checkReviewer(c, reviewer); err != nil {
		return err
	}
	if err := requireStatus(c, enums.CertificationStatusInReview, "reject"); err != nil {
		return err
	}
	now = now.UTC()
	c.Status = enums.CertificationStatusRejected
	c.RejectionReason = reason
	c.ProcessedBy = &reviewer
	c.ProcessedAt = &now
	return nil
}

// Complete marks an approved record as issued.
func Complete(c *models.Certification, now time.Time) error {
	if err := requireStatus(c, enums.CertificationStatusApproved, "complete"); err != nil {
		return err
	}
	c.Status = enums.CertificationStatusCompleted
	c.Metadata = mergeMetadata(c.Metadata, map[string]any{MetaCompletedAt: now.UTC().Format(time.RFC3339)})
	return nil
}

// Reopen returns a rejected record to draft so the owner can correct it.
func Reopen(c *models.Certification, now time.Time) error {
	if err := requireStatus(c, enums.CertificationStatusRejected, "reopen"); err != nil {
		return err
	}
	c.Status = enums.CertificationStatusDraft
	c.Metadata = mergeMetadata(c.Metadata, map[string]any{MetaReopenedAt: now.UTC().Format(time.RFC3339)})
	return nil
}

func checkReviewer(c *models.Certification, reviewer uuid.UUID) error {
	if reviewer == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reviewer id is required")
	}
	if reviewer == c.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "owners cannot review their own certification")
	}
	return nil
}

func requireStatus(c *models.Certification, want enums.CertificationStatus, op string) error {
	if c.Status == want {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot %s a %s certification", op, c.Status).
		WithDetails(map[string]any{"status": c.Status, "required_status": want})
}

func mergeMetadata(current dbtypes.JSONMap, patch map[string]any) dbtypes.JSONMap {
	out := current.Clone()
	if out == nil {
		out = dbtypes.JSONMap{}
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
