package certifications

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/firmasegura/certifications-backend/pkg/catalog"
	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	"github.com/firmasegura/certifications-backend/pkg/pagination"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID    uuid.UUID
	Role      enums.Role
	IPAddress string
	UserAgent string
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// ListParams describe the inputs supported by the certifications list.
type ListParams struct {
	Status          *enums.CertificationStatus
	ApplicationType *enums.ApplicationType
	OwnerID         *uuid.UUID
	Pagination      pagination.Params
}

// AttachmentFile is an uploaded file as received by the transport layer.
type AttachmentFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AttachmentContent streams a stored attachment back to a client.
type AttachmentContent struct {
	Slot        enums.AttachmentSlot
	ContentType string
	Extension   string
	Body        io.ReadCloser
}

// CertificationView is the API representation of a certification record.
type CertificationView struct {
	ID                        uuid.UUID                 `json:"id"`
	UserID                    uuid.UUID                 `json:"userId"`
	IdentificationNumber      string                    `json:"identificationNumber"`
	ApplicantName             string                    `json:"applicantName"`
	ApplicantLastName         string                    `json:"applicantLastName"`
	ApplicantSecondLastName   string                    `json:"applicantSecondLastName,omitempty"`
	DateOfBirth               string                    `json:"dateOfBirth,omitempty"`
	ClientAge                 *int                      `json:"clientAge,omitempty"`
	FingerCode                string                    `json:"fingerCode"`
	EmailAddress              string                    `json:"emailAddress"`
	CellphoneNumber           string                    `json:"cellphoneNumber"`
	City                      string                    `json:"city"`
	Province                  string                    `json:"province"`
	Address                   string                    `json:"address"`
	CountryCode               string                    `json:"countryCode"`
	DocumentType              string                    `json:"documentType"`
	ApplicationType           enums.ApplicationType     `json:"applicationType"`
	CompanyRUC                string                    `json:"companyRuc,omitempty"`
	PositionCompany           string                    `json:"positionCompany,omitempty"`
	CompanySocialReason       string                    `json:"companySocialReason,omitempty"`
	AppointmentExpirationDate string                    `json:"appointmentExpirationDate,omitempty"`
	ReferenceTransaction      string                    `json:"referenceTransaction"`
	Period                    string                    `json:"period"`
	PeriodLabel               string                    `json:"periodLabel,omitempty"`
	Attachments               []enums.AttachmentSlot    `json:"attachments"`
	Status                    enums.CertificationStatus `json:"status"`
	StatusLabel               string                    `json:"statusLabel,omitempty"`
	RejectionReason           string                    `json:"rejectionReason,omitempty"`
	ProcessedBy               *uuid.UUID                `json:"processedBy,omitempty"`
	ProcessedAt               *time.Time                `json:"processedAt,omitempty"`
	SubmittedAt               *time.Time                `json:"submittedAt,omitempty"`
	TermsAccepted             bool                      `json:"termsAccepted"`
	Metadata                  map[string]any            `json:"metadata,omitempty"`
	Version                   int                       `json:"version"`
	CreatedAt                 time.Time                 `json:"createdAt"`
	UpdatedAt                 time.Time                 `json:"updatedAt"`
}

// Detail pairs a record with its derived eligibility state.
type Detail struct {
	Certification                CertificationView `json:"certification"`
	CompletionPercentage         int               `json:"completionPercentage"`
	MissingFields                []Field           `json:"missingFields"`
	CanEdit                      bool              `json:"canEdit"`
	CanSubmit                    bool              `json:"canSubmit"`
	CanDelete                    bool              `json:"canDelete"`
	RequiresCompanyDocuments     bool              `json:"requiresCompanyDocuments"`
	RequiresAppointmentDocuments bool              `json:"requiresAppointmentDocuments"`
}

// Summary is a list row.
type Summary struct {
	ID                   uuid.UUID                 `json:"id"`
	UserID               uuid.UUID                 `json:"userId"`
	IdentificationNumber string                    `json:"identificationNumber"`
	ApplicantName        string                    `json:"applicantName"`
	ApplicantLastName    string                    `json:"applicantLastName"`
	ApplicationType      enums.ApplicationType     `json:"applicationType"`
	Status               enums.CertificationStatus `json:"status"`
	StatusLabel          string                    `json:"statusLabel,omitempty"`
	CompletionPercentage int                       `json:"completionPercentage"`
	SubmittedAt          *time.Time                `json:"submittedAt,omitempty"`
	CreatedAt            time.Time                 `json:"createdAt"`
	UpdatedAt            time.Time                 `json:"updatedAt"`
}

// HistoryEntry is one status change.
type HistoryEntry struct {
	FromStatus *enums.CertificationStatus `json:"fromStatus,omitempty"`
	ToStatus   enums.CertificationStatus  `json:"toStatus"`
	ActorID    uuid.UUID                  `json:"actorId"`
	ActorRole  enums.Role                 `json:"actorRole"`
	Notes      string                     `json:"notes,omitempty"`
	CreatedAt  time.Time                  `json:"createdAt"`
}

// Stats counts certifications per status.
type Stats struct {
	Total    int64                               `json:"total"`
	ByStatus map[enums.CertificationStatus]int64 `json:"byStatus"`
}

func newDetail(c *models.Certification, cat *catalog.Catalog) *Detail {
	return &Detail{
		Certification:                newView(c, cat),
		CompletionPercentage:         CompletionPercentage(c),
		MissingFields:                MissingFields(c),
		CanEdit:                      CanBeEdited(c),
		CanSubmit:                    CanBeSubmitted(c),
		CanDelete:                    CanBeDeleted(c),
		RequiresCompanyDocuments:     RequiresCompanyDocuments(c),
		RequiresAppointmentDocuments: RequiresAppointmentDocuments(c),
	}
}

func newView(c *models.Certification, cat *catalog.Catalog) CertificationView {
	view := CertificationView{
		ID:                        c.ID,
		UserID:                    c.UserID,
		IdentificationNumber:      c.IdentificationNumber,
		ApplicantName:             c.ApplicantName,
		ApplicantLastName:         c.ApplicantLastName,
		ApplicantSecondLastName:   c.ApplicantSecondSurname,
		DateOfBirth:               formatDate(c.DateOfBirth),
		ClientAge:                 c.ClientAge,
		FingerCode:                c.FingerCode,
		EmailAddress:              c.EmailAddress,
		CellphoneNumber:           c.CellphoneNumber,
		City:                      c.City,
		Province:                  c.Province,
		Address:                   c.Address,
		CountryCode:               c.CountryCode,
		DocumentType:              c.DocumentType,
		ApplicationType:           c.ApplicationType,
		CompanyRUC:                c.CompanyRUC,
		PositionCompany:           c.PositionCompany,
		CompanySocialReason:       c.CompanySocialReason,
		AppointmentExpirationDate: formatDate(c.AppointmentExpirationDate),
		ReferenceTransaction:      c.ReferenceTransaction,
		Period:                    c.Period,
		Attachments:               presentSlots(c),
		Status:                    c.Status,
		RejectionReason:           c.RejectionReason,
		ProcessedBy:               c.ProcessedBy,
		ProcessedAt:               c.ProcessedAt,
		SubmittedAt:               c.SubmittedAt,
		TermsAccepted:             c.TermsAccepted,
		Metadata:                  c.Metadata.Clone(),
		Version:                   c.Version,
		CreatedAt:                 c.CreatedAt,
		UpdatedAt:                 c.UpdatedAt,
	}
	if cat != nil {
		view.StatusLabel = cat.StatusLabel(c.Status)
		if c.Period != "" {
			view.PeriodLabel = cat.PeriodLabel(c.Period)
		}
	}
	return view
}

func newSummary(c *models.Certification, cat *catalog.Catalog) Summary {
	s := Summary{
		ID:                   c.ID,
		UserID:               c.UserID,
		IdentificationNumber: c.IdentificationNumber,
		ApplicantName:        c.ApplicantName,
		ApplicantLastName:    c.ApplicantLastName,
		ApplicationType:      c.ApplicationType,
		Status:               c.Status,
		CompletionPercentage: CompletionPercentage(c),
		SubmittedAt:          c.SubmittedAt,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if cat != nil {
		s.StatusLabel = cat.StatusLabel(c.Status)
	}
	return s
}

func newHistoryEntry(e models.CertificationEvent) HistoryEntry {
	return HistoryEntry{
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}

func presentSlots(c *models.Certification) []enums.AttachmentSlot {
	out := []enums.AttachmentSlot{}
	for _, slot := range enums.AttachmentSlots() {
		if c.Attachments.Has(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
