package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/firmasegura/certifications-backend/pkg/db/types"
	"github.com/firmasegura/certifications-backend/pkg/enums"
)

// Certification is an electronic-signature certificate request owned by a user.
type Certification struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_certifications_user_status,priority:1"`

	IdentificationNumber   string     `gorm:"column:identification_number;size:10;index"`
	ApplicantName          string     `gorm:"column:applicant_name;size:100"`
	ApplicantLastName      string     `gorm:"column:applicant_last_name;size:100"`
	ApplicantSecondSurname string     `gorm:"column:applicant_second_last_name;size:100"`
	DateOfBirth            *time.Time `gorm:"column:date_of_birth;type:date"`
	ClientAge              *int       `gorm:"column:client_age"`
	FingerCode             string     `gorm:"column:finger_code;size:10"`
	EmailAddress           string     `gorm:"column:email_address;size:100"`
	CellphoneNumber        string     `gorm:"column:cellphone_number;size:13"`

	City        string `gorm:"column:city;size:100"`
	Province    string `gorm:"column:province;size:100"`
	Address     string `gorm:"column:address;size:100"`
	CountryCode string `gorm:"column:country_code;size:3;not null;default:'ECU'"`

	DocumentType    string                `gorm:"column:document_type;size:5;not null;default:'CI'"`
	ApplicationType enums.ApplicationType `gorm:"column:application_type;size:32;not null;index"`

	CompanyRUC                string     `gorm:"column:company_ruc;size:13"`
	PositionCompany           string     `gorm:"column:position_company;size:100"`
	CompanySocialReason       string     `gorm:"column:company_social_reason;size:250"`
	AppointmentExpirationDate *time.Time `gorm:"column:appointment_expiration_date;type:date"`

	Attachments dbtypes.Attachments `gorm:"column:attachments;type:jsonb;not null"`

	ReferenceTransaction string `gorm:"column:reference_transaction;size:150;index"`
	Period               string `gorm:"column:period;size:16"`

	Status          enums.CertificationStatus `gorm:"column:status;size:16;not null;default:'draft';index:idx_certifications_user_status,priority:2;index:idx_certifications_status_created,priority:1"`
	RejectionReason string                    `gorm:"column:rejection_reason"`
	ProcessedBy     *uuid.UUID                `gorm:"column:processed_by;type:uuid"`
	ProcessedAt     *time.Time                `gorm:"column:processed_at"`
	SubmittedAt     *time.Time                `gorm:"column:submitted_at"`
	TermsAccepted   bool                      `gorm:"column:terms_accepted;not null;default:false"`
	Metadata        dbtypes.JSONMap           `gorm:"column:metadata;type:jsonb;not null"`
	IPAddress       string                    `gorm:"column:ip_address;size:45"`
	UserAgent       string                    `gorm:"column:user_agent"`

	Version   int       `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_certifications_status_created,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Certification) TableName() string { return "certifications" }

func (c *Certification) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	if c.Attachments == nil {
		c.Attachments = dbtypes.Attachments{}
	}
	if c.Metadata == nil {
		c.Metadata = dbtypes.JSONMap{}
	}
	return nil
}
