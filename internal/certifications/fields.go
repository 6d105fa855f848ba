package certifications

import (
	"strings"

	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
)

// Field names a required input of a certification, either a data column or an attachment slot.
type Field string

const (
	FieldIdentificationNumber      Field = "identificationNumber"
	FieldApplicantName             Field = "applicantName"
	FieldApplicantLastName         Field = "applicantLastName"
	FieldFingerCode                Field = "fingerCode"
	FieldEmailAddress              Field = "emailAddress"
	FieldCellphoneNumber           Field = "cellphoneNumber"
	FieldCity                      Field = "city"
	FieldProvince                  Field = "province"
	FieldAddress                   Field = "address"
	FieldReferenceTransaction      Field = "referenceTransaction"
	FieldPeriod                    Field = "period"
	FieldCompanyRUC                Field = "companyRuc"
	FieldPositionCompany           Field = "positionCompany"
	FieldCompanySocialReason       Field = "companySocialReason"
	FieldAppointmentExpirationDate Field = "appointmentExpirationDate"
)

// SlotField lifts an attachment slot into the field namespace.
func SlotField(slot enums.AttachmentSlot) Field {
	return Field(slot)
}

var baseFields = []Field{
	FieldIdentificationNumber,
	FieldApplicantName,
	FieldApplicantLastName,
	FieldFingerCode,
	FieldEmailAddress,
	FieldCellphoneNumber,
	FieldCity,
	FieldProvince,
	FieldAddress,
	FieldReferenceTransaction,
	FieldPeriod,
	SlotField(enums.SlotIdentificationFront),
	SlotField(enums.SlotIdentificationBack),
	SlotField(enums.SlotIdentificationSelfie),
}

var companyFields = []Field{
	FieldCompanyRUC,
	SlotField(enums.SlotPDFCompanyRUC),
}

var appointmentFields = []Field{
	FieldPositionCompany,
	FieldCompanySocialReason,
	FieldAppointmentExpirationDate,
	SlotField(enums.SlotPDFRepresentativeAppointment),
	SlotField(enums.SlotPDFAppointmentAcceptance),
	SlotField(enums.SlotPDFCompanyConstitution),
}

func isFilled(c *models.Certification, f Field) bool {
	switch f {
	case FieldIdentificationNumber:
		return notBlank(c.IdentificationNumber)
	case FieldApplicantName:
		return notBlank(c.ApplicantName)
	case FieldApplicantLastName:
		return notBlank(c.ApplicantLastName)
	case FieldFingerCode:
		return notBlank(c.FingerCode)
	case FieldEmailAddress:
		return notBlank(c.EmailAddress)
	case FieldCellphoneNumber:
		return notBlank(c.CellphoneNumber)
	case FieldCity:
		return notBlank(c.City)
	case FieldProvince:
		return notBlank(c.Province)
	case FieldAddress:
		return notBlank(c.Address)
	case FieldReferenceTransaction:
		return notBlank(c.ReferenceTransaction)
	case FieldPeriod:
		return notBlank(c.Period)
	case FieldCompanyRUC:
		return notBlank(c.CompanyRUC)
	case FieldPositionCompany:
		return notBlank(c.PositionCompany)
	case FieldCompanySocialReason:
		return notBlank(c.CompanySocialReason)
	case FieldAppointmentExpirationDate:
		return c.AppointmentExpirationDate != nil && !c.AppointmentExpirationDate.IsZero()
	}
	if slot := enums.AttachmentSlot(f); slot.IsValid() {
		return c.Attachments.Has(slot)
	}
	return false
}

func notBlank(v string) bool {
	return strings.TrimSpace(v) != ""
}
