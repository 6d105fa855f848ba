package certifications

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/firmasegura/certifications-backend/pkg/catalog"
	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

var (
	fingerCodePattern = regexp.MustCompile(`^[A-Z]{2}\d{8}$`)
	cellphonePattern  = regexp.MustCompile(`^\+5939\d{8}$`)
)

// Input is the applicant-editable part of a certification. Drafts may be
// partial, so every rule besides the application type applies only to
// non-empty values.
type Input struct {
	IdentificationNumber      string `json:"identificationNumber" validate:"omitempty,max=10"`
	ApplicantName             string `json:"applicantName" validate:"omitempty,max=100"`
	ApplicantLastName         string `json:"applicantLastName" validate:"omitempty,max=100"`
	ApplicantSecondLastName   string `json:"applicantSecondLastName" validate:"omitempty,max=100"`
	DateOfBirth               string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	FingerCode                string `json:"fingerCode" validate:"omitempty,fingercode"`
	EmailAddress              string `json:"emailAddress" validate:"omitempty,email,max=100"`
	CellphoneNumber           string `json:"cellphoneNumber" validate:"omitempty,ecphone"`
	City                      string `json:"city" validate:"omitempty,max=100"`
	Province                  string `json:"province" validate:"omitempty,max=100"`
	Address                   string `json:"address" validate:"omitempty,min=15,max=100"`
	ApplicationType           string `json:"applicationType" validate:"required"`
	CompanyRUC                string `json:"companyRuc" validate:"omitempty,max=13"`
	PositionCompany           string `json:"positionCompany" validate:"omitempty,max=100"`
	CompanySocialReason       string `json:"companySocialReason" validate:"omitempty,max=250"`
	AppointmentExpirationDate string `json:"appointmentExpirationDate" validate:"omitempty,datetime=2006-01-02"`
	ReferenceTransaction      string `json:"referenceTransaction" validate:"omitempty,max=150"`
	Period                    string `json:"period" validate:"omitempty,max=16"`
	TermsAccepted             bool   `json:"termsAccepted"`
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	custom := map[string]*regexp.Regexp{
		"fingercode": fingerCodePattern,
		"ecphone":    cellphonePattern,
	}
	for tag, pattern := range custom {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return pattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("registering %s validation: %v", tag, err))
		}
	}
	return v
}

// Normalize trims every text field and upper-cases the finger code.
func (in *Input) Normalize() {
	fields := []*string{
		&in.IdentificationNumber, &in.ApplicantName, &in.ApplicantLastName,
		&in.ApplicantSecondLastName, &in.DateOfBirth, &in.FingerCode,
		&in.EmailAddress, &in.CellphoneNumber, &in.City, &in.Province,
		&in.Address, &in.ApplicationType, &in.CompanyRUC, &in.PositionCompany,
		&in.CompanySocialReason, &in.AppointmentExpirationDate,
		&in.ReferenceTransaction, &in.Period,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	in.FingerCode = strings.ToUpper(in.FingerCode)
	in.ApplicationType = strings.ToUpper(in.ApplicationType)
}

// ValidateInput normalizes in and checks format rules, catalog membership
// and date constraints. Failures carry one message per offending field.
func ValidateInput(in *Input, cat *catalog.Catalog, now time.Time) error {
	if in == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "certification data is required")
	}
	in.Normalize()

	details := map[string]string{}
	if err := inputValidator.Struct(in); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		for _, fe := range errs {
			details[fe.Field()] = validationMessage(fe)
		}
	}

	if _, ok := details["applicationType"]; !ok {
		if _, err := enums.ParseApplicationType(in.ApplicationType); err != nil {
			details["applicationType"] = "must be NATURAL_PERSON or LEGAL_REPRESENTATIVE"
		}
	}
	if cat != nil {
		if in.City != "" && !cat.HasCity(in.City) {
			details["city"] = "is not a supported city"
		}
		if in.Province != "" && !cat.HasProvince(in.Province) {
			details["province"] = "is not a supported province"
		}
		if in.Period != "" && !cat.HasPeriod(in.Period) {
			details["period"] = "is not a supported period"
		}
	}
	if _, ok := details["dateOfBirth"]; !ok && in.DateOfBirth != "" {
		dob, _ := time.Parse(dateLayout, in.DateOfBirth)
		if !dob.Before(truncateDay(now)) {
			details["dateOfBirth"] = "must be in the past"
		}
	}
	if _, ok := details["appointmentExpirationDate"]; !ok && in.AppointmentExpirationDate != "" {
		expires, _ := time.Parse(dateLayout, in.AppointmentExpirationDate)
		if !expires.After(truncateDay(now)) {
			details["appointmentExpirationDate"] = "must be after today"
		}
	}

	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "fingercode":
		return "must be two uppercase letters followed by 8 digits"
	case "ecphone":
		return "must be an Ecuadorian mobile number like +5939XXXXXXXX"
	}
	return "is invalid"
}

// applyInput copies validated input onto c. It replaces every editable field.
func applyInput(c *models.Certification, in Input, now time.Time) {
	c.IdentificationNumber = in.IdentificationNumber
	c.ApplicantName = in.ApplicantName
	c.ApplicantLastName = in.ApplicantLastName
	c.ApplicantSecondSurname = in.ApplicantSecondLastName
	c.FingerCode = in.FingerCode
	c.EmailAddress = in.EmailAddress
	c.CellphoneNumber = in.CellphoneNumber
	c.City = in.City
	c.Province = in.Province
	c.Address = in.Address
	c.ApplicationType = enums.ApplicationType(in.ApplicationType)
	c.CompanyRUC = in.CompanyRUC
	c.PositionCompany = in.PositionCompany
	c.CompanySocialReason = in.CompanySocialReason
	c.ReferenceTransaction = in.ReferenceTransaction
	c.Period = in.Period
	c.TermsAccepted = in.TermsAccepted
	c.CountryCode = enums.CountryCodeEcuador
	c.DocumentType = enums.DocumentTypeCedula

	c.DateOfBirth = parseDate(in.DateOfBirth)
	c.ClientAge = nil
	if c.DateOfBirth != nil {
		age := ageAt(*c.DateOfBirth, now)
		c.ClientAge = &age
	}
	c.AppointmentExpirationDate = parseDate(in.AppointmentExpirationDate)
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

func ageAt(dob, now time.Time) int {
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
