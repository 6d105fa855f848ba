package enums

import "fmt"

// CertificationStatus maps to the certification_status enum in Postgres.
type CertificationStatus string

const (
	CertificationStatusDraft     CertificationStatus = "draft"
	CertificationStatusPending   CertificationStatus = "pending"
	CertificationStatusInReview  CertificationStatus = "in_review"
	CertificationStatusApproved  CertificationStatus = "approved"
	CertificationStatusRejected  CertificationStatus = "rejected"
	CertificationStatusCompleted CertificationStatus = "completed"
)

var validCertificationStatuses = []CertificationStatus{
	CertificationStatusDraft,
	CertificationStatusPending,
	CertificationStatusInReview,
	CertificationStatusApproved,
	CertificationStatusRejected,
	CertificationStatusCompleted,
}

// CertificationStatuses returns every status in lifecycle order.
func CertificationStatuses() []CertificationStatus {
	out := make([]CertificationStatus, len(validCertificationStatuses))
	copy(out, validCertificationStatuses)
	return out
}

// String implements fmt.Stringer.
func (s CertificationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical certification_status enum.
func (s CertificationStatus) IsValid() bool {
	for _, candidate := range validCertificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCertificationStatus converts raw input into CertificationStatus.
func ParseCertificationStatus(value string) (CertificationStatus, error) {
	for _, candidate := range validCertificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid certification status %q", value)
}

// ApplicationType distinguishes natural persons from legal representatives.
type ApplicationType string

const (
	ApplicationTypeNaturalPerson       ApplicationType = "NATURAL_PERSON"
	ApplicationTypeLegalRepresentative ApplicationType = "LEGAL_REPRESENTATIVE"
)

var validApplicationTypes = []ApplicationType{
	ApplicationTypeNaturalPerson,
	ApplicationTypeLegalRepresentative,
}

// String implements fmt.Stringer.
func (a ApplicationType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ApplicationType.
func (a ApplicationType) IsValid() bool {
	for _, candidate := range validApplicationTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseApplicationType converts raw input into ApplicationType.
func ParseApplicationType(value string) (ApplicationType, error) {
	for _, candidate := range validApplicationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid application type %q", value)
}

// DocumentTypeCedula is the only identity document accepted today.
const DocumentTypeCedula = "CI"

// CountryCodeEcuador is stamped on every certification.
const CountryCodeEcuador = "ECU"
