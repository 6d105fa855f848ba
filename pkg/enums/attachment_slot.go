package enums

import "fmt"

// AttachmentSlot names one of the fixed file slots on a certification.
type AttachmentSlot string

const (
	SlotIdentificationFront          AttachmentSlot = "identificationFront"
	SlotIdentificationBack           AttachmentSlot = "identificationBack"
	SlotIdentificationSelfie         AttachmentSlot = "identificationSelfie"
	SlotPDFCompanyRUC                AttachmentSlot = "pdfCompanyRuc"
	SlotPDFRepresentativeAppointment AttachmentSlot = "pdfRepresentativeAppointment"
	SlotPDFAppointmentAcceptance     AttachmentSlot = "pdfAppointmentAcceptance"
	SlotPDFCompanyConstitution       AttachmentSlot = "pdfCompanyConstitution"
	SlotAuthorizationVideo           AttachmentSlot = "authorizationVideo"
)

// AttachmentKind groups slots that share content rules.
type AttachmentKind string

const (
	AttachmentKindImage AttachmentKind = "image"
	AttachmentKindPDF   AttachmentKind = "pdf"
	AttachmentKindVideo AttachmentKind = "video"
)

const (
	maxImageBytes = 5 << 20
	maxPDFBytes   = 10 << 20
	maxVideoBytes = 50 << 20
)

var validAttachmentSlots = []AttachmentSlot{
	SlotIdentificationFront,
	SlotIdentificationBack,
	SlotIdentificationSelfie,
	SlotPDFCompanyRUC,
	SlotPDFRepresentativeAppointment,
	SlotPDFAppointmentAcceptance,
	SlotPDFCompanyConstitution,
	SlotAuthorizationVideo,
}

// AttachmentSlots returns every slot in declaration order.
func AttachmentSlots() []AttachmentSlot {
	out := make([]AttachmentSlot, len(validAttachmentSlots))
	copy(out, validAttachmentSlots)
	return out
}

// String implements fmt.Stringer.
func (s AttachmentSlot) String() string {
	return string(s)
}

// IsValid reports whether the slot is known.
func (s AttachmentSlot) IsValid() bool {
	for _, candidate := range validAttachmentSlots {
		if candidate == s {
			return true
		}
	}
	return false
}

// Kind returns the content family accepted by the slot.
func (s AttachmentSlot) Kind() AttachmentKind {
	switch s {
	case SlotIdentificationFront, SlotIdentificationBack, SlotIdentificationSelfie:
		return AttachmentKindImage
	case SlotAuthorizationVideo:
		return AttachmentKindVideo
	default:
		return AttachmentKindPDF
	}
}

// MaxBytes is the upload ceiling for the slot.
func (s AttachmentSlot) MaxBytes() int64 {
	switch s.Kind() {
	case AttachmentKindImage:
		return maxImageBytes
	case AttachmentKindVideo:
		return maxVideoBytes
	default:
		return maxPDFBytes
	}
}

// AllowedMIMETypes lists the sniffed content types accepted by the slot.
func (s AttachmentSlot) AllowedMIMETypes() []string {
	switch s.Kind() {
	case AttachmentKindImage:
		return []string{"image/jpeg", "image/png"}
	case AttachmentKindVideo:
		return []string{"video/mp4", "video/webm", "video/quicktime"}
	default:
		return []string{"application/pdf"}
	}
}

// ParseAttachmentSlot converts raw input into AttachmentSlot.
func ParseAttachmentSlot(value string) (AttachmentSlot, error) {
	for _, candidate := range validAttachmentSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attachment slot %q", value)
}
