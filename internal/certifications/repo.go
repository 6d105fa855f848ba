package certifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	"github.com/firmasegura/certifications-backend/pkg/pagination"
)

// ErrVersionConflict is returned by Save when the stored version moved since the record was loaded.
var ErrVersionConflict = errors.New("certification version conflict")

// ListFilters narrows certification listings. Nil fields are ignored.
type ListFilters struct {
	UserID          *uuid.UUID
	Status          *enums.CertificationStatus
	ApplicationType *enums.ApplicationType
}

// Repository persists certifications and their status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, c *models.Certification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Certification, error)
	Save(ctx context.Context, c *models.Certification) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Certification], error)
	CountByStatus(ctx context.Context, userID *uuid.UUID) (map[enums.CertificationStatus]int64, error)
	FindStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Certification, error)
	InsertEvent(ctx context.Context, event *models.CertificationEvent) error
	ListEvents(ctx context.Context, certificationID uuid.UUID) ([]models.CertificationEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a certifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, c *models.Certification) error {
	if c.Version <= 0 {
		c.Version = 1
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Certification, error) {
	var c models.Certification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes every mutable column when the stored version still matches c.Version,
// then advances c.Version.
func (r *repository) Save(ctx context.Context, c *models.Certification) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"identification_number":       c.IdentificationNumber,
		"applicant_name":              c.ApplicantName,
		"applicant_last_name":         c.ApplicantLastName,
		"applicant_second_last_name":  c.ApplicantSecondSurname,
		"date_of_birth":               c.DateOfBirth,
		"client_age":                  c.ClientAge,
		"finger_code":                 c.FingerCode,
		"email_address":               c.EmailAddress,
		"cellphone_number":            c.CellphoneNumber,
		"city":                        c.City,
		"province":                    c.Province,
		"address":                     c.Address,
		"country_code":                c.CountryCode,
		"document_type":               c.DocumentType,
		"application_type":            c.ApplicationType,
		"company_ruc":                 c.CompanyRUC,
		"position_company":            c.PositionCompany,
		"company_social_reason":       c.CompanySocialReason,
		"appointment_expiration_date": c.AppointmentExpirationDate,
		"attachments":                 c.Attachments,
		"reference_transaction":       c.ReferenceTransaction,
		"period":                      c.Period,
		"status":                      c.Status,
		"rejection_reason":            c.RejectionReason,
		"processed_by":                c.ProcessedBy,
		"processed_at":                c.ProcessedAt,
		"submitted_at":                c.SubmittedAt,
		"terms_accepted":              c.TermsAccepted,
		"metadata":                    c.Metadata,
		"ip_address":                  c.IPAddress,
		"user_agent":                  c.UserAgent,
		"version":                     c.Version + 1,
		"updated_at":                  now,
	}
	res := r.db.WithContext(ctx).
		Model(&models.Certification{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("certification_id = ?", id).Delete(&models.CertificationEvent{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Certification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns certifications newest first, keyed on (created_at, id).
func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Certification], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Certification]{}, err
	}

	query := r.db.WithContext(ctx).Model(&models.Certification{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ApplicationType != nil {
		query = query.Where("application_type = ?", *filters.ApplicationType)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Certification
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.Certification]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(c models.Certification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	}), nil
}

// CountByStatus returns one entry per status, zero-filled. A nil userID counts every owner.
func (r *repository) CountByStatus(ctx context.Context, userID *uuid.UUID) (map[enums.CertificationStatus]int64, error) {
	var rows []struct {
		Status enums.CertificationStatus
		Total  int64
	}
	query := r.db.WithContext(ctx).Model(&models.Certification{}).Select("status, COUNT(*) AS total")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[enums.CertificationStatus]int64, len(rows))
	for _, status := range enums.CertificationStatuses() {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// FindStaleDrafts returns drafts untouched since cutoff, oldest first.
func (r *repository) FindStaleDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Certification, error) {
	var rows []models.Certification
	query := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.CertificationStatusDraft, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) InsertEvent(ctx context.Context, event *models.CertificationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, certificationID uuid.UUID) ([]models.CertificationEvent, error) {
	var events []models.CertificationEvent
	err := r.db.WithContext(ctx).
		Where("certification_id = ?", certificationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
