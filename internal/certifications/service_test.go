package certifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/db"
	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	"github.com/firmasegura/certifications-backend/pkg/metrics"
	"github.com/firmasegura/certifications-backend/pkg/outbox"
	"github.com/firmasegura/certifications-backend/pkg/pagination"
	"github.com/firmasegura/certifications-backend/pkg/storage"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0}, 64)...)
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      []string
	deletes   map[string]int
	deleteErr map[string]error
	onDelete  func(ref string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   map[string][]byte{},
		deletes:   map[string]int{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	f.puts = append(f.puts, key)
	return key, nil
}

func (f *fakeStore) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[ref]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(_ context.Context, ref string) (bool, error) {
	if f.onDelete != nil {
		f.onDelete(ref)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[ref]++
	if err := f.deleteErr[ref]; err != nil {
		return false, err
	}
	_, ok := f.objects[ref]
	delete(f.objects, ref)
	return ok, nil
}

func (f *fakeStore) deleteCount(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[ref]
}

type serviceHarness struct {
	svc   Service
	db    *gorm.DB
	repo  Repository
	store *fakeStore
	reg   *prometheus.Registry
	now   time.Time
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	conn := newTestDB(t)
	cat := testCatalog(t)
	reg := prometheus.NewRegistry()
	h := &serviceHarness{
		db:    conn,
		repo:  NewRepository(conn),
		store: newFakeStore(),
		reg:   reg,
		now:   fixedNow,
	}
	svc, err := NewService(ServiceParams{
		Repo:    h.repo,
		Tx:      db.NewFromGorm(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Store:   h.store,
		Catalog: cat,
		Metrics: metrics.NewCertificationMetrics(reg),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Clock: func() time.Time {
			h.now = h.now.Add(time.Second)
			return h.now
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func naturalPersonInput() Input {
	in := validInput()
	in.ApplicationType = "NATURAL_PERSON"
	in.CompanyRUC = ""
	in.PositionCompany = ""
	in.CompanySocialReason = ""
	in.AppointmentExpirationDate = ""
	in.TermsAccepted = false
	return in
}

func owner() Actor {
	return Actor{UserID: uuid.New(), Role: enums.RoleUser, IPAddress: "10.0.0.1", UserAgent: "test-agent"}
}

func admin() Actor {
	return Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}

func upload(data []byte) AttachmentFile {
	return AttachmentFile{Filename: "file", Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func (h *serviceHarness) createSubmittable(t *testing.T, actor Actor) *Detail {
	t.Helper()
	ctx := context.Background()
	detail, err := h.svc.Create(ctx, actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID
	for _, slot := range []enums.AttachmentSlot{enums.SlotIdentificationFront, enums.SlotIdentificationBack, enums.SlotIdentificationSelfie} {
		detail, err = h.svc.UploadAttachment(ctx, actor, id, slot, upload(pngBytes))
		require.NoError(t, err)
	}
	require.Equal(t, 100, detail.CompletionPercentage)
	require.False(t, detail.CanSubmit)
	return detail
}

func (h *serviceHarness) outboxEvents(t *testing.T, aggregateID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.db.Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateStartsDraft(t *testing.T) {
	h := newServiceHarness(t)
	actor := owner()

	detail, err := h.svc.Create(context.Background(), actor, naturalPersonInput())
	require.NoError(t, err)

	view := detail.Certification
	require.Equal(t, enums.CertificationStatusDraft, view.Status)
	require.Equal(t, actor.UserID, view.UserID)
	require.Equal(t, "AB12345678", view.FingerCode)
	require.Equal(t, "ECU", view.CountryCode)
	require.Equal(t, "CI", view.DocumentType)
	require.NotEmpty(t, view.StatusLabel)
	require.Equal(t, 79, detail.CompletionPercentage)
	require.Len(t, detail.MissingFields, 3)
	require.True(t, detail.CanEdit)
	require.True(t, detail.CanDelete)
	require.False(t, detail.CanSubmit)

	stored, err := h.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", stored.IPAddress)
	require.Equal(t, "test-agent", stored.UserAgent)

	history, err := h.svc.History(context.Background(), actor, view.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].FromStatus)
	require.Equal(t, enums.CertificationStatusDraft, history[0].ToStatus)

	require.Equal(t, 1.0, counterValue(t, h.reg, "certify_certification_transitions_total", map[string]string{"from": "none", "to": "draft"}))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newServiceHarness(t)
	in := naturalPersonInput()
	in.CellphoneNumber = "12345"

	_, err := h.svc.Create(context.Background(), owner(), in)
	requireCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, h.db.Model(&models.Certification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGetEnforcesOwnership(t *testing.T) {
	h := newServiceHarness(t)
	actor := owner()
	detail, err := h.svc.Create(context.Background(), actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID

	_, err = h.svc.Get(context.Background(), owner(), id)
	requireCode(t, err, pkgerrors.CodeForbidden)

	got, err := h.svc.Get(context.Background(), admin(), id)
	require.NoError(t, err)
	require.Equal(t, id, got.Certification.ID)

	_, err = h.svc.Get(context.Background(), actor, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestFullLifecycle(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	reviewer := admin()
	id := h.createSubmittable(t, actor).Certification.ID

	_, err := h.svc.Submit(ctx, actor, id)
	requireCode(t, err, pkgerrors.CodePreconditionFailed)

	in := naturalPersonInput()
	in.TermsAccepted = true
	_, err = h.svc.Update(ctx, actor, id, in)
	require.NoError(t, err)

	submitted, err := h.svc.Submit(ctx, actor, id)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusPending, submitted.Certification.Status)
	require.NotNil(t, submitted.Certification.SubmittedAt)
	require.False(t, submitted.CanEdit)

	_, err = h.svc.StartReview(ctx, actor, id)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.StartReview(ctx, reviewer, id)
	require.NoError(t, err)

	approved, err := h.svc.Approve(ctx, reviewer, id, "ok")
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusApproved, approved.Certification.Status)
	require.Equal(t, reviewer.UserID, *approved.Certification.ProcessedBy)
	require.Equal(t, "ok", approved.Certification.Metadata[MetaApprovalNotes])

	completed, err := h.svc.Complete(ctx, reviewer, id)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusCompleted, completed.Certification.Status)

	history, err := h.svc.History(ctx, actor, id)
	require.NoError(t, err)
	statuses := make([]enums.CertificationStatus, 0, len(history))
	for _, entry := range history {
		statuses = append(statuses, entry.ToStatus)
	}
	require.Equal(t, []enums.CertificationStatus{
		enums.CertificationStatusDraft,
		enums.CertificationStatusPending,
		enums.CertificationStatusInReview,
		enums.CertificationStatusApproved,
		enums.CertificationStatusCompleted,
	}, statuses)
	require.Equal(t, "ok", history[3].Notes)

	events := h.outboxEvents(t, id)
	require.Len(t, events, 4)
	require.Equal(t, enums.EventCertificationSubmitted, events[0].EventType)
	for _, e := range events[1:] {
		require.Equal(t, enums.EventCertificationStatusChanged, e.EventType)
	}

	require.Equal(t, 1.0, counterValue(t, h.reg, "certify_certification_transitions_total", map[string]string{"from": "in_review", "to": "approved"}))
}

func TestRejectBlankReasonKeepsRecord(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.Status = enums.CertificationStatusInReview
	})

	_, err := h.svc.Reject(ctx, admin(), c.ID, "   ")
	requireCode(t, err, pkgerrors.CodeValidation)

	stored, err := h.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusInReview, stored.Status)
	require.Nil(t, stored.ProcessedBy)
	require.Nil(t, stored.ProcessedAt)
	require.Equal(t, 1, stored.Version)
}

func TestReviewerCannotProcessOwnCertification(t *testing.T) {
	h := newServiceHarness(t)
	reviewer := admin()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = reviewer.UserID
		c.Status = enums.CertificationStatusInReview
	})

	_, err := h.svc.Approve(context.Background(), reviewer, c.ID, "self")
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestUpdateReopensRejectedCertification(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.Status = enums.CertificationStatusInReview
	})

	rejected, err := h.svc.Reject(ctx, admin(), c.ID, "selfie is blurry")
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusRejected, rejected.Certification.Status)
	require.Equal(t, "selfie is blurry", rejected.Certification.RejectionReason)
	require.True(t, rejected.CanEdit)

	in := naturalPersonInput()
	in.ApplicantName = "Maria Jose"
	updated, err := h.svc.Update(ctx, actor, c.ID, in)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusDraft, updated.Certification.Status)
	require.Equal(t, "Maria Jose", updated.Certification.ApplicantName)
	require.NotEmpty(t, updated.Certification.Metadata[MetaReopenedAt])
	require.Equal(t, 3, updated.Certification.Version)

	history, err := h.svc.History(ctx, actor, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, enums.CertificationStatusDraft, history[1].ToStatus)
	require.Equal(t, enums.CertificationStatusRejected, *history[1].FromStatus)
}

func TestUpdateRequiresEditableStatus(t *testing.T) {
	h := newServiceHarness(t)
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.Status = enums.CertificationStatusApproved
	})

	_, err := h.svc.Update(context.Background(), actor, c.ID, naturalPersonInput())
	requireCode(t, err, pkgerrors.CodePreconditionFailed)

	_, err = h.svc.Update(context.Background(), owner(), c.ID, naturalPersonInput())
	requireCode(t, err, pkgerrors.CodeForbidden)
}

type conflictingRepo struct {
	Repository
}

func (r conflictingRepo) WithTx(tx *gorm.DB) Repository {
	return conflictingRepo{Repository: r.Repository.WithTx(tx)}
}

func (conflictingRepo) Save(context.Context, *models.Certification) error {
	return ErrVersionConflict
}

func TestVersionConflictMapsToConflict(t *testing.T) {
	h := newServiceHarness(t)
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.TermsAccepted = true
	})

	svc, err := NewService(ServiceParams{
		Repo:    conflictingRepo{Repository: h.repo},
		Tx:      db.NewFromGorm(h.db),
		Outbox:  outbox.NewService(outbox.NewRepository(h.db), nil),
		Store:   h.store,
		Catalog: testCatalog(t),
		Logger:  logger.New(logger.Options{Output: io.Discard}),
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), actor, c.ID)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.Empty(t, h.outboxEvents(t, c.ID))
}

func TestUploadAttachmentValidatesContent(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	detail, err := h.svc.Create(ctx, actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationFront, upload(pdfBytes))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotPDFCompanyRUC, upload(pngBytes))
	requireCode(t, err, pkgerrors.CodeValidation)

	big := append(append([]byte(nil), pngBytes...), bytes.Repeat([]byte{0}, int(enums.SlotIdentificationFront.MaxBytes()))...)
	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationFront, AttachmentFile{Content: bytes.NewReader(big)})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationFront, upload(nil))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.AttachmentSlot("passport"), upload(pngBytes))
	requireCode(t, err, pkgerrors.CodeValidation)

	require.Empty(t, h.store.puts)

	updated, err := h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationFront, upload(jpegBytes))
	require.NoError(t, err)
	require.Contains(t, updated.Certification.Attachments, enums.SlotIdentificationFront)
	require.Len(t, h.store.puts, 1)
	require.True(t, strings.HasPrefix(h.store.puts[0], fmt.Sprintf("certifications/%s/identificationFront-", id)))
	require.True(t, strings.HasSuffix(h.store.puts[0], ".jpg"))
}

func TestUploadAttachmentReplacesPreviousBlob(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	detail, err := h.svc.Create(ctx, actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationSelfie, upload(pngBytes))
	require.NoError(t, err)
	first := h.store.puts[0]

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationSelfie, upload(jpegBytes))
	require.NoError(t, err)
	second := h.store.puts[1]

	require.Equal(t, 1, h.store.deleteCount(first))
	require.Zero(t, h.store.deleteCount(second))

	stored, err := h.repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, second, stored.Attachments[enums.SlotIdentificationSelfie])
}

func TestRemoveAttachmentClearsSlot(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	detail, err := h.svc.Create(ctx, actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID

	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotIdentificationBack, upload(pngBytes))
	require.NoError(t, err)
	ref := h.store.puts[0]

	updated, err := h.svc.RemoveAttachment(ctx, actor, id, enums.SlotIdentificationBack)
	require.NoError(t, err)
	require.NotContains(t, updated.Certification.Attachments, enums.SlotIdentificationBack)
	require.Equal(t, 1, h.store.deleteCount(ref))

	_, err = h.svc.RemoveAttachment(ctx, actor, id, enums.SlotIdentificationBack)
	require.NoError(t, err)
	require.Equal(t, 1, h.store.deleteCount(ref))
}

func TestOpenAttachmentStreamsContent(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	detail, err := h.svc.Create(ctx, actor, naturalPersonInput())
	require.NoError(t, err)
	id := detail.Certification.ID
	_, err = h.svc.UploadAttachment(ctx, actor, id, enums.SlotPDFCompanyRUC, upload(pdfBytes))
	require.NoError(t, err)

	content, err := h.svc.OpenAttachment(ctx, admin(), id, enums.SlotPDFCompanyRUC)
	require.NoError(t, err)
	defer content.Body.Close()
	require.Equal(t, "application/pdf", content.ContentType)
	require.Equal(t, ".pdf", content.Extension)
	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	require.Equal(t, pdfBytes, body)

	_, err = h.svc.OpenAttachment(ctx, actor, id, enums.SlotIdentificationFront)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.OpenAttachment(ctx, owner(), id, enums.SlotPDFCompanyRUC)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestDeleteRemovesPresentAttachmentsOnce(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.Attachments = map[enums.AttachmentSlot]string{
			enums.SlotIdentificationFront: "certifications/x/front.png",
			enums.SlotIdentificationBack:  "",
		}
	})
	h.store.objects["certifications/x/front.png"] = pngBytes

	require.NoError(t, h.svc.Delete(ctx, actor, c.ID))

	require.Equal(t, 1, h.store.deleteCount("certifications/x/front.png"))
	require.Len(t, h.store.deletes, 1)

	_, err := h.repo.FindByID(ctx, c.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	events := h.outboxEvents(t, c.ID)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventCertificationDeleted, events[0].EventType)
}

func TestDeleteContinuesWhenStoreFails(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) { c.UserID = actor.UserID })
	failing := c.Attachments[enums.SlotIdentificationBack]
	h.store.deleteErr[failing] = errors.New("bucket unavailable")

	require.NoError(t, h.svc.Delete(ctx, actor, c.ID))

	for _, ref := range c.Attachments {
		require.Equal(t, 1, h.store.deleteCount(ref), ref)
	}
	_, err := h.repo.FindByID(ctx, c.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Equal(t, 1.0, counterValue(t, h.reg, "certify_attachment_cleanup_failures_total", map[string]string{"slot": "identificationBack"}))
}

func TestDeleteReleasesAttachmentsAfterRowIsGone(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) { c.UserID = actor.UserID })

	var (
		mu      sync.Mutex
		lookups []error
	)
	h.store.onDelete = func(string) {
		_, err := h.repo.FindByID(ctx, c.ID)
		mu.Lock()
		lookups = append(lookups, err)
		mu.Unlock()
	}

	require.NoError(t, h.svc.Delete(ctx, actor, c.ID))

	require.Len(t, lookups, len(c.Attachments))
	for _, err := range lookups {
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	}
}

func TestDeleteKeepsAttachmentsWhenRecordChanged(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) { c.UserID = actor.UserID })
	for _, ref := range c.Attachments {
		h.store.objects[ref] = pngBytes
	}

	stale, err := h.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	edited, err := h.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	edited.City = "Cuenca"
	require.NoError(t, h.repo.Save(ctx, edited))

	err = h.svc.(*service).remove(ctx, stale, actorRef(actor))
	requireCode(t, err, pkgerrors.CodeConflict)

	require.Empty(t, h.store.deletes)
	require.Len(t, h.store.objects, len(c.Attachments))
	current, err := h.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Cuenca", current.City)
	require.Equal(t, stale.Attachments, current.Attachments)
	require.Empty(t, h.outboxEvents(t, c.ID))

	content, err := h.svc.OpenAttachment(ctx, actor, c.ID, enums.SlotIdentificationFront)
	require.NoError(t, err)
	require.NoError(t, content.Body.Close())
}

func TestDeleteRequiresDraft(t *testing.T) {
	h := newServiceHarness(t)
	actor := owner()
	c := seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.Status = enums.CertificationStatusPending
	})

	err := h.svc.Delete(context.Background(), actor, c.ID)
	requireCode(t, err, pkgerrors.CodePreconditionFailed)
	require.Empty(t, h.store.deletes)

	err = h.svc.Delete(context.Background(), owner(), c.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestListAndStatsAreScopedToOwner(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	actor := owner()
	other := owner()
	seedCertification(t, h.repo, func(c *models.Certification) { c.UserID = actor.UserID })
	seedCertification(t, h.repo, func(c *models.Certification) {
		c.UserID = actor.UserID
		c.Status = enums.CertificationStatusPending
	})
	seedCertification(t, h.repo, func(c *models.Certification) { c.UserID = other.UserID })

	page, err := h.svc.List(ctx, actor, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		require.Equal(t, actor.UserID, item.UserID)
	}

	_, err = h.svc.List(ctx, actor, ListParams{OwnerID: &other.UserID})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.List(ctx, actor, ListParams{Pagination: pagination.Params{Cursor: "%%"}})
	requireCode(t, err, pkgerrors.CodeValidation)

	pending := enums.CertificationStatusPending
	all, err := h.svc.List(ctx, admin(), ListParams{Status: &pending})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)

	stats, err := h.svc.Stats(ctx, actor, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(1), stats.ByStatus[enums.CertificationStatusPending])

	global, err := h.svc.Stats(ctx, admin(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), global.Total)
}

func TestPurgeStaleDrafts(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	stale := seedCertification(t, h.repo, nil)
	fresh := seedCertification(t, h.repo, nil)
	old := fixedNow.AddDate(0, -3, 0)
	require.NoError(t, h.db.Model(&models.Certification{}).Where("id = ?", stale.ID).UpdateColumn("updated_at", old).Error)

	purged, err := h.svc.PurgeStaleDrafts(ctx, fixedNow.AddDate(0, -1, 0), 50)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	_, err = h.repo.FindByID(ctx, stale.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = h.repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	for _, ref := range stale.Attachments {
		require.Equal(t, 1, h.store.deleteCount(ref))
	}
}
