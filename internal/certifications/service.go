package certifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/catalog"
	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	"github.com/firmasegura/certifications-backend/pkg/metrics"
	"github.com/firmasegura/certifications-backend/pkg/outbox"
	"github.com/firmasegura/certifications-backend/pkg/outbox/payloads"
	"github.com/firmasegura/certifications-backend/pkg/pagination"
	"github.com/firmasegura/certifications-backend/pkg/storage"
)

const (
	attachmentCleanupConcurrency = 4
	sniffHeaderBytes             = 3072
	deletedStatusLabel           = "deleted"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) (bool, error)
}

// Service exposes the certification operations used by the HTTP layer and jobs.
type Service interface {
	Create(ctx context.Context, actor Actor, in Input) (*Detail, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, actor Actor, params ListParams) (pagination.Page[Summary], error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, in Input) (*Detail, error)
	UploadAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot, file AttachmentFile) (*Detail, error)
	RemoveAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot) (*Detail, error)
	OpenAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot) (*AttachmentContent, error)
	Submit(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error)
	StartReview(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error)
	Approve(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*Detail, error)
	Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Detail, error)
	Complete(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	History(ctx context.Context, actor Actor, id uuid.UUID) ([]HistoryEntry, error)
	Stats(ctx context.Context, actor Actor, ownerID *uuid.UUID) (*Stats, error)
	PurgeStaleDrafts(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ServiceParams groups the collaborators of the certification service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxEmitter
	Store   objectStore
	Catalog *catalog.Catalog
	Metrics *metrics.CertificationMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	store   objectStore
	catalog *catalog.Catalog
	metrics *metrics.CertificationMetrics
	logg    *logger.Logger
	clock   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("certifications repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		store:   params.Store,
		catalog: params.Catalog,
		metrics: params.Metrics,
		logg:    params.Logger,
		clock:   clock,
	}, nil
}

// unitOfWork collects the history rows and outbox events produced while a record is mutated.
type unitOfWork struct {
	changes []statusChange
	events  []outbox.DomainEvent
}

type statusChange struct {
	from  enums.CertificationStatus
	to    enums.CertificationStatus
	notes string
}

func (u *unitOfWork) transition(from, to enums.CertificationStatus, notes string) {
	u.changes = append(u.changes, statusChange{from: from, to: to, notes: notes})
}

func (u *unitOfWork) emit(event outbox.DomainEvent) {
	u.events = append(u.events, event)
}

type authorizer func(actor Actor, c *models.Certification) error

func ownerOnly(actor Actor, c *models.Certification) error {
	if c.UserID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "certification belongs to another user")
	}
	return nil
}

func ownerOrAdmin(actor Actor, c *models.Certification) error {
	if actor.IsAdmin() {
		return nil
	}
	return ownerOnly(actor, c)
}

func adminOnly(actor Actor, _ *models.Certification) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

func (s *service) Create(ctx context.Context, actor Actor, in Input) (*Detail, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	now := s.now()
	if err := ValidateInput(&in, s.catalog, now); err != nil {
		return nil, err
	}

	c := &models.Certification{
		ID:          uuid.New(),
		UserID:      actor.UserID,
		Status:      enums.CertificationStatusDraft,
		Attachments: map[enums.AttachmentSlot]string{},
		Metadata:    map[string]any{},
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyInput(c, in, now)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, c); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create certification")
		}
		return s.recordHistory(ctx, repo, c.ID, actor, []statusChange{{to: c.Status, notes: "created"}}, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("", c.Status.String())
	s.logg.Info(s.logContext(ctx, actor, c.ID), "certification created")
	return newDetail(c, s.catalog), nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	c, err := s.loadAuthorized(ctx, actor, id, ownerOrAdmin)
	if err != nil {
		return nil, err
	}
	return newDetail(c, s.catalog), nil
}

func (s *service) List(ctx context.Context, actor Actor, params ListParams) (pagination.Page[Summary], error) {
	if _, err := pagination.ParseCursor(params.Pagination.Cursor); err != nil {
		return pagination.Page[Summary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	owner, err := scopeOwner(actor, params.OwnerID)
	if err != nil {
		return pagination.Page[Summary]{}, err
	}

	page, err := s.repo.List(ctx, ListFilters{
		UserID:          owner,
		Status:          params.Status,
		ApplicationType: params.ApplicationType,
	}, params.Pagination)
	if err != nil {
		return pagination.Page[Summary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list certifications")
	}

	items := make([]Summary, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newSummary(&page.Items[i], s.catalog))
	}
	return pagination.Page[Summary]{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, in Input) (*Detail, error) {
	now := s.now()
	if err := ValidateInput(&in, s.catalog, now); err != nil {
		return nil, err
	}
	c, err := s.mutate(ctx, actor, id, ownerOnly, func(c *models.Certification, u *unitOfWork) error {
		if err := s.prepareEdit(c, actor, u, now); err != nil {
			return err
		}
		applyInput(c, in, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logContext(ctx, actor, c.ID), "certification updated")
	return newDetail(c, s.catalog), nil
}

func (s *service) UploadAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot, file AttachmentFile) (*Detail, error) {
	if !slot.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown attachment slot %q", slot)
	}
	current, err := s.loadAuthorized(ctx, actor, id, ownerOnly)
	if err != nil {
		return nil, err
	}
	if !CanBeEdited(current) {
		return nil, notEditable(current)
	}

	data, mtype, err := readAttachment(slot, file)
	if err != nil {
		return nil, err
	}
	key := attachmentKey(id, slot, mtype.Extension())
	ref, err := s.store.Put(ctx, key, data, mtype.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store attachment")
	}

	now := s.now()
	var previous string
	c, err := s.mutate(ctx, actor, id, ownerOnly, func(c *models.Certification, u *unitOfWork) error {
		if err := s.prepareEdit(c, actor, u, now); err != nil {
			return err
		}
		previous = c.Attachments[slot]
		c.Attachments = c.Attachments.Clone()
		c.Attachments[slot] = ref
		return nil
	})
	if err != nil {
		s.discard(ctx, id, slot, ref)
		return nil, err
	}

	s.metrics.ObserveUpload(slot.String(), int64(len(data)))
	if previous != "" && previous != ref {
		s.discard(ctx, id, slot, previous)
	}
	logCtx := s.logg.WithFields(s.logContext(ctx, actor, id), map[string]any{
		"slot":         slot.String(),
		"content_type": mtype.String(),
		"size_bytes":   len(data),
	})
	s.logg.Info(logCtx, "attachment uploaded")
	return newDetail(c, s.catalog), nil
}

func (s *service) RemoveAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot) (*Detail, error) {
	if !slot.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown attachment slot %q", slot)
	}
	current, err := s.loadAuthorized(ctx, actor, id, ownerOnly)
	if err != nil {
		return nil, err
	}
	if !CanBeEdited(current) {
		return nil, notEditable(current)
	}
	if !current.Attachments.Has(slot) {
		return newDetail(current, s.catalog), nil
	}

	now := s.now()
	var previous string
	c, err := s.mutate(ctx, actor, id, ownerOnly, func(c *models.Certification, u *unitOfWork) error {
		if err := s.prepareEdit(c, actor, u, now); err != nil {
			return err
		}
		previous = c.Attachments[slot]
		c.Attachments = c.Attachments.Clone()
		delete(c.Attachments, slot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != "" {
		s.discard(ctx, id, slot, previous)
	}
	return newDetail(c, s.catalog), nil
}

func (s *service) OpenAttachment(ctx context.Context, actor Actor, id uuid.UUID, slot enums.AttachmentSlot) (*AttachmentContent, error) {
	if !slot.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown attachment slot %q", slot)
	}
	c, err := s.loadAuthorized(ctx, actor, id, ownerOrAdmin)
	if err != nil {
		return nil, err
	}
	if !c.Attachments.Has(slot) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment not found")
	}

	rc, err := s.store.Get(ctx, c.Attachments[slot])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "open attachment")
	}

	head := make([]byte, sniffHeaderBytes)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		_ = rc.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read attachment")
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	return &AttachmentContent{
		Slot:        slot,
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
		Body: readCloser{
			Reader: io.MultiReader(bytes.NewReader(head), rc),
			Closer: rc,
		},
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

func (s *service) Submit(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	now := s.now()
	c, err := s.mutate(ctx, actor, id, ownerOnly, func(c *models.Certification, u *unitOfWork) error {
		from := c.Status
		resubmission := c.SubmittedAt != nil
		if err := Submit(c, now); err != nil {
			return err
		}
		u.transition(from, c.Status, "")
		u.emit(outbox.DomainEvent{
			EventType:     enums.EventCertificationSubmitted,
			AggregateType: enums.AggregateCertification,
			AggregateID:   c.ID,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data: payloads.CertificationSubmittedEvent{
				CertificationID: c.ID,
				UserID:          c.UserID,
				ApplicationType: c.ApplicationType,
				Period:          c.Period,
				SubmittedAt:     now,
				Resubmission:    resubmission,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logContext(ctx, actor, c.ID), "certification submitted")
	return newDetail(c, s.catalog), nil
}

func (s *service) StartReview(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	return s.review(ctx, actor, id, "", func(c *models.Certification, now time.Time) error {
		return StartReview(c, actor.UserID, now)
	})
}

func (s *service) Approve(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*Detail, error) {
	return s.review(ctx, actor, id, strings.TrimSpace(notes), func(c *models.Certification, now time.Time) error {
		return Approve(c, actor.UserID, notes, now)
	})
}

func (s *service) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Detail, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required").
			WithDetails(map[string]string{"reason": "is required"})
	}
	return s.review(ctx, actor, id, strings.TrimSpace(reason), func(c *models.Certification, now time.Time) error {
		return Reject(c, actor.UserID, reason, now)
	})
}

func (s *service) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	return s.review(ctx, actor, id, "", func(c *models.Certification, now time.Time) error {
		return Complete(c, now)
	})
}

func (s *service) review(ctx context.Context, actor Actor, id uuid.UUID, notes string, apply func(*models.Certification, time.Time) error) (*Detail, error) {
	now := s.now()
	var from enums.CertificationStatus
	c, err := s.mutate(ctx, actor, id, adminOnly, func(c *models.Certification, u *unitOfWork) error {
		from = c.Status
		if err := apply(c, now); err != nil {
			return err
		}
		u.transition(from, c.Status, notes)
		u.emit(statusChangedEvent(c, from, actor, notes, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(s.logContext(ctx, actor, c.ID), map[string]any{
		"from_status": from.String(),
		"to_status":   c.Status.String(),
	})
	s.logg.Info(logCtx, "certification status changed")
	return newDetail(c, s.catalog), nil
}

func (s *service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	c, err := s.loadAuthorized(ctx, actor, id, ownerOnly)
	if err != nil {
		return err
	}
	if !CanBeDeleted(c) {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "only draft certifications can be deleted").
			WithDetails(map[string]any{"status": c.Status})
	}
	if err := s.remove(ctx, c, actorRef(actor)); err != nil {
		return err
	}
	s.logg.Info(s.logContext(ctx, actor, id), "certification deleted")
	return nil
}

// PurgeStaleDrafts deletes drafts last updated before cutoff. Per-record
// failures are combined; the count covers records actually removed.
func (s *service) PurgeStaleDrafts(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := s.repo.FindStaleDrafts(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale drafts")
	}

	var errs error
	purged := 0
	for i := range rows {
		if err := s.remove(ctx, &rows[i], nil); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("certification %s: %w", rows[i].ID, err))
			continue
		}
		purged++
	}
	return purged, errs
}

// remove deletes the record when it is still the draft version that was
// loaded, then releases its stored attachments. Blobs are only touched after
// the delete has committed.
func (s *service) remove(ctx context.Context, c *models.Certification, actor *outbox.ActorRef) error {
	now := s.now()

	var deleted *models.Certification
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, c.ID)
		if err != nil {
			return err
		}
		if current.Version != c.Version || !CanBeDeleted(current) {
			return pkgerrors.New(pkgerrors.CodeConflict, "certification changed while deleting").
				WithDetails(map[string]any{"expected_version": c.Version, "current_version": current.Version})
		}
		if err := repo.Delete(ctx, c.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "certification not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete certification")
		}
		err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCertificationDeleted,
			AggregateType: enums.AggregateCertification,
			AggregateID:   c.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.CertificationDeletedEvent{
				CertificationID:  c.ID,
				UserID:           current.UserID,
				AttachmentsTotal: countAttachments(current),
				DeletedAt:        now,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit outbox event")
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncTransition(deleted.Status.String(), deletedStatusLabel)

	total, failed := s.removeAttachments(ctx, deleted)
	if total > 0 {
		logCtx := s.logg.WithFields(s.logg.WithCertificationID(ctx, c.ID.String()), map[string]any{
			"attachments_total":  total,
			"attachments_failed": failed,
		})
		if failed > 0 {
			s.logg.Warn(logCtx, "certification deleted with orphaned attachments")
		} else {
			s.logg.Info(logCtx, "certification attachments released")
		}
	}
	return nil
}

func countAttachments(c *models.Certification) int {
	n := 0
	for _, slot := range enums.AttachmentSlots() {
		if strings.TrimSpace(c.Attachments[slot]) != "" {
			n++
		}
	}
	return n
}

// removeAttachments deletes each non-empty slot independently. Failures are
// logged and counted and never stop the other slots.
func (s *service) removeAttachments(ctx context.Context, c *models.Certification) (total, failed int) {
	var (
		g      errgroup.Group
		errCnt atomic.Int32
	)
	g.SetLimit(attachmentCleanupConcurrency)
	for _, slot := range enums.AttachmentSlots() {
		ref := strings.TrimSpace(c.Attachments[slot])
		if ref == "" {
			continue
		}
		total++
		g.Go(func() error {
			if !s.discard(ctx, c.ID, slot, ref) {
				errCnt.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return total, int(errCnt.Load())
}

// discard deletes a blob best-effort and reports whether the store accepted the delete.
func (s *service) discard(ctx context.Context, id uuid.UUID, slot enums.AttachmentSlot, ref string) bool {
	logCtx := s.logg.WithFields(s.logg.WithCertificationID(ctx, id.String()), map[string]any{
		"slot":       slot.String(),
		"object_ref": ref,
	})
	deleted, err := s.store.Delete(ctx, ref)
	if err != nil {
		s.metrics.IncCleanupFailure(slot.String())
		s.logg.Error(logCtx, "failed to delete attachment", err)
		return false
	}
	if !deleted {
		s.logg.Warn(logCtx, "attachment already absent from store")
	}
	return true
}

func (s *service) History(ctx context.Context, actor Actor, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.loadAuthorized(ctx, actor, id, ownerOrAdmin); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list certification history")
	}
	out := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		out = append(out, newHistoryEntry(e))
	}
	return out, nil
}

func (s *service) Stats(ctx context.Context, actor Actor, ownerID *uuid.UUID) (*Stats, error) {
	owner, err := scopeOwner(actor, ownerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count certifications")
	}
	stats := &Stats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// mutate loads the record inside a transaction, applies fn and persists the
// record, its history rows and outbox events together.
func (s *service) mutate(ctx context.Context, actor Actor, id uuid.UUID, authorize authorizer, fn func(*models.Certification, *unitOfWork) error) (*models.Certification, error) {
	var out *models.Certification
	u := &unitOfWork{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, c); err != nil {
			return err
		}
		if err := fn(c, u); err != nil {
			return err
		}
		if err := repo.Save(ctx, c); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "certification was modified concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save certification")
		}
		if err := s.recordHistory(ctx, repo, c.ID, actor, u.changes, s.now()); err != nil {
			return err
		}
		for _, event := range u.events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit outbox event")
			}
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, change := range u.changes {
		s.metrics.IncTransition(change.from.String(), change.to.String())
	}
	return out, nil
}

func (s *service) recordHistory(ctx context.Context, repo Repository, id uuid.UUID, actor Actor, changes []statusChange, now time.Time) error {
	for i, change := range changes {
		event := &models.CertificationEvent{
			CertificationID: id,
			ToStatus:        change.to,
			ActorID:         actor.UserID,
			ActorRole:       actor.Role,
			Notes:           change.notes,
			CreatedAt:       now.Add(time.Duration(i) * time.Microsecond),
		}
		if change.from != "" {
			from := change.from
			event.FromStatus = &from
		}
		if err := repo.InsertEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record certification history")
		}
	}
	return nil
}

// prepareEdit checks that the owner may edit c and reopens rejected records.
func (s *service) prepareEdit(c *models.Certification, actor Actor, u *unitOfWork, now time.Time) error {
	if !CanBeEdited(c) {
		return notEditable(c)
	}
	if c.Status != enums.CertificationStatusRejected {
		return nil
	}
	from := c.Status
	if err := Reopen(c, now); err != nil {
		return err
	}
	u.transition(from, c.Status, "reopened for editing")
	u.emit(statusChangedEvent(c, from, actor, "", now))
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Certification, error) {
	c, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certification")
	}
	return c, nil
}

func (s *service) loadAuthorized(ctx context.Context, actor Actor, id uuid.UUID, authorize authorizer) (*models.Certification, error) {
	c, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) logContext(ctx context.Context, actor Actor, id uuid.UUID) context.Context {
	ctx = s.logg.WithActor(ctx, actor.UserID.String(), actor.Role.String())
	return s.logg.WithCertificationID(ctx, id.String())
}

// scopeOwner limits non-admin callers to their own records.
func scopeOwner(actor Actor, requested *uuid.UUID) (*uuid.UUID, error) {
	if actor.IsAdmin() {
		return requested, nil
	}
	if requested != nil && *requested != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot access another user's certifications")
	}
	owner := actor.UserID
	return &owner, nil
}

func notEditable(c *models.Certification) error {
	return pkgerrors.New(pkgerrors.CodePreconditionFailed, "certification cannot be edited").
		WithDetails(map[string]any{"status": c.Status})
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func statusChangedEvent(c *models.Certification, from enums.CertificationStatus, actor Actor, notes string, now time.Time) outbox.DomainEvent {
	payload := payloads.CertificationStatusChangedEvent{
		CertificationID: c.ID,
		UserID:          c.UserID,
		FromStatus:      from,
		ToStatus:        c.Status,
		ProcessedBy:     c.ProcessedBy,
		ChangedAt:       now,
	}
	if c.Status == enums.CertificationStatusRejected {
		reason := c.RejectionReason
		payload.RejectionReason = &reason
	}
	if notes != "" && c.Status != enums.CertificationStatusRejected {
		payload.Notes = &notes
	}
	return outbox.DomainEvent{
		EventType:     enums.EventCertificationStatusChanged,
		AggregateType: enums.AggregateCertification,
		AggregateID:   c.ID,
		Actor:         actorRef(actor),
		OccurredAt:    now,
		Data:          payload,
	}
}

func readAttachment(slot enums.AttachmentSlot, file AttachmentFile) ([]byte, *mimetype.MIME, error) {
	if file.Content == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required").
			WithDetails(map[string]string{"file": "is required"})
	}
	limit := slot.MaxBytes()
	tooLarge := pkgerrors.New(pkgerrors.CodeValidation, "file too large").
		WithDetails(map[string]string{"file": fmt.Sprintf("must be at most %d MB", limit>>20)})
	if file.Size > limit {
		return nil, nil, tooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file.Content, limit+1))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty").
			WithDetails(map[string]string{"file": "is empty"})
	}
	if int64(len(data)) > limit {
		return nil, nil, tooLarge
	}

	mtype := mimetype.Detect(data)
	allowed := slot.AllowedMIMETypes()
	for _, candidate := range allowed {
		if mtype.Is(candidate) {
			return data, mtype, nil
		}
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported file type").
		WithDetails(map[string]string{"file": fmt.Sprintf("must be one of %s, got %s", strings.Join(allowed, ", "), mtype.String())})
}

func attachmentKey(id uuid.UUID, slot enums.AttachmentSlot, ext string) string {
	return fmt.Sprintf("certifications/%s/%s-%s%s", id, slot, uuid.NewString(), ext)
}
