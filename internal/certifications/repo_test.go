package certifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/db/models"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	"github.com/firmasegura/certifications-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.Certification{},
		&models.CertificationEvent{},
		&models.OutboxEvent{},
	))
	return conn
}

func seedCertification(t *testing.T, repo Repository, mutate func(*models.Certification)) *models.Certification {
	t.Helper()
	c := naturalPersonDraft()
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	c := seedCertification(t, repo, nil)

	loaded, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Version)
	require.Equal(t, enums.CertificationStatusDraft, loaded.Status)
	require.Equal(t, c.Attachments[enums.SlotIdentificationSelfie], loaded.Attachments[enums.SlotIdentificationSelfie])

	_, err = repo.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySaveChecksVersion(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	c := seedCertification(t, repo, nil)
	ctx := context.Background()

	first, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)

	first.Status = enums.CertificationStatusPending
	first.Metadata["note"] = "first"
	require.NoError(t, repo.Save(ctx, first))
	require.Equal(t, 2, first.Version)

	second.ApplicantName = "Stale"
	require.ErrorIs(t, repo.Save(ctx, second), ErrVersionConflict)

	stored, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusPending, stored.Status)
	require.Equal(t, "Maria", stored.ApplicantName)
	require.Equal(t, "first", stored.Metadata.String("note"))
	require.Equal(t, 2, stored.Version)
}

func TestRepositoryDeleteRemovesHistory(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	c := seedCertification(t, repo, nil)
	ctx := context.Background()

	require.NoError(t, repo.InsertEvent(ctx, &models.CertificationEvent{
		CertificationID: c.ID,
		ToStatus:        enums.CertificationStatusDraft,
		ActorID:         c.UserID,
		ActorRole:       enums.RoleUser,
	}))
	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err := repo.FindByID(ctx, c.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	events, err := repo.ListEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	require.True(t, errors.Is(repo.Delete(ctx, c.ID), gorm.ErrRecordNotFound))
}

func TestRepositoryListPaginatesAndFilters(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		i := i
		seedCertification(t, repo, func(c *models.Certification) {
			c.UserID = owner
			c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			if i%2 == 1 {
				c.Status = enums.CertificationStatusPending
			}
		})
	}
	seedCertification(t, repo, func(c *models.Certification) {
		c.CreatedAt = base.Add(time.Hour)
	})

	filters := ListFilters{UserID: &owner}
	page, err := repo.List(ctx, filters, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	require.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))

	seen := len(page.Items)
	cursor := page.NextCursor
	for cursor != "" {
		next, err := repo.List(ctx, filters, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		seen += len(next.Items)
		cursor = next.NextCursor
	}
	require.Equal(t, 5, seen)

	pending := enums.CertificationStatusPending
	page, err = repo.List(ctx, ListFilters{UserID: &owner, Status: &pending}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Empty(t, page.NextCursor)

	legal := enums.ApplicationTypeLegalRepresentative
	page, err = repo.List(ctx, ListFilters{ApplicationType: &legal}, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	_, err = repo.List(ctx, filters, pagination.Params{Cursor: "%%%"})
	require.Error(t, err)
}

func TestRepositoryCountByStatus(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	seedCertification(t, repo, func(c *models.Certification) { c.UserID = owner })
	seedCertification(t, repo, func(c *models.Certification) {
		c.UserID = owner
		c.Status = enums.CertificationStatusPending
	})
	seedCertification(t, repo, func(c *models.Certification) { c.Status = enums.CertificationStatusPending })

	all, err := repo.CountByStatus(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), all[enums.CertificationStatusDraft])
	require.Equal(t, int64(2), all[enums.CertificationStatusPending])
	require.Equal(t, int64(0), all[enums.CertificationStatusCompleted])
	require.Len(t, all, len(enums.CertificationStatuses()))

	own, err := repo.CountByStatus(ctx, &owner)
	require.NoError(t, err)
	require.Equal(t, int64(1), own[enums.CertificationStatusPending])
}

func TestRepositoryFindStaleDrafts(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := seedCertification(t, repo, nil)
	submitted := seedCertification(t, repo, func(c *models.Certification) { c.Status = enums.CertificationStatusPending })
	fresh := seedCertification(t, repo, nil)
	require.NoError(t, db.Model(&models.Certification{}).
		Where("id IN ?", []uuid.UUID{stale.ID, submitted.ID}).
		UpdateColumn("updated_at", old).Error)

	rows, err := repo.FindStaleDrafts(ctx, old.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stale.ID, rows[0].ID)
	require.NotEqual(t, fresh.ID, rows[0].ID)
}

func TestRepositoryEventsOrdered(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedCertification(t, repo, nil)
	draft := enums.CertificationStatusDraft
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertEvent(ctx, &models.CertificationEvent{
		CertificationID: c.ID,
		FromStatus:      &draft,
		ToStatus:        enums.CertificationStatusPending,
		ActorID:         c.UserID,
		ActorRole:       enums.RoleUser,
		CreatedAt:       base.Add(time.Minute),
	}))
	require.NoError(t, repo.InsertEvent(ctx, &models.CertificationEvent{
		CertificationID: c.ID,
		ToStatus:        enums.CertificationStatusDraft,
		ActorID:         c.UserID,
		ActorRole:       enums.RoleUser,
		CreatedAt:       base,
	}))

	events, err := repo.ListEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Nil(t, events[0].FromStatus)
	require.Equal(t, enums.CertificationStatusPending, events[1].ToStatus)
	require.Equal(t, draft, *events[1].FromStatus)
}
