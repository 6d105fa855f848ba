package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/firmasegura/certifications-backend/pkg/config"
	"github.com/firmasegura/certifications-backend/pkg/logger"
)

type widget struct {
	ID   int
	Name string
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func countWidgets(t *testing.T, conn *gorm.DB, name string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&widget{}).Where("name = ?", name).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnNil(t *testing.T) {
	conn := openMemory(t)
	client := NewFromGorm(conn)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, countWidgets(t, conn, "kept"))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn := openMemory(t)
	client := NewFromGorm(conn)
	sentinel := errors.New("validation failed")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&widget{Name: "discarded"}).Error)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Zero(t, countWidgets(t, conn, "discarded"))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := openMemory(t)
	client := NewFromGorm(conn)

	require.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&widget{Name: "panicked"}).Error)
			panic("boom")
		})
	})
	require.Zero(t, countWidgets(t, conn, "panicked"))
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverSQLite}, nil)
	require.Error(t, err, "DSN is required")

	client, err := New(context.Background(), config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()))
}

func TestQueryLoggerReportsErrorsThroughLogger(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: queryLogger(logg),
	})
	require.NoError(t, err)

	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	require.Contains(t, out.String(), "gorm: ")
	require.Contains(t, out.String(), "missing_table")
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_outbox_events_event_aggregate"}

	require.True(t, IsUniqueViolation(pgErr, "ux_outbox_events_event_aggregate"))
	require.False(t, IsUniqueViolation(pgErr, "other_constraint"))
	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: outbox_events.id"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}
