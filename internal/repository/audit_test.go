package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"audit-service/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func auditRows(records ...domain.AuditRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "app_id", "entity_type", "entity_id", "user_id", "change", "created", "received",
	})
	for _, r := range records {
		var change []byte
		if r.Change != nil {
			change = []byte(r.Change)
		}
		rows.AddRow(r.ID, r.AppID, r.EntityType, r.EntityID, r.UserID, change, r.Created, r.Received)
	}
	return rows
}

func sampleRecord() domain.AuditRecord {
	return domain.AuditRecord{
		ID:         "a5d9e3c0-0000-0000-0000-000000000001",
		AppID:      "app1",
		EntityType: "order",
		EntityID:   "o1",
		UserID:     "u1",
		Change:     json.RawMessage(`{"status":"paid"}`),
		Created:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Received:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestInsert(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectQuery("INSERT INTO audits").
			WithArgs(record.ID, record.AppID, record.EntityType, record.EntityID,
				record.UserID, []byte(record.Change), record.Created).
			WillReturnRows(auditRows(record))

		stored, err := repo.Insert(context.Background(), &record)
		require.NoError(t, err)
		assert.Equal(t, record.ID, stored.ID)
		assert.Equal(t, record.Received, stored.Received)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil change inserts SQL NULL", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()
		record.Change = nil

		mock.ExpectQuery("INSERT INTO audits").
			WithArgs(record.ID, record.AppID, record.EntityType, record.EntityID,
				record.UserID, nil, record.Created).
			WillReturnRows(auditRows(record))

		stored, err := repo.Insert(context.Background(), &record)
		require.NoError(t, err)
		assert.Nil(t, stored.Change)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectQuery("INSERT INTO audits").
			WillReturnError(&pq.Error{Code: "23505"})

		stored, err := repo.Insert(context.Background(), &record)
		assert.ErrorIs(t, err, domain.ErrAuditExists)
		assert.Nil(t, stored)
	})
}

func TestSearch(t *testing.T) {
	t.Run("app_id only", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT id, app_id, entity_type, entity_id, user_id, change, created, received FROM audits WHERE app_id = $1 ORDER BY created DESC LIMIT $2 OFFSET $3",
		)).
			WithArgs("app1", 10, 0).
			WillReturnRows(auditRows(record))

		records, err := repo.Search(context.Background(), domain.SearchQuery{AppID: "app1", Limit: 10})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "app1", records[0].AppID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all filters", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE app_id = $1 AND entity_type = $2 AND entity_id = $3 AND user_id = $4 AND created < $5 ORDER BY created DESC LIMIT $6 OFFSET $7",
		)).
			WithArgs("app1", "order", "o1", "u1", before, 25, 5).
			WillReturnRows(auditRows())

		records, err := repo.Search(context.Background(), domain.SearchQuery{
			AppID:         "app1",
			EntityType:    "order",
			EntityID:      "o1",
			UserID:        "u1",
			CreatedBefore: &before,
			Limit:         25,
			Offset:        5,
		})
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created range lower bound", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE app_id = $1 AND created > $2 ORDER BY created DESC LIMIT $3 OFFSET $4",
		)).
			WithArgs("app1", after, 10, 0).
			WillReturnRows(auditRows())

		_, err := repo.Search(context.Background(), domain.SearchQuery{
			AppID:        "app1",
			CreatedAfter: &after,
			Limit:        10,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero matches is not an error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")

		mock.ExpectQuery("SELECT .+ FROM audits").
			WillReturnRows(auditRows())

		records, err := repo.Search(context.Background(), domain.SearchQuery{AppID: "app1", Limit: 10})
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")

		mock.ExpectQuery("SELECT .+ FROM audits").
			WillReturnError(errors.New("connection reset"))

		records, err := repo.Search(context.Background(), domain.SearchQuery{AppID: "app1", Limit: 10})
		assert.Error(t, err)
		assert.Nil(t, records)
	})
}

func TestGetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND app_id = $2")).
			WithArgs(record.ID, record.AppID).
			WillReturnRows(auditRows(record))

		got, err := repo.GetByID(context.Background(), record.AppID, record.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.ID, got.ID)
	})

	t.Run("wrong app_id is not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND app_id = $2")).
			WithArgs("some-id", "other-app").
			WillReturnRows(auditRows())

		got, err := repo.GetByID(context.Background(), "other-app", "some-id")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestUpdate(t *testing.T) {
	entityType := "invoice"

	t.Run("returns previous record", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
			WithArgs(record.ID).
			WillReturnRows(auditRows(record))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE audits SET entity_type = $1 WHERE id = $2")).
			WithArgs(entityType, record.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		previous, err := repo.Update(context.Background(), record.ID, domain.UpdateAuditRequest{
			EntityType: &entityType,
		})
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, "order", previous.EntityType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching record", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
			WithArgs("missing").
			WillReturnRows(auditRows())
		mock.ExpectRollback()

		previous, err := repo.Update(context.Background(), "missing", domain.UpdateAuditRequest{
			EntityType: &entityType,
		})
		assert.NoError(t, err)
		assert.Nil(t, previous)
	})

	t.Run("no fields still returns current record", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
			WithArgs(record.ID).
			WillReturnRows(auditRows(record))
		mock.ExpectCommit()

		previous, err := repo.Update(context.Background(), record.ID, domain.UpdateAuditRequest{})
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, record.ID, previous.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDelete(t *testing.T) {
	t.Run("returns deleted record", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")
		record := sampleRecord()

		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM audits WHERE id = $1 RETURNING")).
			WithArgs(record.ID).
			WillReturnRows(auditRows(record))

		deleted, err := repo.Delete(context.Background(), record.ID)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, record.ID, deleted.ID)
	})

	t.Run("second delete finds nothing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostgresAuditRepository(db, "audits")

		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM audits WHERE id = $1 RETURNING")).
			WithArgs("gone").
			WillReturnRows(auditRows())

		deleted, err := repo.Delete(context.Background(), "gone")
		assert.NoError(t, err)
		assert.Nil(t, deleted)
	})
}
