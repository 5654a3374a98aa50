package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"audit-service/internal/domain"

	log "github.com/sirupsen/logrus"

	"github.com/lib/pq"
)

const auditColumns = "id, app_id, entity_type, entity_id, user_id, change, created, received"

type postgresAuditRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresAuditRepository returns an audit record store backed by the
// given table. The table name comes from deployment config, never from
// request input.
func NewPostgresAuditRepository(db *sql.DB, table string) *postgresAuditRepository {
	if table == "" {
		table = "audits"
	}
	return &postgresAuditRepository{db: db, table: table}
}

func (r *postgresAuditRepository) Insert(ctx context.Context, record *domain.AuditRecord) (*domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"audit_id": record.ID,
		"app_id":   record.AppID,
	}).Info("Inserting audit record")

	query := fmt.Sprintf(`
		INSERT INTO %s (id, app_id, entity_type, entity_id, user_id, change, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, r.table, auditColumns)

	stored, err := scanAuditRecord(r.db.QueryRowContext(ctx, query,
		record.ID,
		record.AppID,
		record.EntityType,
		record.EntityID,
		record.UserID,
		nullableJSON(record.Change),
		record.Created,
	))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, domain.ErrAuditExists
		}
		log.WithError(err).WithField("audit_id", record.ID).Error("Failed to insert audit record")
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}

	return stored, nil
}

func (r *postgresAuditRepository) Search(ctx context.Context, q domain.SearchQuery) ([]domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var query strings.Builder
	args := []interface{}{q.AppID}
	argPos := 2

	query.WriteString(fmt.Sprintf("SELECT %s FROM %s WHERE app_id = $1", auditColumns, r.table))

	if q.EntityType != "" {
		query.WriteString(fmt.Sprintf(" AND entity_type = $%d", argPos))
		args = append(args, q.EntityType)
		argPos++
	}
	if q.EntityID != "" {
		query.WriteString(fmt.Sprintf(" AND entity_id = $%d", argPos))
		args = append(args, q.EntityID)
		argPos++
	}
	if q.UserID != "" {
		query.WriteString(fmt.Sprintf(" AND user_id = $%d", argPos))
		args = append(args, q.UserID)
		argPos++
	}
	if q.CreatedAfter != nil {
		query.WriteString(fmt.Sprintf(" AND created > $%d", argPos))
		args = append(args, *q.CreatedAfter)
		argPos++
	}
	if q.CreatedBefore != nil {
		query.WriteString(fmt.Sprintf(" AND created < $%d", argPos))
		args = append(args, *q.CreatedBefore)
		argPos++
	}

	query.WriteString(" ORDER BY created DESC")
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1))
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		log.WithError(err).WithField("app_id", q.AppID).Error("Failed to search audit records")
		return nil, fmt.Errorf("failed to search audit records: %w", err)
	}
	defer rows.Close()

	records := []domain.AuditRecord{}
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan audit record row")
			return nil, fmt.Errorf("failed to scan audit record row: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

func (r *postgresAuditRepository) GetByID(ctx context.Context, appID, auditID string) (*domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND app_id = $2", auditColumns, r.table)

	record, err := scanAuditRecord(r.db.QueryRowContext(ctx, query, auditID, appID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to get audit record by ID")
		return nil, fmt.Errorf("failed to get audit record by ID: %w", err)
	}

	return record, nil
}

// Update applies a partial field merge to the record matched by auditID and
// returns the record as it was before the merge, or nil when no record
// matched. The select-for-update plus update run in one transaction so the
// returned previous state cannot interleave with a concurrent writer.
func (r *postgresAuditRepository) Update(ctx context.Context, auditID string, req domain.UpdateAuditRequest) (*domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 FOR UPDATE", auditColumns, r.table)
	previous, err := scanAuditRecord(tx.QueryRowContext(ctx, selectQuery, auditID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to load audit record for update")
		return nil, fmt.Errorf("failed to load audit record for update: %w", err)
	}

	setParts := []string{}
	args := []interface{}{}
	argPos := 1

	if req.EntityType != nil {
		setParts = append(setParts, fmt.Sprintf("entity_type = $%d", argPos))
		args = append(args, *req.EntityType)
		argPos++
	}
	if req.EntityID != nil {
		setParts = append(setParts, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, *req.EntityID)
		argPos++
	}
	if req.UserID != nil {
		setParts = append(setParts, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *req.UserID)
		argPos++
	}
	if len(req.Change) > 0 {
		setParts = append(setParts, fmt.Sprintf("change = $%d", argPos))
		args = append(args, []byte(req.Change))
		argPos++
	}
	if req.Created != nil {
		setParts = append(setParts, fmt.Sprintf("created = $%d", argPos))
		args = append(args, *req.Created)
		argPos++
	}

	if len(setParts) > 0 {
		args = append(args, auditID)
		updateQuery := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
			r.table, strings.Join(setParts, ", "), argPos)

		if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
			log.WithError(err).WithField("audit_id", auditID).Error("Failed to update audit record")
			return nil, fmt.Errorf("failed to update audit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit audit record update: %w", err)
	}

	return previous, nil
}

// Delete removes the record matched by auditID and returns it, or nil when
// no record matched.
func (r *postgresAuditRepository) Delete(ctx context.Context, auditID string) (*domain.AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithField("audit_id", auditID).Info("Deleting audit record")

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 RETURNING %s", r.table, auditColumns)

	deleted, err := scanAuditRecord(r.db.QueryRowContext(ctx, query, auditID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to delete audit record")
		return nil, fmt.Errorf("failed to delete audit record: %w", err)
	}

	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditRecord(row rowScanner) (*domain.AuditRecord, error) {
	var record domain.AuditRecord
	var change []byte

	err := row.Scan(
		&record.ID,
		&record.AppID,
		&record.EntityType,
		&record.EntityID,
		&record.UserID,
		&change,
		&record.Created,
		&record.Received,
	)
	if err != nil {
		return nil, err
	}

	if change != nil {
		record.Change = json.RawMessage(change)
	}

	return &record, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
