package repository

import (
	"context"
	"database/sql"
	"time"

	"authbridge/internal/domain"
)

// AuditRepo implements domain.AuditRepository on SQLite. Insert and
// PruneBefore use the write pool; List uses the read pool.
type AuditRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewAuditRepo creates an AuditRepo over the given write/read pool pair.
func NewAuditRepo(writeDB, readDB *sql.DB) *AuditRepo {
	return &AuditRepo{write: writeDB, read: readDB}
}

func (r *AuditRepo) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := r.write.ExecContext(ctx,
		`INSERT INTO audit_log (actor, action, detail, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Actor, entry.Action, entry.Detail, entry.Status, createdAt)
	if err != nil {
		return mapDBError(err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

func (r *AuditRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.write.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, mapDBError(err)
	}
	return res.RowsAffected()
}

// List returns the most recent entries, newest first.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.read.QueryContext(ctx,
		`SELECT id, actor, action, detail, status, created_at FROM audit_log ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Detail, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
