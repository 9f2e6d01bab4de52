package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"authbridge/internal/domain"
)

// AuthorizationRepo implements domain.AuthorizationRepository on SQLite.
// Replace runs on the single-connection write pool; subject listings use the
// read pool.
type AuthorizationRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewAuthorizationRepo creates an AuthorizationRepo over the given write/read
// pool pair.
func NewAuthorizationRepo(writeDB, readDB *sql.DB) *AuthorizationRepo {
	return &AuthorizationRepo{write: writeDB, read: readDB}
}

// Replace supersedes the subject sets for the given modes of a resource in a
// single transaction: every staged mode is rewritten or none are.
func (r *AuthorizationRepo) Replace(ctx context.Context, resourceID string, modes map[domain.Mode][]domain.SubjectRef) error {
	if err := domain.ValidateResourceID(resourceID); err != nil {
		return err
	}
	for mode := range modes {
		if err := domain.ValidateMode(mode); err != nil {
			return err
		}
	}
	if len(modes) == 0 {
		return nil
	}

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grant transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for mode, subjects := range modes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM authorizations WHERE resource_id = ? AND mode = ?`,
			resourceID, string(mode)); err != nil {
			return mapDBError(err)
		}
		for _, subject := range subjects {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO authorizations (resource_id, mode, subject, created_at) VALUES (?, ?, ?, ?)`,
				resourceID, string(mode), subject.Token(), now); err != nil {
				return mapDBError(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grant transaction: %w", err)
	}
	return nil
}

func (r *AuthorizationRepo) ListForResource(ctx context.Context, resourceID string) ([]domain.Authorization, error) {
	rows, err := r.read.QueryContext(ctx,
		`SELECT mode, subject FROM authorizations WHERE resource_id = ? ORDER BY mode, subject`,
		resourceID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	byMode := map[domain.Mode][]domain.SubjectRef{}
	var order []domain.Mode
	for rows.Next() {
		var (
			mode  string
			token string
		)
		if err := rows.Scan(&mode, &token); err != nil {
			return nil, err
		}
		subject, err := domain.ParseSubjectToken(token)
		if err != nil {
			return nil, fmt.Errorf("stored subject for resource %s: %w", resourceID, err)
		}
		m := domain.Mode(mode)
		if _, seen := byMode[m]; !seen {
			order = append(order, m)
		}
		byMode[m] = append(byMode[m], subject)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	authorizations := make([]domain.Authorization, 0, len(order))
	for _, mode := range order {
		authorizations = append(authorizations, domain.Authorization{
			ResourceID: resourceID,
			Mode:       mode,
			Subjects:   byMode[mode],
		})
	}
	return authorizations, nil
}

func (r *AuthorizationRepo) Subjects(ctx context.Context, resourceID string, mode domain.Mode) ([]domain.SubjectRef, error) {
	if err := domain.ValidateMode(mode); err != nil {
		return nil, err
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT subject FROM authorizations WHERE resource_id = ? AND mode = ? ORDER BY subject`,
		resourceID, string(mode))
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var subjects []domain.SubjectRef
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		subject, err := domain.ParseSubjectToken(token)
		if err != nil {
			return nil, fmt.Errorf("stored subject for resource %s: %w", resourceID, err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}
