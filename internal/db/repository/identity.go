package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"authbridge/internal/domain"
)

// IdentityRepo implements domain.IdentityRepository on SQLite. Writes go
// through the single-connection write pool; lookups use the read pool so they
// never queue behind an in-flight write transaction.
type IdentityRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewIdentityRepo creates an IdentityRepo over the given write/read pool pair.
func NewIdentityRepo(writeDB, readDB *sql.DB) *IdentityRepo {
	return &IdentityRepo{write: writeDB, read: readDB}
}

func (r *IdentityRepo) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if identity.LocalKey == "" {
		return nil, domain.ErrValidation("local key is required")
	}
	if identity.ID == "" {
		identity.ID = domain.NewID()
	}

	roles, err := encodeRoles(identity.Roles)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = r.write.ExecContext(ctx,
		`INSERT INTO identities (id, local_key, username, display_name, email, institutional_id, roles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.LocalKey, identity.Username, identity.DisplayName,
		identity.Email, identity.InstitutionalID, roles, now, now)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.GetByID(ctx, identity.ID)
}

func (r *IdentityRepo) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT id, local_key, username, display_name, email, institutional_id, roles, created_at, updated_at
		 FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *IdentityRepo) FindByLocalKey(ctx context.Context, localKey string) (string, error) {
	var id string
	err := r.read.QueryRowContext(ctx,
		`SELECT id FROM identities WHERE local_key = ?`, localKey).Scan(&id)
	if err != nil {
		return "", mapDBError(err)
	}
	return id, nil
}

// Update rewrites the authoritative fields of an existing identity.
// local_key is deliberately absent from the SET list: it is immutable.
func (r *IdentityRepo) Update(ctx context.Context, identity *domain.Identity) error {
	roles, err := encodeRoles(identity.Roles)
	if err != nil {
		return err
	}

	res, err := r.write.ExecContext(ctx,
		`UPDATE identities
		 SET username = ?, display_name = ?, email = ?, institutional_id = ?, roles = ?, updated_at = ?
		 WHERE id = ?`,
		identity.Username, identity.DisplayName, identity.Email,
		identity.InstitutionalID, roles, time.Now().UTC(), identity.ID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("identity %q not found", identity.ID)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*domain.Identity, error) {
	var (
		identity domain.Identity
		roles    string
	)
	err := row.Scan(&identity.ID, &identity.LocalKey, &identity.Username,
		&identity.DisplayName, &identity.Email, &identity.InstitutionalID,
		&roles, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := json.Unmarshal([]byte(roles), &identity.Roles); err != nil {
		return nil, fmt.Errorf("decode roles for identity %s: %w", identity.ID, err)
	}
	return &identity, nil
}

func encodeRoles(roles []domain.Role) (string, error) {
	if roles == nil {
		roles = []domain.Role{}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(b), nil
}
