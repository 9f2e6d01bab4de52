package domain

import (
	"context"
	"time"
)

// IdentityRepository is the backing store for Identity records. All methods
// may fail with backing-store errors; FindByLocalKey and GetByID return
// *NotFoundError when no record matches.
type IdentityRepository interface {
	// Create persists a new identity and returns it with the assigned id.
	// Fails with *ConflictError if the local key is already taken.
	Create(ctx context.Context, identity *Identity) (*Identity, error)
	// GetByID reads an identity record by id.
	GetByID(ctx context.Context, id string) (*Identity, error)
	// FindByLocalKey resolves a durable key to an identity id.
	FindByLocalKey(ctx context.Context, localKey string) (string, error)
	// Update rewrites the mutable fields of an existing identity.
	// LocalKey is never modified.
	Update(ctx context.Context, identity *Identity) error
}

// AuthorizationRepository stores per-resource grant records.
type AuthorizationRepository interface {
	// Replace atomically supersedes the subject sets of the given modes for
	// a resource. Modes not present in the map are left untouched. Either
	// all given modes are written or none are.
	Replace(ctx context.Context, resourceID string, modes map[Mode][]SubjectRef) error
	// ListForResource returns all Authorizations for a resource.
	ListForResource(ctx context.Context, resourceID string) ([]Authorization, error)
	// Subjects returns the current subject set for one (resource, mode).
	// An absent grant yields an empty set, not an error.
	Subjects(ctx context.Context, resourceID string, mode Mode) ([]SubjectRef, error)
}

// AuditRepository records security-relevant events.
type AuditRepository interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	// PruneBefore deletes entries older than cutoff and reports how many
	// rows were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
