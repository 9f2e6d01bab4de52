package security

import (
	"context"
	"errors"
	"log/slog"

	"authbridge/internal/cache"
	"authbridge/internal/domain"
)

// IdentityService reconciles a resolved AuthUser against the persisted
// Identity record: updating drifted authoritative fields, provisioning
// identities for privileged unknown users, and rejecting everyone else.
type IdentityService struct {
	identities domain.IdentityRepository
	cache      *cache.Cache[string]
	audit      domain.AuditRepository
	logger     *slog.Logger
}

// NewIdentityService creates an IdentityService. The cache must be the same
// instance the resolver uses: provisioning runs inside a cache computation
// keyed by durable key, which is what collapses concurrent creates for one
// person into a single insert.
func NewIdentityService(identities domain.IdentityRepository, c *cache.Cache[string], audit domain.AuditRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{identities: identities, cache: c, audit: audit, logger: logger}
}

// Reconcile returns the up-to-date Identity for user, creating or updating
// it as needed.
//
//   - Linked user: authoritative fields (username, email, display name,
//     institutional id) are rewritten when they drift; LocalKey never changes.
//   - Unlinked privileged user with a durable key: find-or-create, at most
//     once per durable key under concurrency.
//   - Anyone else: *domain.RejectedError, nothing is materialized.
//
// Update and create failures are always surfaced; silent data loss on writes
// is never acceptable.
func (s *IdentityService) Reconcile(ctx context.Context, user domain.AuthUser) (*domain.Identity, error) {
	if user.Linked() {
		return s.reconcileExisting(ctx, user, user.IdentityID)
	}

	if !user.IsPrivileged {
		s.logAudit(ctx, user.Principal, "RECONCILE_IDENTITY", domain.AuditRejected, "unknown identity without privileged affiliation")
		s.logger.Info("rejecting unknown non-privileged user", "principal", user.Principal)
		return nil, domain.ErrRejected("%s is not authorized", user.Principal)
	}
	if user.DurableKey == "" {
		s.logAudit(ctx, user.Principal, "RECONCILE_IDENTITY", domain.AuditRejected, "no durable key to provision against")
		s.logger.Info("rejecting user without durable key", "principal", user.Principal)
		return nil, domain.ErrRejected("%s has no durable identifier", user.Principal)
	}

	// Find-or-create runs inside the cache computation for the durable key,
	// so N concurrent requests presenting the same key produce one insert.
	// The store's UNIQUE(local_key) constraint remains the second line of
	// defense once the cache entry ages out.
	var (
		id  string
		err error
	)
	for attempt := 0; ; attempt++ {
		id, err = s.cache.GetOrCompute(ctx, user.DurableKey, func(ctx context.Context) (string, error) {
			return s.findOrCreate(ctx, user)
		})
		if err == nil {
			break
		}
		// A caller can attach to a concurrently started lookup-only
		// computation for the same key; when that round misses, retry so
		// the provisioning computation actually runs.
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) && attempt < 8 {
			continue
		}
		return nil, err
	}

	return s.reconcileExisting(ctx, user, id)
}

// Get returns the Identity with the given id.
func (s *IdentityService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	if id == "" {
		return nil, domain.ErrValidation("identity id is required")
	}
	return s.identities.GetByID(ctx, id)
}

// findOrCreate resolves the durable key to an identity id, inserting a new
// record when none exists. Runs at most once concurrently per durable key.
func (s *IdentityService) findOrCreate(ctx context.Context, user domain.AuthUser) (string, error) {
	id, err := s.identities.FindByLocalKey(ctx, user.DurableKey)
	if err == nil {
		return id, nil
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		return "", err
	}

	created, err := s.identities.Create(ctx, &domain.Identity{
		LocalKey:        user.DurableKey,
		Username:        user.Principal,
		DisplayName:     user.DisplayName,
		Email:           user.Email,
		InstitutionalID: user.InstitutionalID,
		Roles:           []domain.Role{domain.RoleSubmitter},
	})
	if err != nil {
		// The unique local_key constraint caught a create that raced past
		// the cache (e.g. another process). Use the winner's record.
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return s.identities.FindByLocalKey(ctx, user.DurableKey)
		}
		return "", err
	}

	s.logAudit(ctx, user.Principal, "CREATE_IDENTITY", domain.AuditAllowed, "provisioned "+created.ID)
	s.logger.Info("provisioned new identity", "principal", user.Principal, "identity_id", created.ID)
	return created.ID, nil
}

// reconcileExisting reads the record and rewrites authoritative fields that
// drifted from the freshly asserted attributes.
func (s *IdentityService) reconcileExisting(ctx context.Context, user domain.AuthUser, id string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Each attribute source is authoritative for its own fields: whatever it
	// asserts wins whenever it differs from the stored record.
	changed := false
	if identity.Username != user.Principal {
		identity.Username = user.Principal
		changed = true
	}
	if identity.Email != user.Email {
		identity.Email = user.Email
		changed = true
	}
	if identity.DisplayName != user.DisplayName {
		identity.DisplayName = user.DisplayName
		changed = true
	}
	if identity.InstitutionalID != user.InstitutionalID {
		identity.InstitutionalID = user.InstitutionalID
		changed = true
	}

	if changed {
		if err := s.identities.Update(ctx, identity); err != nil {
			return nil, err
		}
		s.logAudit(ctx, user.Principal, "UPDATE_IDENTITY", domain.AuditAllowed, "refreshed "+identity.ID)
		s.logger.Info("identity record out of date, updated", "principal", user.Principal, "identity_id", identity.ID)
	}

	return identity, nil
}

func (s *IdentityService) logAudit(ctx context.Context, actor, action, status, detail string) {
	if actor == "" {
		actor = "unknown"
	}
	_ = s.audit.Insert(ctx, &domain.AuditEntry{
		Actor:  actor,
		Action: action,
		Status: status,
		Detail: detail,
	})
}
