package security

import (
	"context"
	"log/slog"

	"authbridge/internal/domain"
)

// GrantService builds and commits authorization grants for protected
// resources.
type GrantService struct {
	grants domain.AuthorizationRepository
	audit  domain.AuditRepository
	logger *slog.Logger
}

// NewGrantService creates a GrantService.
func NewGrantService(grants domain.AuthorizationRepository, audit domain.AuditRepository, logger *slog.Logger) *GrantService {
	return &GrantService{grants: grants, audit: audit, logger: logger}
}

// ForResource starts a grant composition for the given resource. Staging
// calls perform no I/O; only Commit touches the store.
func (s *GrantService) ForResource(resourceID string) *GrantComposer {
	return &GrantComposer{
		svc:        s,
		resourceID: resourceID,
		staged:     map[domain.Mode][]domain.SubjectRef{},
	}
}

// ListForResource returns all current Authorizations for a resource.
func (s *GrantService) ListForResource(ctx context.Context, resourceID string) ([]domain.Authorization, error) {
	if err := domain.ValidateResourceID(resourceID); err != nil {
		return nil, err
	}
	return s.grants.ListForResource(ctx, resourceID)
}

// Subjects returns the current subject set for one (resource, mode). Callers
// that want to add a subject to an existing grant read this first and stage
// the union: Commit replaces, it never merges.
func (s *GrantService) Subjects(ctx context.Context, resourceID string, mode domain.Mode) ([]domain.SubjectRef, error) {
	if err := domain.ValidateResourceID(resourceID); err != nil {
		return nil, err
	}
	return s.grants.Subjects(ctx, resourceID, mode)
}

// GrantComposer stages full replacement subject sets per mode for one
// resource. It is not safe for concurrent use; compose on one goroutine.
type GrantComposer struct {
	svc        *GrantService
	resourceID string
	staged     map[domain.Mode][]domain.SubjectRef
}

// GrantRead stages the complete read subject set, replacing any prior
// staged read set.
func (c *GrantComposer) GrantRead(subjects ...domain.SubjectRef) *GrantComposer {
	return c.grant(domain.ModeRead, subjects)
}

// GrantWrite stages the complete write subject set, replacing any prior
// staged write set.
func (c *GrantComposer) GrantWrite(subjects ...domain.SubjectRef) *GrantComposer {
	return c.grant(domain.ModeWrite, subjects)
}

func (c *GrantComposer) grant(mode domain.Mode, subjects []domain.SubjectRef) *GrantComposer {
	// Deduplicate while keeping first-seen order; Token is the identity.
	seen := map[string]struct{}{}
	deduped := make([]domain.SubjectRef, 0, len(subjects))
	for _, subject := range subjects {
		token := subject.Token()
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		deduped = append(deduped, subject)
	}
	c.staged[mode] = deduped
	return c
}

// Commit writes all staged modes to the store in one logical operation,
// superseding the prior subject sets for those modes. Either every staged
// mode is applied or none are; failure surfaces as *domain.GrantWriteError.
// Committing with nothing staged is a no-op.
func (c *GrantComposer) Commit(ctx context.Context) error {
	if err := domain.ValidateResourceID(c.resourceID); err != nil {
		return err
	}
	if len(c.staged) == 0 {
		return nil
	}

	if err := c.svc.grants.Replace(ctx, c.resourceID, c.staged); err != nil {
		c.svc.logAudit(ctx, "COMMIT_GRANTS", domain.AuditError, c.resourceID)
		return &domain.GrantWriteError{ResourceID: c.resourceID, Err: err}
	}

	c.svc.logAudit(ctx, "COMMIT_GRANTS", domain.AuditAllowed, c.resourceID)
	c.svc.logger.Info("committed grants", "resource_id", c.resourceID, "modes", len(c.staged))
	return nil
}

func (s *GrantService) logAudit(ctx context.Context, action, status, detail string) {
	actor := "system"
	if requester, ok := domain.RequesterFromContext(ctx); ok && requester.Attrs.Principal != "" {
		actor = requester.Attrs.Principal
	}
	_ = s.audit.Insert(ctx, &domain.AuditEntry{
		Actor:  actor,
		Action: action,
		Status: status,
		Detail: detail,
	})
}
