// Package security implements identity resolution, reconciliation, and
// authorization grant composition.
package security

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"authbridge/internal/cache"
	"authbridge/internal/domain"
)

// DefaultPrivilegedAffiliation is the unscoped affiliation that gates
// auto-provisioning when none is configured.
const DefaultPrivilegedAffiliation = "FACULTY"

// IdentityResolver turns a verified AttributeSet into a normalized AuthUser
// and links it to its backing Identity record through the memoizing cache,
// so concurrent requests for one durable key perform a single lookup.
type IdentityResolver struct {
	identities domain.IdentityRepository
	cache      *cache.Cache[string]
	privileged string
	logger     *slog.Logger
}

// NewIdentityResolver creates a resolver. privilegedAffiliation is matched
// case-insensitively against unscoped affiliations; empty selects the
// default.
func NewIdentityResolver(identities domain.IdentityRepository, c *cache.Cache[string], privilegedAffiliation string, logger *slog.Logger) *IdentityResolver {
	if privilegedAffiliation == "" {
		privilegedAffiliation = DefaultPrivilegedAffiliation
	}
	return &IdentityResolver{
		identities: identities,
		cache:      c,
		privileged: privilegedAffiliation,
		logger:     logger,
	}
}

// Resolve is a best-effort transform of whatever attributes are present.
// Missing attributes yield zero-value fields; a backing-store failure during
// lookup degrades to an unlinked user. Resolve never returns an error.
func (r *IdentityResolver) Resolve(ctx context.Context, attrs domain.AttributeSet) domain.AuthUser {
	user := domain.AuthUser{
		DisplayName: strings.TrimSpace(attrs.DisplayName),
		Email:       strings.TrimSpace(attrs.Email),
		Principal:   strings.TrimSpace(attrs.Principal),
		DurableKey:  strings.TrimSpace(attrs.DurableKey),
	}

	if local, _, ok := splitOnAt(user.Principal); ok {
		user.InstitutionalID = strings.ToLower(local)
	} else if user.Principal != "" {
		user.InstitutionalID = strings.ToLower(user.Principal)
	}

	for _, affiliation := range attrs.Affiliations {
		if strings.EqualFold(strings.TrimSpace(affiliation), r.privileged) {
			user.IsPrivileged = true
			break
		}
	}

	user.Domains = deriveDomains(user.Principal, attrs.ScopedAffiliations)

	if user.DurableKey == "" {
		r.logger.Debug("no durable key in attributes, skipping identity lookup",
			"principal", user.Principal)
		return user
	}

	id, err := r.cache.GetOrCompute(ctx, user.DurableKey, func(ctx context.Context) (string, error) {
		return r.identities.FindByLocalKey(ctx, user.DurableKey)
	})
	if err != nil {
		// Absent and unreachable both degrade to "unlinked": a transient
		// backing-store failure must not fail the authentication attempt.
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			r.logger.Debug("no backing identity for durable key", "durable_key", user.DurableKey)
		} else {
			r.logger.Warn("identity lookup failed, treating user as unlinked",
				"durable_key", user.DurableKey, "error", err)
		}
		return user
	}

	user.IdentityID = id
	return user
}

// deriveDomains collects the domain part of the principal and of every
// scoped affiliation. Tokens without an "@" separator are skipped.
func deriveDomains(principal string, scopedAffiliations []string) []string {
	seen := map[string]struct{}{}
	if _, domainPart, ok := splitOnAt(principal); ok {
		seen[domainPart] = struct{}{}
	}
	for _, scoped := range scopedAffiliations {
		if _, domainPart, ok := splitOnAt(strings.TrimSpace(scoped)); ok {
			seen[domainPart] = struct{}{}
		}
	}

	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// splitOnAt splits s around the first "@". Both sides must be non-empty.
func splitOnAt(s string) (local, domainPart string, ok bool) {
	i := strings.Index(s, "@")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
