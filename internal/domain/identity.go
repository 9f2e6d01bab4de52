package domain

import "time"

// Role is a repository role carried by an Identity.
type Role string

// Roles assigned to identities.
const (
	RoleSubmitter Role = "submitter"
	RoleAdmin     Role = "admin"
)

// AttributeSet holds the verified identity attributes asserted by the
// federated SSO layer for a single request. The transport layer guarantees
// these came from a trusted identity provider; nothing here is re-validated.
type AttributeSet struct {
	DisplayName string
	Email       string
	Principal   string // identity@domain form (eppn)
	DurableKey  string // stable employee/member identifier; may be empty

	// Affiliations are unscoped role/status tokens (e.g. "FACULTY").
	Affiliations []string
	// ScopedAffiliations are affiliation@domain tokens.
	ScopedAffiliations []string
}

// AuthUser is the per-request normalized view of an AttributeSet. It is never
// persisted; it exists to reconcile the persisted Identity record.
type AuthUser struct {
	DisplayName     string
	Email           string
	Principal       string
	InstitutionalID string // lower-cased local part of Principal
	DurableKey      string
	Domains         []string // sorted; derived from Principal and scoped affiliations
	IsPrivileged    bool
	IdentityID      string // backing Identity id; empty when unlinked
}

// Linked reports whether the user was matched to an existing Identity record.
func (u AuthUser) Linked() bool { return u.IdentityID != "" }

// Identity is the persisted identity record. LocalKey is immutable once set;
// the other authoritative fields track the SSO attributes.
type Identity struct {
	ID              string
	LocalKey        string // = AuthUser.DurableKey; unique in the store
	Username        string // = AuthUser.Principal
	DisplayName     string
	Email           string
	InstitutionalID string
	Roles           []Role
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasRole reports whether the identity carries the given role.
func (i *Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}
