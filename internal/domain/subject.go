package domain

import (
	"net/url"
	"strings"
)

// Mode is the access mode of an authorization.
type Mode string

// Access modes a resource can be protected for.
const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Subject token namespaces. Identity and role subjects live in disjoint
// token spaces so a role subject can never collide with a user subject.
const (
	subjectPrefixIdentity = "user:"
	subjectPrefixRole     = "role:"
)

// SubjectKind discriminates the SubjectRef variant.
type SubjectKind string

const (
	// SubjectIdentity names a single identity record.
	SubjectIdentity SubjectKind = "identity"
	// SubjectRole names every identity holding a role within a domain.
	SubjectRole SubjectKind = "role"
)

// SubjectRef is anything a grant may name: a direct identity, or "any
// identity holding role R within domain D".
type SubjectRef struct {
	Kind       SubjectKind
	IdentityID string // set when Kind == SubjectIdentity
	Domain     string // set when Kind == SubjectRole
	Role       Role   // set when Kind == SubjectRole
}

// IdentitySubject builds a SubjectRef naming a single identity.
func IdentitySubject(id string) SubjectRef {
	return SubjectRef{Kind: SubjectIdentity, IdentityID: id}
}

// RoleSubject builds a SubjectRef naming role holders within a domain.
func RoleSubject(domain string, role Role) SubjectRef {
	return SubjectRef{Kind: SubjectRole, Domain: domain, Role: role}
}

// Token returns the deterministic comparable token for the subject. The
// mapping is injective: any change to the identity id, domain, or role
// changes the token, and the two kinds occupy disjoint namespaces. Domain
// and role are percent-escaped so a "#" inside either part cannot forge the
// separator. Independent processes agree on tokens without a shared lookup.
func (s SubjectRef) Token() string {
	switch s.Kind {
	case SubjectRole:
		return subjectPrefixRole + url.QueryEscape(s.Domain) + "#" + url.QueryEscape(string(s.Role))
	default:
		return subjectPrefixIdentity + s.IdentityID
	}
}

// ParseSubjectToken is the inverse of Token.
func ParseSubjectToken(token string) (SubjectRef, error) {
	switch {
	case strings.HasPrefix(token, subjectPrefixIdentity):
		id := strings.TrimPrefix(token, subjectPrefixIdentity)
		if id == "" {
			return SubjectRef{}, ErrValidation("empty identity subject token")
		}
		return IdentitySubject(id), nil
	case strings.HasPrefix(token, subjectPrefixRole):
		rest := strings.TrimPrefix(token, subjectPrefixRole)
		sep := strings.Index(rest, "#")
		if sep < 0 {
			return SubjectRef{}, ErrValidation("malformed role subject token %q", token)
		}
		domain, err := url.QueryUnescape(rest[:sep])
		if err != nil {
			return SubjectRef{}, ErrValidation("malformed role subject token %q: %v", token, err)
		}
		role, err := url.QueryUnescape(rest[sep+1:])
		if err != nil {
			return SubjectRef{}, ErrValidation("malformed role subject token %q: %v", token, err)
		}
		return RoleSubject(domain, Role(role)), nil
	default:
		return SubjectRef{}, ErrValidation("unknown subject token namespace in %q", token)
	}
}

// String implements fmt.Stringer for log output.
func (s SubjectRef) String() string { return s.Token() }

// Authorization is a (resource, mode, subject-set) access grant record. A
// resource has at most one Authorization per mode; committing a new subject
// set for a mode supersedes the prior one.
type Authorization struct {
	ResourceID string
	Mode       Mode
	Subjects   []SubjectRef
}

// ValidateMode checks that m is a known access mode.
func ValidateMode(m Mode) error {
	if m != ModeRead && m != ModeWrite {
		return ErrValidation("mode must be %q or %q, got %q", ModeRead, ModeWrite, m)
	}
	return nil
}

// ValidateResourceID checks that a resource id is usable as a grant target.
func ValidateResourceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrValidation("resource id is required")
	}
	return nil
}
