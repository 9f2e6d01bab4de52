package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"authbridge/internal/domain"
)

// Trusted SSO attribute headers. The fronting gateway strips these from
// client requests and re-asserts them, so their values are trustworthy only
// when header trust is explicitly enabled.
const (
	HeaderDisplayName         = "Displayname"
	HeaderEmail               = "Mail"
	HeaderEppn                = "Eppn"
	HeaderUnscopedAffiliation = "Unscoped-Affiliation"
	HeaderScopedAffiliation   = "Affiliation"
	HeaderEmployeeNumber      = "Employeenumber"
)

// JWT claim names for token-asserted attributes (used when the SSO gateway
// forwards attributes as a signed token instead of headers).
const (
	ClaimDisplayName         = "name"
	ClaimEmail               = "email"
	ClaimEppn                = "eppn"
	ClaimEmployeeNumber      = "employee_number"
	ClaimUnscopedAffiliation = "affiliation"
	ClaimScopedAffiliation   = "scoped_affiliation"
	ClaimAdmin               = "admin"
)

// AttributeConfig controls how asserted identity attributes are accepted.
type AttributeConfig struct {
	// TrustHeaders enables reading SSO attribute headers. Only safe behind
	// a gateway that strips these headers from client traffic.
	TrustHeaders bool
	// Validator validates bearer tokens carrying attribute claims. May be
	// nil when TrustHeaders is the only accepted source.
	Validator JWTValidator
	Logger    *slog.Logger
}

// Attributes returns a middleware that builds the per-request verified
// AttributeSet — from trusted SSO headers when enabled, otherwise from a
// validated bearer token — and stores it in the request context as a
// domain.Requester. Requests asserting no identity at all get 401.
func Attributes(cfg AttributeConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TrustHeaders {
				if attrs, ok := attrsFromHeaders(r); ok {
					ctx := domain.WithRequester(r.Context(), domain.Requester{Attrs: attrs})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			if auth := r.Header.Get("Authorization"); cfg.Validator != nil && strings.HasPrefix(auth, "Bearer ") {
				tokenStr := strings.TrimPrefix(auth, "Bearer ")
				claims, err := cfg.Validator.Validate(r.Context(), tokenStr)
				if err == nil {
					requester := domain.Requester{
						Attrs:   attrsFromClaims(claims),
						IsAdmin: claims.BoolClaim(ClaimAdmin),
					}
					ctx := domain.WithRequester(r.Context(), requester)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				logger.Debug("bearer token rejected", "error", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    401,
				"message": "unauthorized: no verified identity attributes presented",
			})
		})
	}
}

// attrsFromHeaders reads the trusted SSO attribute headers. The request
// asserts an identity when the principal header is present.
func attrsFromHeaders(r *http.Request) (domain.AttributeSet, bool) {
	principal := strings.TrimSpace(r.Header.Get(HeaderEppn))
	if principal == "" {
		return domain.AttributeSet{}, false
	}
	return domain.AttributeSet{
		DisplayName:        strings.TrimSpace(r.Header.Get(HeaderDisplayName)),
		Email:              strings.TrimSpace(r.Header.Get(HeaderEmail)),
		Principal:          principal,
		DurableKey:         strings.TrimSpace(r.Header.Get(HeaderEmployeeNumber)),
		Affiliations:       splitList(r.Header.Get(HeaderUnscopedAffiliation)),
		ScopedAffiliations: splitList(r.Header.Get(HeaderScopedAffiliation)),
	}, true
}

func attrsFromClaims(claims *JWTClaims) domain.AttributeSet {
	principal := claims.StringClaim(ClaimEppn)
	if principal == "" {
		principal = claims.Subject
	}
	return domain.AttributeSet{
		DisplayName:        claims.StringClaim(ClaimDisplayName),
		Email:              claims.StringClaim(ClaimEmail),
		Principal:          principal,
		DurableKey:         claims.StringClaim(ClaimEmployeeNumber),
		Affiliations:       claims.StringsClaim(ClaimUnscopedAffiliation),
		ScopedAffiliations: claims.StringsClaim(ClaimScopedAffiliation),
	}
}

// splitList splits a semicolon-separated attribute value, dropping empties.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
