package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authbridge/internal/cache"
	"authbridge/internal/config"
	"authbridge/internal/db"
	"authbridge/internal/db/repository"
	"authbridge/internal/middleware"
	"authbridge/internal/service/security"
)

// setupServer wires the full stack (real SQLite, real services, full router)
// with trusted-header identity assertion enabled.
func setupServer(t *testing.T) http.Handler {
	t.Helper()

	writeDB, readDB := db.OpenTestSQLite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identityRepo := repository.NewIdentityRepo(writeDB, readDB)
	authzRepo := repository.NewAuthorizationRepo(writeDB, readDB)
	auditRepo := repository.NewAuditRepo(writeDB, readDB)

	c, err := cache.New[string](128, time.Minute)
	require.NoError(t, err)

	resolver := security.NewIdentityResolver(identityRepo, c, "", logger)
	identitySvc := security.NewIdentityService(identityRepo, c, auditRepo, logger)
	grantSvc := security.NewGrantService(authzRepo, auditRepo, logger)

	h := NewHandler(resolver, identitySvc, grantSvc, logger)
	cfg := &config.Config{
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
	}
	return NewRouter(h, cfg, middleware.AttributeConfig{TrustHeaders: true, Logger: logger})
}

func facultyHeaders(r *http.Request) {
	r.Header.Set(middleware.HeaderDisplayName, "Jane Doe")
	r.Header.Set(middleware.HeaderEmail, "jdoe@d.edu")
	r.Header.Set(middleware.HeaderEppn, "JDoe42@d.edu")
	r.Header.Set(middleware.HeaderEmployeeNumber, "E123")
	r.Header.Set(middleware.HeaderUnscopedAffiliation, "FACULTY")
	r.Header.Set(middleware.HeaderScopedAffiliation, "FACULTY@d.edu")
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body any, build func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	if build != nil {
		build(r)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func TestHealthz(t *testing.T) {
	srv := setupServer(t)
	w := doRequest(t, srv, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUser_ProvisionsFaculty(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/user", nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp IdentityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "JDoe42@d.edu", resp.Username)
	assert.Equal(t, "jdoe@d.edu", resp.Email)
	assert.Equal(t, "jdoe42", resp.InstitutionalID)
	assert.Equal(t, []string{"submitter"}, resp.Roles)

	// A second request finds the same record instead of creating another.
	w2 := doRequest(t, srv, http.MethodGet, "/user", nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 IdentityResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.ID, resp2.ID)
}

func TestGetUser_RejectsNonPrivilegedUnknown(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/user", nil, func(r *http.Request) {
		r.Header.Set(middleware.HeaderEppn, "student@d.edu")
		r.Header.Set(middleware.HeaderEmployeeNumber, "S999")
		r.Header.Set(middleware.HeaderUnscopedAffiliation, "STUDENT")
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUser_NoIdentityAsserted(t *testing.T) {
	srv := setupServer(t)
	w := doRequest(t, srv, http.MethodGet, "/user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIdentity(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/user", nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var created IdentityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w2 := doRequest(t, srv, http.MethodGet, "/identities/"+created.ID, nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w2.Code)
	var fetched IdentityResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	w3 := doRequest(t, srv, http.MethodGet, "/identities/nope", nil, facultyHeaders)
	assert.Equal(t, http.StatusNotFound, w3.Code)
}

func adminHeaders(r *http.Request) {
	facultyHeaders(r)
}

func TestGrantsRoundTrip(t *testing.T) {
	srv := setupServer(t)

	// Provision an identity to grant against.
	w := doRequest(t, srv, http.MethodGet, "/user", nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var identity IdentityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identity))

	userToken := "user:" + identity.ID
	roleToken := "role:d.edu#submitter"

	// Header-asserted requesters are never admins, so PUT is forbidden.
	put := ReplaceGrantsRequest{
		Read:  &[]string{userToken},
		Write: &[]string{userToken, roleToken},
	}
	w2 := doRequest(t, srv, http.MethodPut, "/resources/sub:42/grants", put, adminHeaders)
	assert.Equal(t, http.StatusForbidden, w2.Code)

	// Reads are open to any authenticated requester.
	w3 := doRequest(t, srv, http.MethodGet, "/resources/sub:42/grants", nil, facultyHeaders)
	require.Equal(t, http.StatusOK, w3.Code)
	var listed GrantsResponse
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &listed))
	assert.Empty(t, listed.Grants)
}

// grantsAdminServer wires a router whose requesters can be made admin via a
// signed HS256 token, so the PUT path can be exercised end to end.
func grantsAdminServer(t *testing.T) (http.Handler, string) {
	t.Helper()

	writeDB, readDB := db.OpenTestSQLite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identityRepo := repository.NewIdentityRepo(writeDB, readDB)
	authzRepo := repository.NewAuthorizationRepo(writeDB, readDB)
	auditRepo := repository.NewAuditRepo(writeDB, readDB)

	c, err := cache.New[string](128, time.Minute)
	require.NoError(t, err)

	resolver := security.NewIdentityResolver(identityRepo, c, "", logger)
	identitySvc := security.NewIdentityService(identityRepo, c, auditRepo, logger)
	grantSvc := security.NewGrantService(authzRepo, auditRepo, logger)

	validator, err := middleware.NewHS256Validator("grants-test-secret")
	require.NoError(t, err)

	h := NewHandler(resolver, identitySvc, grantSvc, logger)
	cfg := &config.Config{
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
	}
	router := NewRouter(h, cfg, middleware.AttributeConfig{Validator: validator, Logger: logger})
	return router, "grants-test-secret"
}

func signAdminToken(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                          "admin@d.edu",
		middleware.ClaimEppn:           "admin@d.edu",
		middleware.ClaimEmployeeNumber: "A1",
		middleware.ClaimAdmin:          true,
		"iat":                          now.Unix(),
		"exp":                          now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestReplaceGrants_AdminToken(t *testing.T) {
	srv, secret := grantsAdminServer(t)

	token := signAdminToken(t, secret)
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }

	put := ReplaceGrantsRequest{
		Read:  &[]string{"user:abc"},
		Write: &[]string{"user:abc", "role:d.edu#submitter"},
	}
	w := doRequest(t, srv, http.MethodPut, "/resources/sub:42/grants", put, bearer)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w2 := doRequest(t, srv, http.MethodGet, "/resources/sub:42/grants", nil, bearer)
	require.Equal(t, http.StatusOK, w2.Code)
	var listed GrantsResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &listed))
	assert.Equal(t, []string{"user:abc"}, listed.Grants["read"])
	assert.Equal(t, []string{"user:abc", "role:d.edu#submitter"}, listed.Grants["write"])

	// Re-granting read leaves the unstaged write mode untouched.
	put2 := ReplaceGrantsRequest{Read: &[]string{"user:other"}}
	w3 := doRequest(t, srv, http.MethodPut, "/resources/sub:42/grants", put2, bearer)
	require.Equal(t, http.StatusNoContent, w3.Code)

	w4 := doRequest(t, srv, http.MethodGet, "/resources/sub:42/grants", nil, bearer)
	require.Equal(t, http.StatusOK, w4.Code)
	var relisted GrantsResponse
	require.NoError(t, json.Unmarshal(w4.Body.Bytes(), &relisted))
	assert.Equal(t, []string{"user:other"}, relisted.Grants["read"])
	assert.Equal(t, []string{"user:abc", "role:d.edu#submitter"}, relisted.Grants["write"])
}

func TestReplaceGrants_BadSubjectToken(t *testing.T) {
	srv, secret := grantsAdminServer(t)
	token := signAdminToken(t, secret)

	put := ReplaceGrantsRequest{Read: &[]string{"bogus-token"}}
	w := doRequest(t, srv, http.MethodPut, "/resources/sub:42/grants", put, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
