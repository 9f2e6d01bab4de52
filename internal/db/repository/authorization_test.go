package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authbridge/internal/db"
	"authbridge/internal/domain"
)

func setupAuthzRepo(t *testing.T) *AuthorizationRepo {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	return NewAuthorizationRepo(writeDB, readDB)
}

func TestAuthorizationRepo_ReplaceAndList(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	user := domain.IdentitySubject("abc")
	role := domain.RoleSubject("d.edu", domain.RoleSubmitter)

	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead:  {user},
		domain.ModeWrite: {user, role},
	}))

	auths, err := repo.ListForResource(ctx, "sub:42")
	require.NoError(t, err)
	require.Len(t, auths, 2)

	byMode := map[domain.Mode][]domain.SubjectRef{}
	for _, a := range auths {
		assert.Equal(t, "sub:42", a.ResourceID)
		byMode[a.Mode] = a.Subjects
	}
	assert.Equal(t, []domain.SubjectRef{user}, byMode[domain.ModeRead])
	assert.ElementsMatch(t, []domain.SubjectRef{user, role}, byMode[domain.ModeWrite])
}

func TestAuthorizationRepo_ReplaceSupersedes(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	first := domain.IdentitySubject("first")
	second := domain.IdentitySubject("second")

	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead:  {first},
		domain.ModeWrite: {first},
	}))
	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead: {second},
	}))

	readSubjects, err := repo.Subjects(ctx, "sub:42", domain.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, []domain.SubjectRef{second}, readSubjects, "read set was replaced")

	writeSubjects, err := repo.Subjects(ctx, "sub:42", domain.ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, []domain.SubjectRef{first}, writeSubjects, "unstaged write set is untouched")
}

func TestAuthorizationRepo_ReplaceClearsWithEmptySet(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead: {domain.IdentitySubject("abc")},
	}))
	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead: {},
	}))

	subjects, err := repo.Subjects(ctx, "sub:42", domain.ModeRead)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestAuthorizationRepo_ResourcesAreIsolated(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "sub:1", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead: {domain.IdentitySubject("abc")},
	}))

	auths, err := repo.ListForResource(ctx, "sub:2")
	require.NoError(t, err)
	assert.Empty(t, auths)
}

func TestAuthorizationRepo_RejectsBadInput(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	var validation *domain.ValidationError

	err := repo.Replace(ctx, "", map[domain.Mode][]domain.SubjectRef{
		domain.ModeRead: {domain.IdentitySubject("abc")},
	})
	assert.ErrorAs(t, err, &validation)

	err = repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.Mode("execute"): {domain.IdentitySubject("abc")},
	})
	assert.ErrorAs(t, err, &validation)

	_, err = repo.Subjects(ctx, "sub:42", domain.Mode("execute"))
	assert.ErrorAs(t, err, &validation)
}

func TestAuthorizationRepo_RoleSubjectRoundTrip(t *testing.T) {
	repo := setupAuthzRepo(t)
	ctx := context.Background()

	// A domain containing the separator must survive storage unmangled.
	tricky := domain.RoleSubject("d#edu", domain.RoleAdmin)
	require.NoError(t, repo.Replace(ctx, "sub:42", map[domain.Mode][]domain.SubjectRef{
		domain.ModeWrite: {tricky},
	}))

	subjects, err := repo.Subjects(ctx, "sub:42", domain.ModeWrite)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, tricky, subjects[0])
}
