package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authbridge/internal/db"
	"authbridge/internal/domain"
)

func TestAuditRepo_InsertAndList(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewAuditRepo(writeDB, readDB)
	ctx := context.Background()

	entry := &domain.AuditEntry{
		Actor:  "jdoe@d.edu",
		Action: "CREATE_IDENTITY",
		Status: domain.AuditAllowed,
		Detail: "provisioned abc",
	}
	require.NoError(t, repo.Insert(ctx, entry))
	assert.NotZero(t, entry.ID)

	require.NoError(t, repo.Insert(ctx, &domain.AuditEntry{
		Actor:  "student@d.edu",
		Action: "RECONCILE_IDENTITY",
		Status: domain.AuditRejected,
	}))

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "RECONCILE_IDENTITY", entries[0].Action, "newest first")
	assert.Equal(t, "CREATE_IDENTITY", entries[1].Action)
}

func TestAuditRepo_PruneBefore(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewAuditRepo(writeDB, readDB)
	ctx := context.Background()

	old := &domain.AuditEntry{
		Actor:     "jdoe@d.edu",
		Action:    "CREATE_IDENTITY",
		Status:    domain.AuditAllowed,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.Insert(ctx, old))
	require.NoError(t, repo.Insert(ctx, &domain.AuditEntry{
		Actor:  "jdoe@d.edu",
		Action: "UPDATE_IDENTITY",
		Status: domain.AuditAllowed,
	}))

	pruned, err := repo.PruneBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "UPDATE_IDENTITY", entries[0].Action)
}
