package security

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"authbridge/internal/cache"
	"authbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCache(t *testing.T) *cache.Cache[string] {
	t.Helper()
	c, err := cache.New[string](100, 10*time.Minute)
	require.NoError(t, err)
	return c
}

// fakeIdentityRepo is an in-memory domain.IdentityRepository that counts
// writes and can be forced to fail.
type fakeIdentityRepo struct {
	mu          sync.Mutex
	byID        map[string]*domain.Identity
	byLocalKey  map[string]string
	creates     int
	updates     int
	lookupErr   error // returned by FindByLocalKey when set
	createDelay time.Duration
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		byID:       map[string]*domain.Identity{},
		byLocalKey: map[string]string{},
	}
}

func (r *fakeIdentityRepo) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if r.createDelay > 0 {
		time.Sleep(r.createDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byLocalKey[identity.LocalKey]; taken {
		return nil, domain.ErrConflict("local key %q already exists", identity.LocalKey)
	}
	stored := *identity
	if stored.ID == "" {
		stored.ID = domain.NewID()
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.byID[stored.ID] = &stored
	r.byLocalKey[stored.LocalKey] = stored.ID
	r.creates++
	out := stored
	return &out, nil
}

func (r *fakeIdentityRepo) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound("identity %q not found", id)
	}
	out := *identity
	return &out, nil
}

func (r *fakeIdentityRepo) FindByLocalKey(ctx context.Context, localKey string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return "", r.lookupErr
	}
	id, ok := r.byLocalKey[localKey]
	if !ok {
		return "", domain.ErrNotFound("no identity with local key %q", localKey)
	}
	return id, nil
}

func (r *fakeIdentityRepo) Update(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[identity.ID]
	if !ok {
		return domain.ErrNotFound("identity %q not found", identity.ID)
	}
	updated := *identity
	updated.LocalKey = stored.LocalKey // immutable
	updated.UpdatedAt = time.Now()
	r.byID[identity.ID] = &updated
	r.updates++
	return nil
}

func (r *fakeIdentityRepo) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func (r *fakeIdentityRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// fakeAuthzRepo is an in-memory domain.AuthorizationRepository.
type fakeAuthzRepo struct {
	mu         sync.Mutex
	grants     map[string]map[domain.Mode][]domain.SubjectRef
	replaceErr error
	replaces   int
}

func newFakeAuthzRepo() *fakeAuthzRepo {
	return &fakeAuthzRepo{grants: map[string]map[domain.Mode][]domain.SubjectRef{}}
}

func (r *fakeAuthzRepo) Replace(ctx context.Context, resourceID string, modes map[domain.Mode][]domain.SubjectRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	if r.grants[resourceID] == nil {
		r.grants[resourceID] = map[domain.Mode][]domain.SubjectRef{}
	}
	for mode, subjects := range modes {
		r.grants[resourceID][mode] = append([]domain.SubjectRef(nil), subjects...)
	}
	r.replaces++
	return nil
}

func (r *fakeAuthzRepo) ListForResource(ctx context.Context, resourceID string) ([]domain.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Authorization
	for _, mode := range []domain.Mode{domain.ModeRead, domain.ModeWrite} {
		if subjects, ok := r.grants[resourceID][mode]; ok {
			out = append(out, domain.Authorization{
				ResourceID: resourceID,
				Mode:       mode,
				Subjects:   append([]domain.SubjectRef(nil), subjects...),
			})
		}
	}
	return out, nil
}

func (r *fakeAuthzRepo) Subjects(ctx context.Context, resourceID string, mode domain.Mode) ([]domain.SubjectRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SubjectRef(nil), r.grants[resourceID][mode]...), nil
}

// fakeAuditRepo collects audit entries.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *fakeAuditRepo) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
