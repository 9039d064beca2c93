package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/events"
	"user-directory/internal/user/query"
	"user-directory/internal/user/repository"
	"user-directory/internal/user/validation"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []events.Type
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.Type)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) seen() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Type(nil), p.types...)
}

// failingRepo fails every call with err.
type failingRepo struct {
	err error
}

func (r failingRepo) GetByID(context.Context, int64) (*domain.User, error) { return nil, r.err }
func (r failingRepo) List(context.Context, query.Expr, query.Sort, query.Page) ([]*domain.User, error) {
	return nil, r.err
}
func (r failingRepo) Count(context.Context, query.Expr) (int64, error) { return 0, r.err }
func (r failingRepo) Create(context.Context, domain.Fields) (*domain.User, error) {
	return nil, r.err
}
func (r failingRepo) Update(context.Context, *domain.User) (*domain.User, error) { return nil, r.err }
func (r failingRepo) TransitionStatus(context.Context, int64, domain.UserStatus, domain.UserStatus) (*domain.User, error) {
	return nil, r.err
}
func (r failingRepo) MarkDeleted(context.Context, int64, domain.UserStatus, time.Time) (*domain.User, error) {
	return nil, r.err
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.UserStatus) *domain.UserStatus { return &s }

func newDirectory(t *testing.T) (*Directory, *repository.MemoryRepository, *recordingPublisher) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	pub := &recordingPublisher{}
	return NewDirectory(repo, pub, nil), repo, pub
}

func listAll(t *testing.T, d *Directory, f domain.Filter) []*domain.User {
	t.Helper()
	users, err := d.GetList(context.Background(), domain.ListQuery{
		Filter:    f,
		PageNo:    1,
		PageSize:  100,
		SortBy:    "id",
		SortOrder: domain.SortAsc,
	})
	require.NoError(t, err)
	return users
}

func TestDirectory_Scenario(t *testing.T) {
	d, repo, _ := newDirectory(t)
	ctx := context.Background()
	a := repo.Seed(&domain.User{Email: "a@x.com", Status: domain.UserStatusEnabled})
	b := repo.Seed(&domain.User{Email: "b@x.com", Status: domain.UserStatusDisabled})
	c := repo.Seed(&domain.User{Email: "c@x.com", Status: domain.UserStatusDisabled, Deleted: true})

	enabled, err := d.EnableOne(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusEnabled, enabled.Status)
	assert.Equal(t, 1, int(enabled.Status))

	_, err = d.DisableOne(ctx, b.ID)
	require.NoError(t, err)
	_, err = d.DisableOne(ctx, b.ID)
	assert.Equal(t, domain.ErrOnlyEnabledCanBeDisabled, err)

	_, err = d.EnableOne(ctx, b.ID)
	require.NoError(t, err)

	_, err = d.DeleteOne(ctx, a.ID)
	var pe *domain.PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Enabled user can't be deleted", pe.Message)

	_, err = d.GetOne(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, listAll(t, d, domain.Filter{Status: statusPtr(domain.UserStatusDisabled)}))
}

func TestDirectory_TransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.UserStatus
		op      func(*Directory, context.Context, int64) (*domain.User, error)
		wantErr error
	}{
		{"enable disabled", domain.UserStatusDisabled, (*Directory).EnableOne, nil},
		{"enable enabled", domain.UserStatusEnabled, (*Directory).EnableOne, domain.ErrOnlyDisabledCanBeEnabled},
		{"disable enabled", domain.UserStatusEnabled, (*Directory).DisableOne, nil},
		{"disable disabled", domain.UserStatusDisabled, (*Directory).DisableOne, domain.ErrOnlyEnabledCanBeDisabled},
		{"delete disabled", domain.UserStatusDisabled, (*Directory).DeleteOne, nil},
		{"delete enabled", domain.UserStatusEnabled, (*Directory).DeleteOne, domain.ErrEnabledCannotBeDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, repo, _ := newDirectory(t)
			u := repo.Seed(&domain.User{Email: "u@x.com", Status: tt.from})

			_, err := tt.op(d, context.Background(), u.ID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				got, getErr := repo.GetByID(context.Background(), u.ID)
				require.NoError(t, getErr)
				assert.Equal(t, tt.from, got.Status, "failed transition must not change state")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDirectory_TransitionsOnMissingOrDeletedUser(t *testing.T) {
	d, repo, _ := newDirectory(t)
	ctx := context.Background()
	gone := repo.Seed(&domain.User{Email: "gone@x.com", Status: domain.UserStatusDisabled, Deleted: true})

	for _, id := range []int64{gone.ID, 999} {
		_, err := d.EnableOne(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = d.DisableOne(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = d.DeleteOne(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = d.UpdateOne(ctx, id, domain.FieldEdit{Patch: domain.Patch{FirstName: strPtr("X")}})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestDirectory_GetAfterDelete(t *testing.T) {
	d, repo, pub := newDirectory(t)
	ctx := context.Background()
	u := repo.Seed(&domain.User{Email: "u@x.com", Status: domain.UserStatusDisabled})

	deleted, err := d.DeleteOne(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	require.NotNil(t, deleted.DeletedAt)

	_, err = d.GetOne(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = d.DeleteOne(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := d.GetListCount(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Eventually(t, func() bool {
		seen := pub.seen()
		return len(seen) == 1 && seen[0] == events.TypeDeleted
	}, time.Second, 10*time.Millisecond)
}

func TestDirectory_AddOneEmailUniqueness(t *testing.T) {
	d, repo, _ := newDirectory(t)
	ctx := context.Background()
	repo.Seed(&domain.User{Email: "old@x.com", Status: domain.UserStatusDisabled, Deleted: true})

	created, err := d.AddOne(ctx, domain.Fields{Email: "a@x.com", FirstName: strPtr("Ann")})
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusEnabled, created.Status)
	assert.False(t, created.Deleted)

	_, err = d.AddOne(ctx, domain.Fields{Email: "a@x.com"})
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "User with email a@x.com already exists", ce.Error())

	_, err = d.AddOne(ctx, domain.Fields{Email: "A@x.com"})
	assert.NoError(t, err, "uniqueness is case-sensitive")

	_, err = d.AddOne(ctx, domain.Fields{Email: "old@x.com"})
	assert.NoError(t, err, "a deleted user's email may be reused")
}

func TestDirectory_UpdateOneFieldEdit(t *testing.T) {
	d, repo, pub := newDirectory(t)
	ctx := context.Background()
	u := repo.Seed(&domain.User{
		Email:     "u@x.com",
		FirstName: strPtr("Old"),
		LastName:  strPtr("Last"),
		Phone:     strPtr("123"),
		Status:    domain.UserStatusDisabled,
	})

	_, err := d.UpdateOne(ctx, u.ID, domain.FieldEdit{Patch: domain.Patch{FirstName: strPtr("X")}})
	require.NoError(t, err)

	got, err := d.GetOne(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", *got.FirstName)
	assert.Equal(t, "Last", *got.LastName)
	assert.Equal(t, "123", *got.Phone)
	assert.Equal(t, "u@x.com", got.Email)
	assert.Equal(t, domain.UserStatusDisabled, got.Status, "field edits never change status")

	assert.Eventually(t, func() bool {
		seen := pub.seen()
		return len(seen) == 1 && seen[0] == events.TypeUpdated
	}, time.Second, 10*time.Millisecond)
}

func TestDirectory_UpdateOneEmptyPatchIsNoop(t *testing.T) {
	d, repo, _ := newDirectory(t)
	u := repo.Seed(&domain.User{Email: "u@x.com"})

	got, err := d.UpdateOne(context.Background(), u.ID, domain.FieldEdit{})
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.UpdatedAt, got.UpdatedAt)
}

func TestDirectory_UpdateOneEmailConflict(t *testing.T) {
	d, repo, _ := newDirectory(t)
	ctx := context.Background()
	repo.Seed(&domain.User{Email: "taken@x.com"})
	u := repo.Seed(&domain.User{Email: "u@x.com"})

	_, err := d.UpdateOne(ctx, u.ID, domain.FieldEdit{Patch: domain.Patch{Email: strPtr("taken@x.com")}})
	assert.True(t, domain.IsConflict(err), "err = %v", err)

	_, err = d.UpdateOne(ctx, u.ID, domain.FieldEdit{Patch: domain.Patch{Email: strPtr("u@x.com")}})
	assert.NoError(t, err, "keeping one's own email is not a conflict")
}

func TestDirectory_UpdateOneTransitionWins(t *testing.T) {
	d, repo, _ := newDirectory(t)
	ctx := context.Background()
	u := repo.Seed(&domain.User{Email: "u@x.com", FirstName: strPtr("Old"), Status: domain.UserStatusEnabled})

	got, err := d.UpdateOne(ctx, u.ID, domain.Transition{Target: domain.UserStatusDisabled})
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusDisabled, got.Status)
	assert.Equal(t, "Old", *got.FirstName)

	_, err = d.UpdateOne(ctx, u.ID, domain.Transition{Target: domain.UserStatusDisabled})
	assert.Equal(t, domain.ErrOnlyEnabledCanBeDisabled, err)

	_, err = d.UpdateOne(ctx, u.ID, domain.Transition{Target: domain.UserStatus(7)})
	assert.True(t, domain.IsValidation(err))
}

func TestDirectory_SearchMatchesNamesRegardlessOfStatus(t *testing.T) {
	d, repo, _ := newDirectory(t)
	first := repo.Seed(&domain.User{Email: "1@x.com", FirstName: strPtr("a111b"), Status: domain.UserStatusEnabled})
	last := repo.Seed(&domain.User{Email: "2@x.com", LastName: strPtr("111"), Status: domain.UserStatusDisabled})
	repo.Seed(&domain.User{Email: "3@x.com", FirstName: strPtr("111"), Status: domain.UserStatusDisabled, Deleted: true})
	repo.Seed(&domain.User{Email: "111@x.com", FirstName: strPtr("none"), Phone: strPtr("111")})

	users := listAll(t, d, domain.Filter{Search: strPtr("111")})
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, last.ID, users[1].ID)

	n, err := d.GetListCount(context.Background(), domain.Filter{Search: strPtr("111")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDirectory_GetListPaging(t *testing.T) {
	d, repo, _ := newDirectory(t)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"} {
		repo.Seed(&domain.User{Email: email})
	}
	q := domain.ListQuery{PageNo: 2, PageSize: 2, SortBy: "email", SortOrder: domain.SortDesc}

	users, err := d.GetList(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "c@x.com", users[0].Email)
	assert.Equal(t, "b@x.com", users[1].Email)

	q.PageNo = 4
	users, err = d.GetList(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestDirectory_GetListHugePageIsEmpty(t *testing.T) {
	d, repo, _ := newDirectory(t)
	repo.Seed(&domain.User{Email: "a@x.com"})
	repo.Seed(&domain.User{Email: "b@x.com"})

	q, err := validation.ListQuery(url.Values{
		"page_no":   {"92233720368547759"},
		"page_size": {"1000"},
	})
	require.NoError(t, err)

	users, err := d.GetList(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestDirectory_PropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection refused")
	d := NewDirectory(failingRepo{err: storeErr}, nil, nil)
	ctx := context.Background()

	_, err := d.GetListCount(ctx, domain.Filter{})
	assert.ErrorIs(t, err, storeErr)
	_, err = d.GetList(ctx, domain.ListQuery{PageNo: 1, PageSize: 10, SortBy: "id"})
	assert.ErrorIs(t, err, storeErr)
	_, err = d.GetOne(ctx, 1)
	assert.ErrorIs(t, err, storeErr)
	_, err = d.AddOne(ctx, domain.Fields{Email: "a@x.com"})
	assert.ErrorIs(t, err, storeErr)
	_, err = d.EnableOne(ctx, 1)
	assert.ErrorIs(t, err, storeErr)
	_, err = d.DeleteOne(ctx, 1)
	assert.ErrorIs(t, err, storeErr)
	_, err = d.UpdateOne(ctx, 1, domain.FieldEdit{Patch: domain.Patch{FirstName: strPtr("X")}})
	assert.ErrorIs(t, err, storeErr)
}
