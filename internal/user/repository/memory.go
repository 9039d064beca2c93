package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

// MemoryRepository keeps users in process. Deleted users stay in the map with Deleted set.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
	now    func() time.Time
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[int64]*domain.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

// Seed stores u as-is, assigning an id when u.ID is zero. Intended for tests and fixtures.
func (r *MemoryRepository) Seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := u.Clone()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	} else if c.ID > r.nextID {
		r.nextID = c.ID
	}
	if c.Status == 0 {
		c.Status = domain.UserStatusEnabled
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
		c.UpdatedAt = c.CreatedAt
	}
	r.users[c.ID] = c
	return c.Clone()
}

// GetByID returns the live user for id, or nil if absent or deleted.
func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.live(id)
	return u.Clone(), nil
}

// List returns the users matching where, ordered by sort, within page.
func (r *MemoryRepository) List(ctx context.Context, where query.Expr, s query.Sort, page query.Page) ([]*domain.User, error) {
	r.mu.Lock()
	matched := r.matching(where)
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if s.Desc {
			return query.Less(matched[j], matched[i], s.Field)
		}
		return query.Less(matched[i], matched[j], s.Field)
	})
	if page.Offset < 0 || page.Offset >= len(matched) {
		return []*domain.User{}, nil
	}
	end := len(matched)
	if page.Limit > 0 && page.Limit < end-page.Offset {
		end = page.Offset + page.Limit
	}
	return matched[page.Offset:end], nil
}

// Count returns the number of users matching where.
func (r *MemoryRepository) Count(ctx context.Context, where query.Expr) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(where))), nil
}

// Create stores a new enabled user.
func (r *MemoryRepository) Create(ctx context.Context, f domain.Fields) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(f.Email, 0) {
		return nil, fmt.Errorf("create user: %w", domain.ErrUniqueViolation)
	}
	r.nextID++
	now := r.now()
	u := &domain.User{
		ID:        r.nextID,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Status:    domain.UserStatusEnabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	r.users[u.ID] = u.Clone()
	return u, nil
}

// Update replaces the mutable fields of the live user u.ID.
func (r *MemoryRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.live(u.ID)
	if cur == nil {
		return nil, nil
	}
	if r.emailTaken(u.Email, u.ID) {
		return nil, fmt.Errorf("update user %d: %w", u.ID, domain.ErrUniqueViolation)
	}
	next := u.Clone()
	cur.Email = next.Email
	cur.FirstName = next.FirstName
	cur.LastName = next.LastName
	cur.Phone = next.Phone
	cur.UpdatedAt = r.now()
	return cur.Clone(), nil
}

// TransitionStatus sets the status of id from from to to.
func (r *MemoryRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.UserStatus) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.live(id)
	if cur == nil || cur.Status != from {
		return nil, nil
	}
	cur.Status = to
	cur.UpdatedAt = r.now()
	return cur.Clone(), nil
}

// MarkDeleted soft-deletes id when its status is from.
func (r *MemoryRepository) MarkDeleted(ctx context.Context, id int64, from domain.UserStatus, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.live(id)
	if cur == nil || cur.Status != from {
		return nil, nil
	}
	cur.Deleted = true
	deletedAt := at
	cur.DeletedAt = &deletedAt
	cur.UpdatedAt = at
	return cur.Clone(), nil
}

// live returns the stored (not cloned) live user for id. Caller must hold mu.
func (r *MemoryRepository) live(id int64) *domain.User {
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return nil
	}
	return u
}

// matching returns clones of matching users in id order. Caller must hold mu.
func (r *MemoryRepository) matching(where query.Expr) []*domain.User {
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		u := r.users[id]
		if query.Match(where, u) {
			out = append(out, u.Clone())
		}
	}
	return out
}

// emailTaken reports whether a live user other than except holds email. Caller must hold mu.
func (r *MemoryRepository) emailTaken(email string, except int64) bool {
	for id, u := range r.users {
		if id != except && !u.Deleted && u.Email == email {
			return true
		}
	}
	return false
}
