package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

const cacheKeyPrefix = "user:"

// CachedRepository caches live users by id in Redis in front of another Repository.
// Redis failures are logged and fall through to the wrapped repository.
type CachedRepository struct {
	next Repository
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

// NewCachedRepository wraps next with a Redis read-through cache. A nil rdb disables caching.
func NewCachedRepository(next Repository, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) Repository {
	if rdb == nil {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedRepository{next: next, rdb: rdb, ttl: ttl, log: log}
}

// GetByID serves from cache when possible and populates it on a miss.
func (r *CachedRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	key := cacheKey(id)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if u, decErr := decodeCachedUser(raw); decErr == nil {
			return u, nil
		}
		r.log.Warn("cache: dropping undecodable entry", zap.String("key", key))
		r.evict(ctx, id)
	case !errors.Is(err, redis.Nil):
		r.log.Warn("cache: get failed", zap.String("key", key), zap.Error(err))
	}

	u, err := r.next.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	if payload, encErr := encodeCachedUser(u); encErr == nil {
		if setErr := r.rdb.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.log.Warn("cache: set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return u, nil
}

func (r *CachedRepository) List(ctx context.Context, where query.Expr, s query.Sort, page query.Page) ([]*domain.User, error) {
	return r.next.List(ctx, where, s, page)
}

func (r *CachedRepository) Count(ctx context.Context, where query.Expr) (int64, error) {
	return r.next.Count(ctx, where)
}

func (r *CachedRepository) Create(ctx context.Context, f domain.Fields) (*domain.User, error) {
	return r.next.Create(ctx, f)
}

func (r *CachedRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	defer r.evict(ctx, u.ID)
	return r.next.Update(ctx, u)
}

func (r *CachedRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.UserStatus) (*domain.User, error) {
	defer r.evict(ctx, id)
	return r.next.TransitionStatus(ctx, id, from, to)
}

func (r *CachedRepository) MarkDeleted(ctx context.Context, id int64, from domain.UserStatus, at time.Time) (*domain.User, error) {
	defer r.evict(ctx, id)
	return r.next.MarkDeleted(ctx, id, from, at)
}

func (r *CachedRepository) evict(ctx context.Context, id int64) {
	if err := Evict(ctx, r.rdb, id); err != nil {
		r.log.Warn("cache: evict failed", zap.Int64("user_id", id), zap.Error(err))
	}
}

// Evict drops the cached copy of user id. Used by consumers of change events written by other instances.
func Evict(ctx context.Context, rdb redis.Cmdable, id int64) error {
	return rdb.Del(ctx, cacheKey(id)).Err()
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

// cachedUser is the JSON shape stored in Redis.
type cachedUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeCachedUser(u *domain.User) ([]byte, error) {
	return json.Marshal(cachedUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Status:    int(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
}

func decodeCachedUser(raw []byte) (*domain.User, error) {
	var c cachedUser
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:        c.ID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Status:    domain.UserStatus(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}
