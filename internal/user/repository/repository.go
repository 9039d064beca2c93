package repository

import (
	"context"
	"time"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

// Repository defines persistence for users.
//
// Lookups and conditional writes return (nil, nil) when no live row matches; errors are reserved for
// store failures. Writes that would duplicate a live user's email return an error wrapping
// domain.ErrUniqueViolation.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, where query.Expr, sort query.Sort, page query.Page) ([]*domain.User, error)
	Count(ctx context.Context, where query.Expr) (int64, error)
	// Create inserts a new ENABLED, non-deleted user and returns it with id and timestamps set.
	Create(ctx context.Context, f domain.Fields) (*domain.User, error)
	// Update replaces the mutable fields (email, names, phone) of the live user u.ID. Status is not written.
	Update(ctx context.Context, u *domain.User) (*domain.User, error)
	// TransitionStatus sets status to to only if the live user id currently has status from.
	TransitionStatus(ctx context.Context, id int64, from, to domain.UserStatus) (*domain.User, error)
	// MarkDeleted soft-deletes the live user id only if it currently has status from.
	MarkDeleted(ctx context.Context, id int64, from domain.UserStatus, at time.Time) (*domain.User, error)
}
