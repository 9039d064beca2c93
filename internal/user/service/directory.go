// Package service implements the user lifecycle and listing rules over a user repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/events"
	"user-directory/internal/user/query"
	"user-directory/internal/user/repository"
)

const tracerName = "user-directory/internal/user/service"

// Directory is the exclusive mutator of user state. Status transitions are compare-and-swap
// writes; when nothing matches, one re-read decides between ErrNotFound and a PreconditionError.
type Directory struct {
	repo      repository.Repository
	publisher events.Publisher
	log       *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewDirectory returns a Directory over repo. publisher and log may be nil.
func NewDirectory(repo repository.Repository, publisher events.Publisher, log *zap.Logger) *Directory {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		repo:      repo,
		publisher: publisher,
		log:       log,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetListCount returns the number of live users matching f.
func (d *Directory) GetListCount(ctx context.Context, f domain.Filter) (n int64, err error) {
	ctx, span := d.tracer.Start(ctx, "Directory.GetListCount")
	defer func() { endSpan(span, err) }()

	return d.repo.Count(ctx, query.Build(f))
}

// GetList returns one page of live users matching q, ordered by q.SortBy.
func (d *Directory) GetList(ctx context.Context, q domain.ListQuery) (users []*domain.User, err error) {
	ctx, span := d.tracer.Start(ctx, "Directory.GetList",
		trace.WithAttributes(
			attribute.Int("page.no", q.PageNo),
			attribute.Int("page.size", q.PageSize),
			attribute.String("sort.by", q.SortBy),
		))
	defer func() { endSpan(span, err) }()

	users, err = d.repo.List(ctx, query.Build(q.Filter), query.SortOf(q), query.PageOf(q))
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// GetOne returns the live user id. Returns domain.ErrNotFound if absent or deleted.
func (d *Directory) GetOne(ctx context.Context, id int64) (u *domain.User, err error) {
	ctx, span := d.startUser(ctx, "Directory.GetOne", id)
	defer func() { endSpan(span, err) }()

	u, err = d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// AddOne creates an enabled user. Returns a ConflictError if a live user already has f.Email.
func (d *Directory) AddOne(ctx context.Context, f domain.Fields) (u *domain.User, err error) {
	ctx, span := d.tracer.Start(ctx, "Directory.AddOne")
	defer func() { endSpan(span, err) }()

	u, err = d.repo.Create(ctx, f)
	if err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, &domain.ConflictError{Email: f.Email}
		}
		return nil, err
	}
	d.log.Info("user created", zap.Int64("user_id", u.ID))
	d.notify(events.TypeCreated, u)
	return u, nil
}

// UpdateOne applies c to the live user id. A Transition enables or disables the user and ignores
// any field edits; a FieldEdit overwrites only the supplied fields.
func (d *Directory) UpdateOne(ctx context.Context, id int64, c domain.Change) (*domain.User, error) {
	switch c := c.(type) {
	case domain.Transition:
		switch c.Target {
		case domain.UserStatusEnabled:
			return d.EnableOne(ctx, id)
		case domain.UserStatusDisabled:
			return d.DisableOne(ctx, id)
		default:
			return nil, domain.NewValidationError("enable", "unsupported target status %d", int(c.Target))
		}
	case domain.FieldEdit:
		return d.edit(ctx, id, c.Patch)
	default:
		return nil, fmt.Errorf("update user %d: unsupported change %T", id, c)
	}
}

// EnableOne moves a disabled user to enabled.
func (d *Directory) EnableOne(ctx context.Context, id int64) (u *domain.User, err error) {
	ctx, span := d.startUser(ctx, "Directory.EnableOne", id)
	defer func() { endSpan(span, err) }()

	u, err = d.transition(ctx, id, domain.UserStatusDisabled, domain.UserStatusEnabled, domain.ErrOnlyDisabledCanBeEnabled)
	if err != nil {
		return nil, err
	}
	d.notify(events.TypeEnabled, u)
	return u, nil
}

// DisableOne moves an enabled user to disabled.
func (d *Directory) DisableOne(ctx context.Context, id int64) (u *domain.User, err error) {
	ctx, span := d.startUser(ctx, "Directory.DisableOne", id)
	defer func() { endSpan(span, err) }()

	u, err = d.transition(ctx, id, domain.UserStatusEnabled, domain.UserStatusDisabled, domain.ErrOnlyEnabledCanBeDisabled)
	if err != nil {
		return nil, err
	}
	d.notify(events.TypeDisabled, u)
	return u, nil
}

// DeleteOne soft-deletes a disabled user. Deleted users are invisible to every other operation.
func (d *Directory) DeleteOne(ctx context.Context, id int64) (u *domain.User, err error) {
	ctx, span := d.startUser(ctx, "Directory.DeleteOne", id)
	defer func() { endSpan(span, err) }()

	u, err = d.repo.MarkDeleted(ctx, id, domain.UserStatusDisabled, d.now())
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, d.explainMiss(ctx, id, domain.ErrEnabledCannotBeDeleted)
	}
	d.log.Info("user deleted", zap.Int64("user_id", id))
	d.notify(events.TypeDeleted, u)
	return u, nil
}

func (d *Directory) edit(ctx context.Context, id int64, p domain.Patch) (u *domain.User, err error) {
	ctx, span := d.startUser(ctx, "Directory.UpdateOne", id)
	defer func() { endSpan(span, err) }()

	cur, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.ErrNotFound
	}
	if p.Empty() {
		return cur, nil
	}
	p.Apply(cur)
	u, err = d.repo.Update(ctx, cur)
	if err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, &domain.ConflictError{Email: cur.Email}
		}
		return nil, err
	}
	if u == nil {
		// deleted between the read and the write
		return nil, domain.ErrNotFound
	}
	d.notify(events.TypeUpdated, u)
	return u, nil
}

func (d *Directory) transition(ctx context.Context, id int64, from, to domain.UserStatus, precondition *domain.PreconditionError) (*domain.User, error) {
	u, err := d.repo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, d.explainMiss(ctx, id, precondition)
	}
	d.log.Info("user status changed",
		zap.Int64("user_id", id), zap.String("from", from.String()), zap.String("to", to.String()))
	return u, nil
}

// explainMiss reports why a conditional write matched nothing.
func (d *Directory) explainMiss(ctx context.Context, id int64, precondition *domain.PreconditionError) error {
	cur, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return domain.ErrNotFound
	}
	return precondition
}

func (d *Directory) notify(t events.Type, u *domain.User) {
	events.PublishAsync(d.publisher, d.log, events.NewEvent(t, u))
}

func (d *Directory) startUser(ctx context.Context, name string, id int64) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("user.id", id)))
}

// endSpan records err on span unless it is an expected domain outcome, then ends it.
func endSpan(span trace.Span, err error) {
	if err != nil && !isDomainError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		domain.IsValidation(err) || domain.IsPrecondition(err) || domain.IsConflict(err)
}
