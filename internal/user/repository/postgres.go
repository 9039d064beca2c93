package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const userColumns = `id, email, first_name, last_name, phone, status, deleted, created_at, updated_at, deleted_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the live user for id, or nil if not found or deleted.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND NOT deleted`, id)
	return scanOne(row)
}

// List returns the users matching where, ordered by s, within page.
func (r *PostgresRepository) List(ctx context.Context, where query.Expr, s query.Sort, page query.Page) ([]*domain.User, error) {
	cond, args, err := whereSQL(where, nil)
	if err != nil {
		return nil, err
	}
	order, err := orderSQL(s)
	if err != nil {
		return nil, err
	}
	args = append(args, page.Limit, page.Offset)
	stmt := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, cond, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of users matching where.
func (r *PostgresRepository) Count(ctx context.Context, where query.Expr) (int64, error) {
	cond, args, err := whereSQL(where, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE `+cond, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a new enabled user. A duplicate live email returns an error wrapping domain.ErrUniqueViolation.
func (r *PostgresRepository) Create(ctx context.Context, f domain.Fields) (*domain.User, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, first_name, last_name, phone, status, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
		 RETURNING `+userColumns,
		f.Email, nullString(f.FirstName), nullString(f.LastName), nullString(f.Phone),
		int16(domain.UserStatusEnabled), now)
	u, err := scanOne(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return u, nil
}

// Update replaces email, names and phone of the live user u.ID. Returns nil if no live row exists.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET email = $2, first_name = $3, last_name = $4, phone = $5, updated_at = $6
		 WHERE id = $1 AND NOT deleted
		 RETURNING `+userColumns,
		u.ID, u.Email, nullString(u.FirstName), nullString(u.LastName), nullString(u.Phone), time.Now().UTC())
	out, err := scanOne(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return out, nil
}

// TransitionStatus is a compare-and-swap on status. Returns nil if no live row had status from.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.UserStatus) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2 AND NOT deleted
		 RETURNING `+userColumns,
		id, int16(from), int16(to), time.Now().UTC())
	return scanOne(row)
}

// MarkDeleted sets deleted and deleted_at when the live row has status from. Returns nil otherwise.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, id int64, from domain.UserStatus, at time.Time) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET deleted = TRUE, deleted_at = $3, updated_at = $3
		 WHERE id = $1 AND status = $2 AND NOT deleted
		 RETURNING `+userColumns,
		id, int16(from), at.UTC())
	return scanOne(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                  domain.User
		first, last, phone sql.NullString
		status             int16
		deletedAt          sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &first, &last, &phone, &status, &u.Deleted,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	u.FirstName = fromNullString(first)
	u.LastName = fromNullString(last)
	u.Phone = fromNullString(phone)
	u.Status = domain.UserStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
