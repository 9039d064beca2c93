package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

func strPtr(s string) *string { return &s }

func TestWhereSQL_Default(t *testing.T) {
	cond, args, err := whereSQL(query.Build(domain.Filter{}), nil)
	require.NoError(t, err)
	assert.Equal(t, "deleted = $1", cond)
	assert.Equal(t, []any{false}, args)
}

func TestWhereSQL_Combined(t *testing.T) {
	st := domain.UserStatusDisabled
	expr := query.Build(domain.Filter{
		IDs:    []int64{7, 9},
		Status: &st,
		Search: strPtr("111"),
		Email:  strPtr("x.com"),
	})
	cond, args, err := whereSQL(expr, nil)
	require.NoError(t, err)
	assert.Equal(t,
		`(deleted = $1 AND id = ANY($2) AND status = $3 AND (first_name ILIKE $4 ESCAPE '\' OR last_name ILIKE $5 ESCAPE '\') AND email ILIKE $6 ESCAPE '\')`,
		cond)
	assert.Equal(t, []any{false, []int64{7, 9}, int16(2), "%111%", "%111%", "%x.com%"}, args)
}

func TestWhereSQL_EscapesLikeWildcards(t *testing.T) {
	_, args, err := whereSQL(query.Contains{Field: query.FieldFirstName, Text: `50%_off\`}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestWhereSQL_PlaceholdersContinueAfterArgs(t *testing.T) {
	cond, args, err := whereSQL(query.Eq{Field: query.FieldStatus, Value: domain.UserStatusEnabled}, []any{"x"})
	require.NoError(t, err)
	assert.Equal(t, "status = $2", cond)
	assert.Len(t, args, 2)
}

func TestWhereSQL_EmptyNodes(t *testing.T) {
	cond, _, err := whereSQL(query.Or{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "FALSE", cond)

	cond, _, err = whereSQL(query.In{Field: query.FieldID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "FALSE", cond)
}

func TestWhereSQL_UnknownField(t *testing.T) {
	_, _, err := whereSQL(query.Contains{Field: "password; DROP TABLE users", Text: "x"}, nil)
	require.Error(t, err)
}

func TestOrderSQL(t *testing.T) {
	s, err := orderSQL(query.Sort{Field: query.FieldCreatedAt, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", s)

	s, err = orderSQL(query.Sort{Field: query.FieldEmail})
	require.NoError(t, err)
	assert.Equal(t, "email ASC", s)

	_, err = orderSQL(query.Sort{Field: "1; --"})
	require.Error(t, err)
}
