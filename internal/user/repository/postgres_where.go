package repository

import (
	"fmt"
	"strings"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

// pgColumns maps query fields to users table columns. Only these may be rendered into SQL text.
var pgColumns = map[query.Field]string{
	query.FieldID:        "id",
	query.FieldEmail:     "email",
	query.FieldFirstName: "first_name",
	query.FieldLastName:  "last_name",
	query.FieldPhone:     "phone",
	query.FieldStatus:    "status",
	query.FieldDeleted:   "deleted",
	query.FieldCreatedAt: "created_at",
	query.FieldUpdatedAt: "updated_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereSQL renders expr as a SQL condition with $n placeholders numbered after the existing args.
func whereSQL(expr query.Expr, args []any) (string, []any, error) {
	switch e := expr.(type) {
	case nil:
		return "TRUE", args, nil
	case query.And:
		return joinSQL(e, " AND ", "TRUE", args)
	case query.Or:
		return joinSQL(e, " OR ", "FALSE", args)
	case query.Eq:
		col, err := pgColumn(e.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, sqlValue(e.Value))
		return fmt.Sprintf("%s = $%d", col, len(args)), args, nil
	case query.In:
		col, err := pgColumn(e.Field)
		if err != nil {
			return "", nil, err
		}
		if len(e.Values) == 0 {
			return "FALSE", args, nil
		}
		args = append(args, e.Values)
		return fmt.Sprintf("%s = ANY($%d)", col, len(args)), args, nil
	case query.Contains:
		col, err := pgColumn(e.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, "%"+likeEscaper.Replace(e.Text)+"%")
		return fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, col, len(args)), args, nil
	default:
		return "", nil, fmt.Errorf("postgres: unsupported expression %T", expr)
	}
}

func joinSQL(exprs []query.Expr, sep, empty string, args []any) (string, []any, error) {
	if len(exprs) == 0 {
		return empty, args, nil
	}
	parts := make([]string, 0, len(exprs))
	for _, sub := range exprs {
		s, next, err := whereSQL(sub, args)
		if err != nil {
			return "", nil, err
		}
		args = next
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func orderSQL(s query.Sort) (string, error) {
	col, err := pgColumn(s.Field)
	if err != nil {
		return "", err
	}
	if s.Desc {
		return col + " DESC", nil
	}
	return col + " ASC", nil
}

func pgColumn(f query.Field) (string, error) {
	col, ok := pgColumns[f]
	if !ok {
		return "", fmt.Errorf("postgres: unknown field %q", f)
	}
	return col, nil
}

func sqlValue(v any) any {
	if s, ok := v.(domain.UserStatus); ok {
		return int16(s)
	}
	return v
}
