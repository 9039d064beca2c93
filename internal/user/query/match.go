package query

import (
	"fmt"
	"strings"

	"user-directory/internal/user/domain"
)

// Match reports whether u satisfies expr.
func Match(expr Expr, u *domain.User) bool {
	switch e := expr.(type) {
	case nil:
		return true
	case And:
		for _, sub := range e {
			if !Match(sub, u) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range e {
			if Match(sub, u) {
				return true
			}
		}
		return false
	case Eq:
		switch e.Field {
		case FieldDeleted:
			want, _ := e.Value.(bool)
			return u.Deleted == want
		case FieldStatus:
			want, _ := e.Value.(domain.UserStatus)
			return u.Status == want
		case FieldID:
			want, _ := e.Value.(int64)
			return u.ID == want
		default:
			s, ok := StringValue(u, e.Field)
			return ok && s == fmt.Sprint(e.Value)
		}
	case In:
		for _, id := range e.Values {
			if u.ID == id {
				return true
			}
		}
		return false
	case Contains:
		s, ok := StringValue(u, e.Field)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(e.Text))
	default:
		return false
	}
}

// StringValue returns the value of a string field of u. ok is false when the field is unset.
func StringValue(u *domain.User, f Field) (string, bool) {
	var p *string
	switch f {
	case FieldEmail:
		return u.Email, true
	case FieldFirstName:
		p = u.FirstName
	case FieldLastName:
		p = u.LastName
	case FieldPhone:
		p = u.Phone
	default:
		return "", false
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Less orders a before b on field f ascending. Unset strings sort first.
func Less(a, b *domain.User, f Field) bool {
	switch f {
	case FieldID:
		return a.ID < b.ID
	case FieldStatus:
		return a.Status < b.Status
	case FieldCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt)
	case FieldUpdatedAt:
		return a.UpdatedAt.Before(b.UpdatedAt)
	default:
		as, aok := StringValue(a, f)
		bs, bok := StringValue(b, f)
		if aok != bok {
			return !aok
		}
		return as < bs
	}
}
