// Package query builds the list/count predicate over users as a small expression tree.
// Stores render the tree into their own query language; Match evaluates it in process.
package query

import (
	"math"

	"user-directory/internal/user/domain"
)

// Field is a filterable or sortable user attribute, named as in storage.
type Field string

const (
	FieldID        Field = "id"
	FieldEmail     Field = "email"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
	FieldPhone     Field = "phone"
	FieldStatus    Field = "status"
	FieldDeleted   Field = "deleted"
	FieldCreatedAt Field = "created_at"
	FieldUpdatedAt Field = "updated_at"
)

// Expr is a node of the predicate tree: And, Or, Eq, In or Contains.
type Expr interface {
	isExpr()
}

// And matches when every operand matches. An empty And matches everything.
type And []Expr

// Or matches when at least one operand matches. An empty Or matches nothing.
type Or []Expr

// Eq is exact equality. Value is a bool for FieldDeleted and a domain.UserStatus for FieldStatus.
type Eq struct {
	Field Field
	Value any
}

// In is set membership on FieldID.
type In struct {
	Field  Field
	Values []int64
}

// Contains is a case-insensitive, unanchored substring match on a string field.
type Contains struct {
	Field Field
	Text  string
}

func (And) isExpr()      {}
func (Or) isExpr()       {}
func (Eq) isExpr()       {}
func (In) isExpr()       {}
func (Contains) isExpr() {}

// Sort is a single-key ordering with no tiebreak.
type Sort struct {
	Field Field
	Desc  bool
}

// Page is a row window.
type Page struct {
	Offset int
	Limit  int
}

// Build returns the predicate for f. Deleted users are always excluded.
// Each present filter contributes one conjunct; search is the only disjunction.
func Build(f domain.Filter) Expr {
	expr := And{Eq{Field: FieldDeleted, Value: false}}
	if len(f.IDs) > 0 {
		expr = append(expr, In{Field: FieldID, Values: f.IDs})
	}
	if f.Status != nil {
		expr = append(expr, Eq{Field: FieldStatus, Value: *f.Status})
	}
	if f.Search != nil && *f.Search != "" {
		expr = append(expr, Or{
			Contains{Field: FieldFirstName, Text: *f.Search},
			Contains{Field: FieldLastName, Text: *f.Search},
		})
	}
	for _, c := range []struct {
		field Field
		value *string
	}{
		{FieldFirstName, f.FirstName},
		{FieldLastName, f.LastName},
		{FieldEmail, f.Email},
		{FieldPhone, f.Phone},
	} {
		if c.value != nil && *c.value != "" {
			expr = append(expr, Contains{Field: c.field, Text: *c.value})
		}
	}
	return expr
}

// SortOf returns the ordering requested by q.
func SortOf(q domain.ListQuery) Sort {
	field := Field(q.SortBy)
	if field == "" {
		field = FieldCreatedAt
	}
	return Sort{Field: field, Desc: q.SortOrder != domain.SortAsc}
}

// PageOf returns the row window for q: offset (page_no-1)*page_size, limit page_size.
// An offset past the int range saturates at math.MaxInt, which is beyond any store's rows.
// Stores must not compute Offset+Limit.
func PageOf(q domain.ListQuery) Page {
	pageNo, pageSize := q.PageNo, q.PageSize
	if pageNo < 1 {
		pageNo = domain.DefaultPageNo
	}
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	if pageNo-1 > math.MaxInt/pageSize {
		return Page{Offset: math.MaxInt, Limit: pageSize}
	}
	return Page{Offset: (pageNo - 1) * pageSize, Limit: pageSize}
}
