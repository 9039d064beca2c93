// Package validation normalizes and constrains inbound user parameters before they reach the directory service.
// It performs no I/O; every failure is a *domain.ValidationError naming the offending field.
package validation

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"user-directory/internal/user/domain"
)

// Field names accepted on the wire.
const (
	FieldPageNo    = "page_no"
	FieldPageSize  = "page_size"
	FieldSortBy    = "sort_by"
	FieldSortOrder = "sort_order"
	FieldStatus    = "status"
	FieldSearch    = "search"
	FieldIDs       = "ids"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldEnable    = "enable"
	FieldID        = "id"
)

const (
	nameRule   = "min=3,max=255"
	emailRule  = "max=255,email"
	phoneRule  = "min=3,max=32,phone"
	searchRule = "min=1,max=255"
)

var phonePattern = regexp.MustCompile(`^[a-zA-Z0-9 #*()\-]+$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// payloadFields is the closed set of body fields for create and update.
var payloadFields = map[string]bool{
	FieldFirstName: true,
	FieldLastName:  true,
	FieldEmail:     true,
	FieldPhone:     true,
}

// ListQuery validates list/count query parameters and applies defaults.
// Unknown keys are ignored; any key given more than once is rejected.
func ListQuery(raw url.Values) (domain.ListQuery, error) {
	q := domain.ListQuery{
		PageNo:    domain.DefaultPageNo,
		PageSize:  domain.DefaultPageSize,
		SortBy:    domain.DefaultSortBy,
		SortOrder: domain.DefaultSortOrder,
	}
	for _, key := range sortedKeys(raw) {
		if len(raw[key]) > 1 {
			return q, domain.NewValidationError(key, "must not be repeated")
		}
	}

	if s, ok := single(raw, FieldPageNo); ok {
		n, err := positiveInt(FieldPageNo, s)
		if err != nil {
			return q, err
		}
		q.PageNo = int(n)
	}
	if s, ok := single(raw, FieldPageSize); ok {
		n, err := positiveInt(FieldPageSize, s)
		if err != nil {
			return q, err
		}
		q.PageSize = int(n)
	}
	if s, ok := single(raw, FieldSortBy); ok {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return q, domain.NewValidationError(FieldSortBy, "must not be empty")
		}
		if !domain.SortableFields[s] {
			return q, domain.NewValidationError(FieldSortBy, "must be one of %s", strings.Join(sortableList(), ", "))
		}
		q.SortBy = s
	}
	if s, ok := single(raw, FieldSortOrder); ok {
		switch order := domain.SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
		case domain.SortAsc, domain.SortDesc:
			q.SortOrder = order
		default:
			return q, domain.NewValidationError(FieldSortOrder, "must be one of asc, desc")
		}
	}
	if s, ok := single(raw, FieldStatus); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || !domain.UserStatus(n).Valid() {
			return q, domain.NewValidationError(FieldStatus, "must be one of 1, 2")
		}
		st := domain.UserStatus(n)
		q.Status = &st
	}
	if s, ok := single(raw, FieldSearch); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			if err := check(FieldSearch, s, searchRule); err != nil {
				return q, err
			}
			q.Search = &s
		}
	}
	if s, ok := single(raw, FieldIDs); ok && strings.TrimSpace(s) != "" {
		ids, err := idList(s)
		if err != nil {
			return q, err
		}
		q.IDs = ids
	}

	var err error
	if q.FirstName, err = queryName(raw, FieldFirstName); err != nil {
		return q, err
	}
	if q.LastName, err = queryName(raw, FieldLastName); err != nil {
		return q, err
	}
	if s, ok := single(raw, FieldEmail); ok {
		if err := check(FieldEmail, s, emailRule); err != nil {
			return q, err
		}
		q.Email = &s
	}
	if s, ok := single(raw, FieldPhone); ok {
		if err := check(FieldPhone, s, phoneRule); err != nil {
			return q, err
		}
		q.Phone = &s
	}
	return q, nil
}

// Identifier validates a user id path parameter.
func Identifier(raw string) (int64, error) {
	return positiveInt(FieldID, raw)
}

// CreatePayload validates a create body. Email is required; unknown fields are rejected.
func CreatePayload(raw map[string]any) (domain.Fields, error) {
	var f domain.Fields
	if err := rejectUnknown(raw); err != nil {
		return f, err
	}
	if _, ok := raw[FieldEmail]; !ok {
		return f, domain.NewValidationError(FieldEmail, "is required")
	}
	p, err := payload(raw)
	if err != nil {
		return f, err
	}
	return domain.Fields{
		Email:     *p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
	}, nil
}

// UpdatePayload validates an update body together with the optional enable directive taken from the query.
// Body fields are validated even when the directive is present; the directive then wins and the
// returned Change is a Transition. Otherwise it is a FieldEdit of the supplied fields.
func UpdatePayload(raw map[string]any, enableFlag *string) (domain.Change, error) {
	if err := rejectUnknown(raw); err != nil {
		return nil, err
	}
	p, err := payload(raw)
	if err != nil {
		return nil, err
	}
	if enableFlag != nil {
		s := strings.TrimSpace(*enableFlag)
		switch {
		case strings.EqualFold(s, "true"):
			return domain.Transition{Target: domain.UserStatusEnabled}, nil
		case strings.EqualFold(s, "false"):
			return domain.Transition{Target: domain.UserStatusDisabled}, nil
		default:
			return nil, domain.NewValidationError(FieldEnable, "must be a boolean")
		}
	}
	return domain.FieldEdit{Patch: p}, nil
}

// SingleValue returns the value of key in q, nil when absent, or a ValidationError when repeated.
func SingleValue(q url.Values, key string) (*string, error) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return nil, nil
	}
	if len(vals) > 1 {
		return nil, domain.NewValidationError(key, "must not be repeated")
	}
	v := vals[0]
	return &v, nil
}

func payload(raw map[string]any) (domain.Patch, error) {
	var p domain.Patch
	var err error
	if p.FirstName, err = bodyString(raw, FieldFirstName, true, nameRule); err != nil {
		return p, err
	}
	if p.LastName, err = bodyString(raw, FieldLastName, true, nameRule); err != nil {
		return p, err
	}
	if p.Email, err = bodyString(raw, FieldEmail, false, emailRule); err != nil {
		return p, err
	}
	if p.Phone, err = bodyString(raw, FieldPhone, false, phoneRule); err != nil {
		return p, err
	}
	return p, nil
}

func bodyString(raw map[string]any, field string, trim bool, rule string) (*string, error) {
	v, ok := raw[field]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, domain.NewValidationError(field, "must be a string")
	}
	if trim {
		s = strings.TrimSpace(s)
	}
	if err := check(field, s, rule); err != nil {
		return nil, err
	}
	return &s, nil
}

func queryName(raw url.Values, field string) (*string, error) {
	s, ok := single(raw, field)
	if !ok {
		return nil, nil
	}
	s = strings.TrimSpace(s)
	if err := check(field, s, nameRule); err != nil {
		return nil, err
	}
	return &s, nil
}

func rejectUnknown(raw map[string]any) error {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !payloadFields[k] {
			return domain.NewValidationError(k, "is not allowed")
		}
	}
	return nil
}

func idList(s string) ([]int64, error) {
	parts := strings.Split(s, ";")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := positiveInt(FieldIDs, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func positiveInt(field, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError(field, "must be a positive integer")
	}
	return n, nil
}

// check runs a validator rule against a single value and converts the failure into a ValidationError.
func check(field, value, rule string) error {
	err := validate.Var(value, rule)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError(field, "is invalid")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "min":
		return domain.NewValidationError(field, "length must be at least %s characters long", fe.Param())
	case "max":
		return domain.NewValidationError(field, "length must be less than or equal to %s characters long", fe.Param())
	case "email":
		return domain.NewValidationError(field, "must be a valid email")
	case "phone":
		return domain.NewValidationError(field, "may contain only letters, digits, spaces and # * ( ) -")
	default:
		return domain.NewValidationError(field, "failed %s rule", fe.Tag())
	}
}

func single(raw url.Values, key string) (string, bool) {
	vals, ok := raw[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func sortedKeys(raw url.Values) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortableList() []string {
	out := make([]string, 0, len(domain.SortableFields))
	for k := range domain.SortableFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
