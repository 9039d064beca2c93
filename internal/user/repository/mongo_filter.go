package repository

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

var mongoFields = map[query.Field]string{
	query.FieldID:        "_id",
	query.FieldEmail:     "email",
	query.FieldFirstName: "first_name",
	query.FieldLastName:  "last_name",
	query.FieldPhone:     "phone",
	query.FieldStatus:    "status",
	query.FieldDeleted:   "deleted",
	query.FieldCreatedAt: "created_at",
	query.FieldUpdatedAt: "updated_at",
}

// matchNothing is a filter no document satisfies.
var matchNothing = bson.M{"_id": bson.M{"$in": bson.A{}}}

// mongoFilter renders expr as a query document.
func mongoFilter(expr query.Expr) (bson.M, error) {
	switch e := expr.(type) {
	case nil:
		return bson.M{}, nil
	case query.And:
		if len(e) == 0 {
			return bson.M{}, nil
		}
		parts, err := mongoFilters(e)
		if err != nil {
			return nil, err
		}
		if len(parts) == 1 {
			return parts[0].(bson.M), nil
		}
		return bson.M{"$and": parts}, nil
	case query.Or:
		if len(e) == 0 {
			return matchNothing, nil
		}
		parts, err := mongoFilters(e)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": parts}, nil
	case query.Eq:
		name, err := mongoField(e.Field)
		if err != nil {
			return nil, err
		}
		return bson.M{name: mongoValue(e.Value)}, nil
	case query.In:
		name, err := mongoField(e.Field)
		if err != nil {
			return nil, err
		}
		values := make(bson.A, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, v)
		}
		return bson.M{name: bson.M{"$in": values}}, nil
	case query.Contains:
		name, err := mongoField(e.Field)
		if err != nil {
			return nil, err
		}
		return bson.M{name: primitive.Regex{Pattern: regexp.QuoteMeta(e.Text), Options: "i"}}, nil
	default:
		return nil, fmt.Errorf("mongo: unsupported expression %T", expr)
	}
}

func mongoFilters(exprs []query.Expr) (bson.A, error) {
	out := make(bson.A, 0, len(exprs))
	for _, sub := range exprs {
		f, err := mongoFilter(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func mongoSort(s query.Sort) (bson.D, error) {
	name, err := mongoField(s.Field)
	if err != nil {
		return nil, err
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	return bson.D{{Key: name, Value: dir}}, nil
}

func mongoField(f query.Field) (string, error) {
	name, ok := mongoFields[f]
	if !ok {
		return "", fmt.Errorf("mongo: unknown field %q", f)
	}
	return name, nil
}

func mongoValue(v any) any {
	if s, ok := v.(domain.UserStatus); ok {
		return int32(s)
	}
	return v
}
