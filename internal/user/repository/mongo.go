package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/query"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"
	userSequence       = "users"
)

// mongoUser is the stored document shape of a user.
type mongoUser struct {
	ID        int64      `bson:"_id"`
	Email     string     `bson:"email"`
	FirstName *string    `bson:"first_name"`
	LastName  *string    `bson:"last_name"`
	Phone     *string    `bson:"phone"`
	Status    int32      `bson:"status"`
	Deleted   bool       `bson:"deleted"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at"`
}

type MongoRepository struct {
	users    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoRepository returns a user repository backed by the given database.
// Call EnsureIndexes once at startup to create the live-email unique index.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		users:    db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
	}
}

// EnsureIndexes creates the partial unique index on email for live users and a created_at index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("users_email_live_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"deleted": false}),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("users_created_at_idx"),
		},
	})
	return err
}

// GetByID returns the live user for id, or nil if not found or deleted.
func (r *MongoRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var doc mongoUser
	err := r.users.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// List returns the users matching where, ordered by s, within page.
func (r *MongoRepository) List(ctx context.Context, where query.Expr, s query.Sort, page query.Page) ([]*domain.User, error) {
	filter, err := mongoFilter(where)
	if err != nil {
		return nil, err
	}
	sortDoc, err := mongoSort(s)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(sortDoc).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cur, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*domain.User{}
	for cur.Next(ctx) {
		var doc mongoUser
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

// Count returns the number of users matching where.
func (r *MongoRepository) Count(ctx context.Context, where query.Expr) (int64, error) {
	filter, err := mongoFilter(where)
	if err != nil {
		return 0, err
	}
	return r.users.CountDocuments(ctx, filter)
}

// Create inserts a new enabled user with the next id from the counters collection.
func (r *MongoRepository) Create(ctx context.Context, f domain.Fields) (*domain.User, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := mongoUser{
		ID:        id,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Status:    int32(domain.UserStatusEnabled),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return nil, mapMongoWriteErr(err)
	}
	return doc.toDomain(), nil
}

// Update replaces email, names and phone of the live user u.ID. Returns nil if no live document exists.
func (r *MongoRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	set := bson.M{
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"phone":      u.Phone,
		"updated_at": time.Now().UTC(),
	}
	out, err := r.findAndSet(ctx, bson.M{"_id": u.ID, "deleted": false}, set)
	if err != nil {
		return nil, mapMongoWriteErr(err)
	}
	return out, nil
}

// TransitionStatus is a compare-and-swap on status. Returns nil if no live document had status from.
func (r *MongoRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.UserStatus) (*domain.User, error) {
	return r.findAndSet(ctx,
		bson.M{"_id": id, "deleted": false, "status": int32(from)},
		bson.M{"status": int32(to), "updated_at": time.Now().UTC()})
}

// MarkDeleted soft-deletes the live document id when its status is from. Returns nil otherwise.
func (r *MongoRepository) MarkDeleted(ctx context.Context, id int64, from domain.UserStatus, at time.Time) (*domain.User, error) {
	at = at.UTC()
	return r.findAndSet(ctx,
		bson.M{"_id": id, "deleted": false, "status": int32(from)},
		bson.M{"deleted": true, "deleted_at": at, "updated_at": at})
}

func (r *MongoRepository) findAndSet(ctx context.Context, filter, set bson.M) (*domain.User, error) {
	var doc mongoUser
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.users.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *MongoRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": userSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next user id: %w", err)
	}
	return counter.Seq, nil
}

func mapMongoWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", domain.ErrUniqueViolation, err)
	}
	return err
}

func (d *mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:        d.ID,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		Status:    domain.UserStatus(d.Status),
		Deleted:   d.Deleted,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		DeletedAt: d.DeletedAt,
	}
}
