package memberships

import (
	"context"
	"errors"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TierRepository interface {
	Create(ctx context.Context, t *Tier) error
	Get(ctx context.Context, id string) (*Tier, error)
	Update(ctx context.Context, t *Tier) error
	Delete(ctx context.Context, id string) error
	// List returns tiers by sort order, then name.
	List(ctx context.Context, includeInactive bool) ([]Tier, error)
}

type Query struct {
	models.Page
	Status Status `form:"status"`
	TierID string `form:"tierId"`
	UserID string `form:"userId"`
	Search string `form:"search"`
}

type Repository interface {
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, id string) (*Membership, error)
	Update(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]Membership, int64, error)
	// FindOpen returns the user's pending or active membership, or nil.
	FindOpen(ctx context.Context, userID string) (*Membership, error)
	CountByTier(ctx context.Context, tierID string) (int64, error)
	// DueForExpiry lists active memberships whose term ended before now.
	DueForExpiry(ctx context.Context, now time.Time) ([]Membership, error)
	// ActiveByTier counts active memberships per tier name.
	ActiveByTier(ctx context.Context) (map[string]int64, error)
}

type MongoTierRepository struct {
	col *mongo.Collection
}

func NewMongoTierRepository(col *mongo.Collection) *MongoTierRepository {
	return &MongoTierRepository{col: col}
}

func (r *MongoTierRepository) Create(ctx context.Context, t *Tier) error {
	if _, err := r.col.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("tier slug %q is taken", t.Slug)
		}
		return err
	}
	return nil
}

func (r *MongoTierRepository) Get(ctx context.Context, id string) (*Tier, error) {
	var t Tier
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("tier")
		}
		return nil, err
	}
	return &t, nil
}

func (r *MongoTierRepository) Update(ctx context.Context, t *Tier) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("tier slug %q is taken", t.Slug)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("tier")
	}
	return nil
}

func (r *MongoTierRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("tier")
	}
	return nil
}

func (r *MongoTierRepository) List(ctx context.Context, includeInactive bool) ([]Tier, error) {
	filter := bson.M{}
	if !includeInactive {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []Tier
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, m *Membership) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Membership, error) {
	var m Membership
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("membership")
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) Update(ctx context.Context, m *Membership) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("membership")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]Membership, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.TierID != "" {
		filter["tierId"] = q.TierID
	}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}
	if q.Search != "" {
		rx := database.Contains(q.Search)
		filter["$or"] = bson.A{bson.M{"memberName": rx}, bson.M{"memberEmail": rx}}
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) FindOpen(ctx context.Context, userID string) (*Membership, error) {
	var m Membership
	err := r.col.FindOne(ctx, bson.M{
		"userId": userID,
		"status": bson.M{"$in": bson.A{StatusPending, StatusActive}},
	}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) CountByTier(ctx context.Context, tierID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"tierId": tierID})
}

func (r *MongoRepository) DueForExpiry(ctx context.Context, now time.Time) ([]Membership, error) {
	cur, err := r.col.Find(ctx, bson.M{"status": StatusActive, "endDate": bson.M{"$lt": now}})
	if err != nil {
		return nil, err
	}
	var out []Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) ActiveByTier(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": StatusActive}}},
		{{Key: "$group", Value: bson.M{"_id": "$tierName", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Tier  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Tier] = row.Count
	}
	return out, nil
}
