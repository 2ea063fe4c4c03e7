package marketplace

import (
	"context"
	"errors"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	Get(ctx context.Context, id string) (*Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, includeInactive bool) ([]Category, error)
}

type Query struct {
	models.Page
	CategoryID string           `form:"categoryId"`
	Status     Status           `form:"status"`
	SellerID   string           `form:"sellerId"`
	Search     string           `form:"search"`
	MinPrice   *decimal.Decimal `form:"-"`
	MaxPrice   *decimal.Decimal `form:"-"`
}

type Repository interface {
	Create(ctx context.Context, l *Listing) error
	Get(ctx context.Context, id string) (*Listing, error)
	// UpdateIf saves l only while the stored status still equals expected.
	UpdateIf(ctx context.Context, l *Listing, expected Status) error
	List(ctx context.Context, q Query) ([]Listing, int64, error)
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
}

// errStatusChanged is returned by UpdateIf when another writer got there first.
var errStatusChanged = apperr.Conflict("listing changed status, reload and retry")

type MongoCategoryRepository struct {
	col *mongo.Collection
}

func NewMongoCategoryRepository(col *mongo.Collection) *MongoCategoryRepository {
	return &MongoCategoryRepository{col: col}
}

func (r *MongoCategoryRepository) Create(ctx context.Context, c *Category) error {
	if _, err := r.col.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("category slug %q is taken", c.Slug)
		}
		return err
	}
	return nil
}

func (r *MongoCategoryRepository) Get(ctx context.Context, id string) (*Category, error) {
	var c Category
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("category")
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoCategoryRepository) Update(ctx context.Context, c *Category) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("category slug %q is taken", c.Slug)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *MongoCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *MongoCategoryRepository) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	filter := bson.M{}
	if !includeInactive {
		filter["active"] = true
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Category
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

func (r *MongoRepository) Create(ctx context.Context, l *Listing) error {
	_, err := r.col.InsertOne(ctx, l)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Listing, error) {
	var l Listing
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("listing")
		}
		return nil, err
	}
	return &l, nil
}

func (r *MongoRepository) UpdateIf(ctx context.Context, l *Listing, expected Status) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": l.ID, "status": expected}, l)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, l.ID); err != nil {
			return err
		}
		return errStatusChanged
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]Listing, int64, error) {
	filter := bson.M{}
	if q.CategoryID != "" {
		filter["categoryId"] = q.CategoryID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.SellerID != "" {
		filter["sellerId"] = q.SellerID
	}
	if q.Search != "" {
		rx := database.Contains(q.Search)
		filter["$or"] = bson.A{bson.M{"title": rx}, bson.M{"description": rx}}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		rng := bson.M{}
		if q.MinPrice != nil {
			rng["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			rng["$lte"] = *q.MaxPrice
		}
		filter["price"] = rng
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Listing
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"categoryId": categoryID})
}

func (r *MongoRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"status": status})
}
