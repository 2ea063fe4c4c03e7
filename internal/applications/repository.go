package applications

import (
	"context"
	"errors"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Query struct {
	models.Page
	Type   Kind   `form:"type"`
	Status Status `form:"status"`
	Search string `form:"search"`
}

type Repository interface {
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, id string) (*Application, error)
	Update(ctx context.Context, a *Application) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]Application, int64, error)
	// FindPending returns the pending application for email and kind, or nil.
	FindPending(ctx context.Context, email string, kind Kind) (*Application, error)
	Stats(ctx context.Context) (Stats, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, a *Application) error {
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Application, error) {
	var a Application
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("application")
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) Update(ctx context.Context, a *Application) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("application")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("application")
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]Application, int64, error) {
	filter := bson.M{}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Search != "" {
		rx := database.Contains(q.Search)
		filter["$or"] = bson.A{bson.M{"firstName": rx}, bson.M{"lastName": rx}, bson.M{"email": rx}}
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Application
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) FindPending(ctx context.Context, email string, kind Kind) (*Application, error) {
	var a Application
	err := r.col.FindOne(ctx, bson.M{"email": email, "type": kind, "status": StatusPending}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"type": "$type", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	var rows []struct {
		ID struct {
			Type   Kind   `bson:"type"`
			Status Status `bson:"status"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}
	st := newStats()
	for _, row := range rows {
		st.Total += row.Count
		st.ByType[row.ID.Type] += row.Count
		st.ByStatus[row.ID.Status] += row.Count
	}
	return st, nil
}
