package standings

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

type MatchQuery struct {
	models.Page
	Season   string      `form:"season"`
	Division string      `form:"division"`
	Team     string      `form:"team"`
	Status   MatchStatus `form:"status"`
	From     time.Time   `form:"from" time_format:"2006-01-02"`
	To       time.Time   `form:"to" time_format:"2006-01-02"`
}

type Repository interface {
	Create(ctx context.Context, m *Match) error
	Get(ctx context.Context, id string) (*Match, error)
	Update(ctx context.Context, m *Match) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q MatchQuery) ([]Match, int64, error)
	// Table returns every match of one season and division.
	Table(ctx context.Context, season, division string) ([]Match, error)
	// Seasons lists the distinct season/division pairs, newest season first.
	Seasons(ctx context.Context) ([]SeasonDivision, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, m *Match) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Match, error) {
	var m Match
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("match")
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) Update(ctx context.Context, m *Match) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("match")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("match")
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q MatchQuery) ([]Match, int64, error) {
	filter := bson.M{}
	if q.Season != "" {
		filter["season"] = q.Season
	}
	if q.Division != "" {
		filter["division"] = q.Division
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Team != "" {
		rx := database.Contains(q.Team)
		filter["$or"] = bson.A{bson.M{"homeTeam": rx}, bson.M{"awayTeam": rx}}
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		rng := bson.M{}
		if !q.From.IsZero() {
			rng["$gte"] = q.From
		}
		if !q.To.IsZero() {
			rng["$lt"] = q.To.AddDate(0, 0, 1)
		}
		filter["scheduledAt"] = rng
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "scheduledAt", Value: 1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Match
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) Table(ctx context.Context, season, division string) ([]Match, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"season": season, "division": division, "status": bson.M{"$ne": MatchCancelled}}, opts)
	if err != nil {
		return nil, err
	}
	var out []Match
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Seasons(ctx context.Context) ([]SeasonDivision, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": bson.M{"season": "$season", "division": "$division"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}},
		{{Key: "$sort", Value: bson.D{{Key: "season", Value: -1}, {Key: "division", Value: 1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var out []SeasonDivision
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
