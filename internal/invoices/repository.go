package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrStale is returned by Update when the stored version moved on.
var ErrStale = apperr.Conflict("invoice was modified concurrently, retry")

type Query struct {
	models.Page
	Status   Status `form:"status"`
	MemberID string `form:"memberId"`
	Search   string `form:"search"`
}

type Repository interface {
	NextSequence(ctx context.Context, year int) (int64, error)
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	// Update saves inv if its Version matches the stored one and bumps it.
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]Invoice, int64, error)
	// MarkOverdue flips sent invoices with a balance past their due date.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	Summary(ctx context.Context) (map[Status]StatusSummary, error)
}

type MongoRepository struct {
	col     *mongo.Collection
	counter *database.Counter
}

func NewMongoRepository(col *mongo.Collection, counter *database.Counter) *MongoRepository {
	return &MongoRepository{col: col, counter: counter}
}

func (r *MongoRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	return r.counter.Next(ctx, fmt.Sprintf("invoice-%d", year))
}

func (r *MongoRepository) Create(ctx context.Context, inv *Invoice) error {
	if _, err := r.col.InsertOne(ctx, inv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("invoice number %s already exists", inv.Number)
		}
		return err
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("invoice")
		}
		return nil, err
	}
	return &inv, nil
}

func (r *MongoRepository) Update(ctx context.Context, inv *Invoice) error {
	prev := inv.Version
	inv.Version++
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": inv.ID, "version": prev}, inv)
	if err != nil {
		inv.Version = prev
		return err
	}
	if res.MatchedCount == 0 {
		inv.Version = prev
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": inv.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("invoice")
		}
		return ErrStale
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("invoice")
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]Invoice, int64, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.MemberID != "" {
		filter["memberId"] = q.MemberID
	}
	if q.Search != "" {
		rx := database.Contains(q.Search)
		filter["$or"] = bson.A{bson.M{"number": rx}, bson.M{"billTo.name": rx}, bson.M{"billTo.email": rx}}
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "issueDate", Value: -1}, {Key: "number", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Invoice
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"status": StatusSent, "dueDate": bson.M{"$lt": now}, "balance": bson.M{"$gt": decimal.Zero}},
		bson.M{"$set": bson.M{"status": StatusOverdue, "updatedAt": now}, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) Summary(ctx context.Context) (map[Status]StatusSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":     "$status",
			"count":   bson.M{"$sum": 1},
			"total":   bson.M{"$sum": "$total"},
			"paid":    bson.M{"$sum": "$amountPaid"},
			"balance": bson.M{"$sum": "$balance"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status        Status `bson:"_id"`
		StatusSummary `bson:",inline"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := map[Status]StatusSummary{}
	for _, row := range rows {
		out[row.Status] = row.StatusSummary
	}
	return out, nil
}
