package payments

import (
	"context"
	"errors"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Query struct {
	models.Page
	InvoiceID string    `form:"invoiceId"`
	MemberID  string    `form:"memberId"`
	Method    Method    `form:"method"`
	Status    Status    `form:"status"`
	From      time.Time `form:"from" time_format:"2006-01-02"`
	To        time.Time `form:"to" time_format:"2006-01-02"`
}

// errPaymentChanged means the payment left the expected status before our write.
var errPaymentChanged = apperr.Conflict("payment was changed concurrently")

// StatusChange is written by Transition.
type StatusChange struct {
	Status       Status
	RefundedAt   *time.Time
	RefundReason string
	At           time.Time
}

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// Transition moves the payment from -> c.Status, failing with a conflict
	// when the stored status differs.
	Transition(ctx context.Context, id string, from Status, c StatusChange) error
	List(ctx context.Context, q Query) ([]Payment, int64, error)
	// Revenue sums completed payments made at or after since.
	Revenue(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, p *Payment) error {
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("payment")
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) Transition(ctx context.Context, id string, from Status, c StatusChange) error {
	set := bson.M{"status": c.Status, "refundedAt": c.RefundedAt, "refundReason": c.RefundReason, "updatedAt": c.At}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("payment")
	}
	return errPaymentChanged
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]Payment, int64, error) {
	filter := bson.M{}
	if q.InvoiceID != "" {
		filter["invoiceId"] = q.InvoiceID
	}
	if q.MemberID != "" {
		filter["memberId"] = q.MemberID
	}
	if q.Method != "" {
		filter["method"] = q.Method
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		rng := bson.M{}
		if !q.From.IsZero() {
			rng["$gte"] = q.From
		}
		if !q.To.IsZero() {
			rng["$lt"] = q.To.AddDate(0, 0, 1)
		}
		filter["paidAt"] = rng
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "paidAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) Revenue(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": StatusCompleted, "paidAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, err
	}
	var rows []struct {
		Total decimal.Decimal `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Total, nil
}
