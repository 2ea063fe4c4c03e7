package messages

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

// errOfferChanged means the offer left the expected status before our write.
var errOfferChanged = apperr.Conflict("offer was answered concurrently")

type ThreadQuery struct {
	Before time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int       `form:"limit"`
}

type OfferQuery struct {
	models.Page
	UserID    string      `form:"-"`
	Role      string      `form:"role"` // buyer | seller
	Status    OfferStatus `form:"status"`
	ListingID string      `form:"listingId"`
}

// OfferUpdate is written by TransitionOffer.
type OfferUpdate struct {
	Status      OfferStatus
	RespondedAt *time.Time
	Note        string
	At          time.Time
}

type Repository interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	// Thread returns up to q.Limit messages older than q.Before, newest first.
	Thread(ctx context.Context, conversationID, userID string, q ThreadQuery) ([]Message, error)
	Conversations(ctx context.Context, userID string) ([]Conversation, error)
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	// SoftDelete hides the message from userID and returns the updated message.
	SoftDelete(ctx context.Context, id, userID string) (*Message, error)
	Delete(ctx context.Context, id string) error
	// TransitionOffer moves the offer from -> u.Status, failing if the stored status differs.
	TransitionOffer(ctx context.Context, id string, from OfferStatus, u OfferUpdate) error
	PendingOffers(ctx context.Context, listingID string) ([]Message, error)
	Offers(ctx context.Context, q OfferQuery) ([]Message, int64, error)
	ExpireOffers(ctx context.Context, now time.Time) (int64, error)
	CountOffers(ctx context.Context, status OfferStatus) (int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, m *Message) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("message")
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) Thread(ctx context.Context, conversationID, userID string, q ThreadQuery) ([]Message, error) {
	filter := bson.M{"conversationId": conversationID, "deletedFor": bson.M{"$ne": userID}}
	if !q.Before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": q.Before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(q.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	unread := bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$recipientId", userID}},
			bson.M{"$eq": bson.A{"$readAt", nil}},
		}},
		1, 0,
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or":        bson.A{bson.M{"senderId": userID}, bson.M{"recipientId": userID}},
			"deletedFor": bson.M{"$ne": userID},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$conversationId",
			"last":   bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": unread},
			"count":  bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.createdAt", Value: -1}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var out []Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"conversationId": conversationID, "recipientId": userID, "readAt": nil},
		bson.M{"$set": bson.M{"readAt": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"recipientId": userID, "readAt": nil, "deletedFor": bson.M{"$ne": userID}})
}

func (r *MongoRepository) SoftDelete(ctx context.Context, id, userID string) (*Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m Message
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"deletedFor": userID}}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("message")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) TransitionOffer(ctx context.Context, id string, from OfferStatus, u OfferUpdate) error {
	set := bson.M{"offer.status": u.Status, "updatedAt": u.At}
	if u.RespondedAt != nil {
		set["offer.respondedAt"] = *u.RespondedAt
	}
	if u.Note != "" {
		set["offer.responseNote"] = u.Note
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "offer.status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errOfferChanged
	}
	return nil
}

func (r *MongoRepository) PendingOffers(ctx context.Context, listingID string) ([]Message, error) {
	cur, err := r.col.Find(ctx, bson.M{"kind": KindOffer, "listingId": listingID, "offer.status": OfferPending})
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Offers(ctx context.Context, q OfferQuery) ([]Message, int64, error) {
	filter := bson.M{"kind": KindOffer}
	switch q.Role {
	case "buyer":
		filter["offer.buyerId"] = q.UserID
	case "seller":
		filter["offer.sellerId"] = q.UserID
	default:
		filter["$or"] = bson.A{bson.M{"offer.buyerId": q.UserID}, bson.M{"offer.sellerId": q.UserID}}
	}
	if q.Status != "" {
		filter["offer.status"] = q.Status
	}
	if q.ListingID != "" {
		filter["listingId"] = q.ListingID
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.col.Find(ctx, filter, database.PageOptions(q.Page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) ExpireOffers(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"offer.status": OfferPending, "offer.expiresAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"offer.status": OfferExpired, "updatedAt": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) CountOffers(ctx context.Context, status OfferStatus) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"kind": KindOffer, "offer.status": status})
}
