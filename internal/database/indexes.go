package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexModels() map[string][]mongo.IndexModel {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}
	return map[string][]mongo.IndexModel{
		CollUsers: {
			unique(bson.D{{Key: "email", Value: 1}}),
			{Keys: bson.D{{Key: "sub", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"sub": bson.M{"$gt": ""}})},
		},
		CollSessions: {
			unique(bson.D{{Key: "refreshToken", Value: 1}}),
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		CollApplications: {
			plain(bson.D{{Key: "email", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		CollInvoices: {
			unique(bson.D{{Key: "number", Value: 1}}),
			plain(bson.D{{Key: "memberId", Value: 1}, {Key: "issueDate", Value: -1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}),
		},
		CollPayments: {
			plain(bson.D{{Key: "invoiceId", Value: 1}}),
			plain(bson.D{{Key: "memberId", Value: 1}, {Key: "paidAt", Value: -1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "paidAt", Value: -1}}),
		},
		CollTiers: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		CollMemberships: {
			plain(bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}}),
			plain(bson.D{{Key: "invoiceId", Value: 1}}),
		},
		CollCategories: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		CollListings: {
			plain(bson.D{{Key: "status", Value: 1}, {Key: "categoryId", Value: 1}, {Key: "createdAt", Value: -1}}),
			plain(bson.D{{Key: "sellerId", Value: 1}}),
		},
		CollMessages: {
			plain(bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}),
			plain(bson.D{{Key: "recipientId", Value: 1}, {Key: "readAt", Value: 1}}),
			plain(bson.D{{Key: "offer.status", Value: 1}, {Key: "offer.expiresAt", Value: 1}}),
			plain(bson.D{{Key: "listingId", Value: 1}, {Key: "offer.status", Value: 1}}),
		},
		CollMatches: {
			plain(bson.D{{Key: "season", Value: 1}, {Key: "division", Value: 1}, {Key: "scheduledAt", Value: 1}}),
		},
	}
}

// EnsureIndexes creates the indexes every repository relies on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range indexModels() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes %s: %w", coll, err)
		}
	}
	return nil
}
