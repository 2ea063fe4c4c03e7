package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	CollUsers        = "users"
	CollSessions     = "sessions"
	CollApplications = "applications"
	CollInvoices     = "invoices"
	CollPayments     = "payments"
	CollTiers        = "membership_tiers"
	CollMemberships  = "memberships"
	CollCategories   = "marketplace_categories"
	CollListings     = "marketplace_listings"
	CollMessages     = "messages"
	CollMatches      = "matches"
	CollCounters     = "counters"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
// The client encodes decimal.Decimal values as Decimal128.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri).SetRegistry(NewRegistry())
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectWithRetry retries ConnectMongo with exponential backoff.
func ConnectWithRetry(ctx context.Context, uri string, timeout time.Duration, attempts int, onRetry func(attempt int, err error)) (*mongo.Client, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for i := 1; i <= attempts; i++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if onRetry != nil {
			onRetry(i, err)
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}
