// Command maintenance runs the periodic sweeps of the club backend: overdue
// invoices, expired offers and membership expiry or renewal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/config"
	"github.com/clubhub/clubhub/backend/go-services/internal/database"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/clubhub/clubhub/backend/go-services/internal/notify"
	"github.com/clubhub/clubhub/backend/go-services/internal/storage"
	"github.com/clubhub/clubhub/backend/go-services/internal/users"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
)

type sweeper struct {
	invoices    *invoices.Service
	messages    *messages.Service
	memberships *memberships.Service
}

func (s *sweeper) run(ctx context.Context) {
	start := time.Now()
	if n, err := s.invoices.MarkOverdue(ctx); err != nil {
		logger.Errorf("mark overdue invoices: %v", err)
	} else if n > 0 {
		logger.Infof("%d invoices marked overdue", n)
	}
	if n, err := s.messages.ExpireStale(ctx); err != nil {
		logger.Errorf("expire offers: %v", err)
	} else if n > 0 {
		logger.Infof("%d offers expired", n)
	}
	if expired, renewed, err := s.memberships.ExpireDue(ctx); err != nil {
		logger.Errorf("membership expiry: %v", err)
	} else if expired+renewed > 0 {
		logger.Infof("memberships: %d expired, %d renewed", expired, renewed)
	}
	logger.Debugf("sweep finished in %s", time.Since(start))
}

func main() {
	interval := flag.Duration("interval", 15*time.Minute, "time between sweeps")
	once := flag.Bool("once", false, "run one sweep and exit")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("MONGODB_URI is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, func(attempt int, err error) {
		logger.Warnf("attempt %d/5: failed to connect to MongoDB: %v", attempt, err)
	})
	if err != nil {
		logger.Fatalf("connect MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database(cfg.MongoDB.Database)

	var sender notify.Sender = notify.NoopSender{}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	}
	mail := notify.New(sender, notify.Options{From: cfg.Email.From, AdminAddress: cfg.Email.AdminAddress, Club: cfg.Club.Name})

	invoicesSvc := invoices.NewService(
		invoices.NewMongoRepository(db.Collection(database.CollInvoices), database.NewCounter(db.Collection(database.CollCounters))),
		mail,
		invoices.Defaults{Currency: cfg.Club.Currency, TaxRate: cfg.Club.TaxRate, DueDays: cfg.Club.InvoiceDueDays},
	)
	marketSvc := marketplace.NewService(
		marketplace.NewMongoCategoryRepository(db.Collection(database.CollCategories)),
		marketplace.NewMongoRepository(db.Collection(database.CollListings)),
		cfg.Club.Currency,
	)
	s := &sweeper{
		invoices: invoicesSvc,
		messages: messages.NewService(
			messages.NewMongoRepository(db.Collection(database.CollMessages)),
			users.NewService(users.NewMongoUserRepository(db.Collection(database.CollUsers))),
			marketSvc,
			storage.NewMemoryStore(),
			nil,
			messages.Options{OfferTTL: cfg.Club.OfferTTL},
		),
		memberships: memberships.NewService(
			memberships.NewMongoTierRepository(db.Collection(database.CollTiers)),
			memberships.NewMongoRepository(db.Collection(database.CollMemberships)),
			invoicesSvc,
			mail,
			cfg.Club.Currency,
		),
	}

	s.run(ctx)
	if *once {
		return
	}
	logger.Infof("maintenance running every %s", *interval)
	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("maintenance stopped")
			return
		case <-t.C:
			s.run(ctx)
		}
	}
}
