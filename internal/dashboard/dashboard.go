package dashboard

import (
	"context"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const RevenueWindow = 30 * 24 * time.Hour

type Applications interface {
	Stats(ctx context.Context) (applications.Stats, error)
}

type Invoices interface {
	Summary(ctx context.Context) (invoices.Summary, error)
}

type Payments interface {
	Revenue(ctx context.Context, window time.Duration) (decimal.Decimal, error)
}

type Memberships interface {
	ActiveByTier(ctx context.Context) (map[string]int64, error)
}

type Offers interface {
	OpenOffers(ctx context.Context) (int64, error)
}

type Listings interface {
	CountActive(ctx context.Context) (int64, error)
}

type Overview struct {
	Applications      applications.Stats `json:"applications"`
	Invoices          invoices.Summary   `json:"invoices"`
	Revenue30d        decimal.Decimal    `json:"revenue30d"`
	ActiveMemberships map[string]int64   `json:"activeMemberships"`
	OpenOffers        int64              `json:"openOffers"`
	ActiveListings    int64              `json:"activeListings"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

type Service struct {
	apps     Applications
	invoices Invoices
	payments Payments
	members  Memberships
	offers   Offers
	listings Listings
	now      func() time.Time
}

func NewService(apps Applications, inv Invoices, pay Payments, members Memberships, offers Offers, listings Listings) *Service {
	return &Service{apps: apps, invoices: inv, payments: pay, members: members, offers: offers, listings: listings, now: time.Now}
}

// Overview gathers every section concurrently; the first failure cancels the rest.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	out := &Overview{GeneratedAt: s.now().UTC()}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Applications, err = s.apps.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Invoices, err = s.invoices.Summary(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue30d, err = s.payments.Revenue(ctx, RevenueWindow)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveMemberships, err = s.members.ActiveByTier(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.OpenOffers, err = s.offers.OpenOffers(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveListings, err = s.listings.CountActive(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.ActiveMemberships == nil {
		out.ActiveMemberships = map[string]int64{}
	}
	return out, nil
}
