package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stub struct {
	err    error
	window time.Duration
}

func (s *stub) Stats(context.Context) (applications.Stats, error) {
	return applications.Stats{Total: 4}, nil
}

func (s *stub) Summary(context.Context) (invoices.Summary, error) {
	return invoices.Summary{Outstanding: decimal.RequireFromString("120.50")}, nil
}

func (s *stub) Revenue(_ context.Context, window time.Duration) (decimal.Decimal, error) {
	s.window = window
	return decimal.RequireFromString("980.00"), nil
}

func (s *stub) ActiveByTier(context.Context) (map[string]int64, error) {
	return nil, nil
}

func (s *stub) OpenOffers(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func (s *stub) CountActive(ctx context.Context) (int64, error) {
	if s.err != nil {
		// the failing sibling cancels the shared context
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 7, nil
}

func TestOverview(t *testing.T) {
	st := &stub{}
	svc := NewService(st, st, st, st, st, st)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }

	o, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), o.Applications.Total)
	assert.Equal(t, "120.5", o.Invoices.Outstanding.String())
	assert.Equal(t, "980", o.Revenue30d.String())
	assert.Equal(t, RevenueWindow, st.window)
	assert.NotNil(t, o.ActiveMemberships)
	assert.Equal(t, int64(3), o.OpenOffers)
	assert.Equal(t, int64(7), o.ActiveListings)
	assert.Equal(t, 2026, o.GeneratedAt.Year())
}

func TestOverviewFailsFast(t *testing.T) {
	boom := errors.New("boom")
	st := &stub{err: boom}
	svc := NewService(st, st, st, st, st, st)

	_, err := svc.Overview(context.Background())
	assert.ErrorIs(t, err, boom)
}
