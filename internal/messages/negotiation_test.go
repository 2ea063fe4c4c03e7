package messages

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// listing creates an active listing sold by ana.
func (h *harness) listing(t *testing.T) *marketplace.Listing {
	t.Helper()
	l, err := h.market.Create(context.Background(), marketplace.Actor{ID: ana.ID, Name: ana.Name}, marketplace.ListingInput{
		CategoryID: h.cat.ID, Title: "Goalkeeper gloves", Price: amt("40"), Condition: marketplace.ConditionGood,
	})
	require.NoError(t, err)
	return l
}

func (h *harness) offer(t *testing.T, buyer Participant, l *marketplace.Listing, amount string) *Message {
	t.Helper()
	h.tick()
	m, err := h.svc.MakeOffer(context.Background(), buyer, OfferInput{ListingID: l.ID, Amount: amt(amount)})
	require.NoError(t, err)
	return m
}

func TestMakeOfferRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)

	_, err := h.svc.MakeOffer(ctx, ana, OfferInput{ListingID: l.ID, Amount: amt("30")})
	assert.True(t, errors.Is(err, apperr.ErrInvalid), "own listing")
	_, err = h.svc.MakeOffer(ctx, ben, OfferInput{ListingID: l.ID, Amount: amt("0")})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = h.svc.MakeOffer(ctx, ben, OfferInput{ListingID: "missing", Amount: amt("5")})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	m := h.offer(t, ben, l, "30")
	assert.Equal(t, KindOffer, m.Kind)
	assert.Equal(t, "ana", m.RecipientID)
	assert.Equal(t, OfferPending, m.Offer.Status)
	assert.Equal(t, "Offered 30.00 EUR", m.Body)
	assert.Equal(t, h.now.Add(time.Hour), m.Offer.ExpiresAt)
	assert.Equal(t, ConversationID("ana", "ben", l.ID), m.ConversationID)

	_, err = h.svc.MakeOffer(ctx, ben, OfferInput{ListingID: l.ID, Amount: amt("31")})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "one pending offer per buyer")
}

func TestAcceptReservesListingAndRejectsOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	fromBen := h.offer(t, ben, l, "35")
	fromCleo := h.offer(t, cleo, l, "32")
	before := testutil.ToFloat64(metrics.OfferTransitions.WithLabelValues("accepted"))

	_, err := h.svc.Accept(ctx, ben.ID, fromBen.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "buyer cannot accept their own offer")
	_, err = h.svc.Accept(ctx, cleo.ID, fromBen.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "outsiders do not see the offer")

	accepted, err := h.svc.Accept(ctx, ana.ID, fromBen.ID, RespondInput{Note: "deal"})
	require.NoError(t, err)
	assert.Equal(t, OfferAccepted, accepted.Offer.Status)
	assert.Equal(t, "deal", accepted.Offer.ResponseNote)
	assert.NotNil(t, accepted.Offer.RespondedAt)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OfferTransitions.WithLabelValues("accepted")))

	reserved, err := h.market.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusReserved, reserved.Status)
	assert.Equal(t, ben.ID, reserved.BuyerID)
	assert.Equal(t, "35.00", reserved.AgreedPrice.StringFixed(2))
	assert.Equal(t, "3.50", reserved.Commission.StringFixed(2))

	cleoOffer, err := h.svc.repo.Get(ctx, fromCleo.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, cleoOffer.Offer.Status)

	_, err = h.svc.Accept(ctx, ana.ID, fromBen.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "terminal states do not move")
	_, err = h.svc.MakeOffer(ctx, cleo, OfferInput{ListingID: l.ID, Amount: amt("50")})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "listing no longer active")
}

func TestCounterChain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	first := h.offer(t, ben, l, "25")

	h.tick()
	counter, err := h.svc.Counter(ctx, ana, first.ID, CounterInput{Amount: amt("35"), Note: "meet me at 35"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, counter.Offer.ParentID)
	assert.Equal(t, ben.ID, counter.RecipientID)
	assert.Equal(t, ben.ID, counter.Offer.BuyerID)
	assert.Equal(t, "meet me at 35", counter.Body)

	orig, err := h.svc.repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferCountered, orig.Offer.Status)

	_, err = h.svc.Counter(ctx, ben, counter.ID, CounterInput{Amount: amt("35")})
	assert.True(t, errors.Is(err, apperr.ErrInvalid), "same amount is an accept, not a counter")

	h.tick()
	back, err := h.svc.Counter(ctx, ben, counter.ID, CounterInput{Amount: amt("30")})
	require.NoError(t, err)
	assert.Equal(t, ana.ID, back.RecipientID)

	_, err = h.svc.Accept(ctx, ana.ID, back.ID, RespondInput{})
	require.NoError(t, err)
	reserved, err := h.market.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ben.ID, reserved.BuyerID)
	assert.Equal(t, "30.00", reserved.AgreedPrice.StringFixed(2))

	sells, err := h.svc.Offers(ctx, OfferQuery{UserID: ana.ID, Role: "seller"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), sells.Total)
	accepted, err := h.svc.Offers(ctx, OfferQuery{UserID: ben.ID, Role: "buyer", Status: OfferAccepted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), accepted.Total)
	_, err = h.svc.Offers(ctx, OfferQuery{UserID: ben.ID, Role: "broker"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestCancelAndReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	m := h.offer(t, ben, l, "20")

	_, err := h.svc.Cancel(ctx, ana.ID, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	cancelled, err := h.svc.Cancel(ctx, ben.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferCancelled, cancelled.Offer.Status)

	m2 := h.offer(t, ben, l, "22")
	_, err = h.svc.Reject(ctx, ben.ID, m2.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	rejected, err := h.svc.Reject(ctx, ana.ID, m2.ID, RespondInput{Note: "too low"})
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, rejected.Offer.Status)

	listing, err := h.market.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusActive, listing.Status)
}

func TestExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	lazy := h.offer(t, ben, l, "20")
	swept := h.offer(t, cleo, l, "21")

	h.now = h.now.Add(2 * time.Hour)
	_, err := h.svc.Accept(ctx, ana.ID, lazy.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	stored, err := h.svc.repo.Get(ctx, lazy.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferExpired, stored.Offer.Status, "expiry is persisted on access")

	n, err := h.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	stored, err = h.svc.repo.Get(ctx, swept.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferExpired, stored.Offer.Status)

	open, err := h.svc.OpenOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, open)
}

func TestConcurrentResponsesHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	m := h.offer(t, ben, l, "30")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = h.svc.Accept(ctx, ana.ID, m.ID, RespondInput{})
			} else {
				_, err = h.svc.Reject(ctx, ana.ID, m.ID, RespondInput{})
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.True(t, errors.Is(err, apperr.ErrConflict), "%v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAcceptOnWithdrawnListing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	m := h.offer(t, ben, l, "30")

	_, err := h.market.Withdraw(ctx, marketplace.Actor{ID: ana.ID}, l.ID)
	require.NoError(t, err)

	_, err = h.svc.Accept(ctx, ana.ID, m.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "%v", err)
	stored, err := h.svc.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, stored.Offer.Status)
	assert.Equal(t, "listing is withdrawn", stored.Offer.ResponseNote)

	listing, err := h.market.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusWithdrawn, listing.Status)
	assert.Empty(t, listing.BuyerID)
}

func TestWithdrawRejectsPendingOffers(t *testing.T) {
	h := newHarness(t)
	h.market.OnListingClosed(h.svc)
	ctx := context.Background()
	l := h.listing(t)
	fromBen := h.offer(t, ben, l, "30")
	fromCleo := h.offer(t, cleo, l, "28")

	_, err := h.market.Withdraw(ctx, marketplace.Actor{ID: ana.ID}, l.ID)
	require.NoError(t, err)

	for _, id := range []string{fromBen.ID, fromCleo.ID} {
		stored, err := h.svc.repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, OfferRejected, stored.Offer.Status)
	}
	open, err := h.svc.OpenOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, open)
}

// lostReservation reports the listing active but loses the reservation race.
type lostReservation struct {
	*marketplace.Service
}

func (lostReservation) Reserve(context.Context, string, string, decimal.Decimal) (*marketplace.Listing, error) {
	return nil, apperr.Conflict("listing is withdrawn")
}

func TestAcceptRollsBackWhenReservationFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)
	m := h.offer(t, ben, l, "30")
	h.svc.listings = lostReservation{h.market}

	_, err := h.svc.Accept(ctx, ana.ID, m.ID, RespondInput{})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "%v", err)
	stored, err := h.svc.repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, stored.Offer.Status)
}
