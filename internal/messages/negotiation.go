package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/clubhub/clubhub/backend/go-services/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OfferInput struct {
	ListingID string          `json:"listingId" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Note      string          `json:"note" binding:"max=1000"`
}

type RespondInput struct {
	Note string `json:"note" binding:"max=1000"`
}

type CounterInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Note   string          `json:"note" binding:"max=1000"`
}

func offerBody(note string, amount decimal.Decimal, currency string) string {
	if note = validation.PlainText(note); note != "" {
		return note
	}
	return fmt.Sprintf("Offered %s %s", amount.StringFixed(2), currency)
}

// MakeOffer opens a negotiation from a buyer on an active listing.
func (s *Service) MakeOffer(ctx context.Context, buyer Participant, in OfferInput) (*Message, error) {
	amount := in.Amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	l, err := s.listings.Get(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if l.Status != marketplace.StatusActive {
		return nil, apperr.Conflict("listing is %s", l.Status)
	}
	if l.SellerID == buyer.ID {
		return nil, apperr.Invalid("you cannot make an offer on your own listing")
	}
	pending, err := s.repo.PendingOffers(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if p.Offer.BuyerID == buyer.ID {
			return nil, apperr.Conflict("you already have a pending offer on this listing")
		}
	}
	return s.newOffer(ctx, buyer, l.SellerID, l, amount, in.Note, "", buyer.ID)
}

func (s *Service) newOffer(ctx context.Context, from Participant, to string, l *marketplace.Listing, amount decimal.Decimal, note, parentID, buyerID string) (*Message, error) {
	now := s.now().UTC()
	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: ConversationID(from.ID, to, l.ID),
		SenderID:       from.ID,
		SenderName:     from.Name,
		RecipientID:    to,
		Body:           offerBody(note, amount, l.Currency),
		Kind:           KindOffer,
		ListingID:      l.ID,
		Offer: &Offer{
			Amount:    amount,
			Currency:  l.Currency,
			Status:    OfferPending,
			BuyerID:   buyerID,
			SellerID:  l.SellerID,
			ExpiresAt: now.Add(s.opts.OfferTTL),
			ParentID:  parentID,
		},
		Attachments: []Attachment{},
		DeletedFor:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	metrics.OfferTransitions.WithLabelValues(string(OfferPending)).Inc()
	metrics.MessagesSent.Inc()
	s.publish(EventMessageNew, m, m.RecipientID, m.SenderID)
	return m, nil
}

// loadOffer fetches a pending offer the actor takes part in. An offer past
// its expiry is stored as expired and reported as a conflict.
func (s *Service) loadOffer(ctx context.Context, userID, id string) (*Message, error) {
	m, err := s.repo.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("offer")
	}
	if err != nil {
		return nil, err
	}
	if m.Kind != KindOffer || m.Offer == nil || !m.Involves(userID) {
		return nil, apperr.NotFound("offer")
	}
	if m.Offer.Status != OfferPending {
		return nil, apperr.Conflict("offer is already %s", m.Offer.Status)
	}
	now := s.now().UTC()
	if now.After(m.Offer.ExpiresAt) {
		if err := s.transition(ctx, m, OfferExpired, ""); err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("offer has expired")
	}
	return m, nil
}

// transition applies a compare-and-set from pending and updates m in place.
func (s *Service) transition(ctx context.Context, m *Message, to OfferStatus, note string) error {
	return s.transitionFrom(ctx, m, OfferPending, to, note)
}

func (s *Service) transitionFrom(ctx context.Context, m *Message, from, to OfferStatus, note string) error {
	now := s.now().UTC()
	u := OfferUpdate{Status: to, Note: validation.PlainText(note), At: now}
	if to != OfferExpired {
		u.RespondedAt = &now
	}
	if err := s.repo.TransitionOffer(ctx, m.ID, from, u); err != nil {
		return err
	}
	m.Offer.Status = to
	m.Offer.RespondedAt = u.RespondedAt
	if u.Note != "" {
		m.Offer.ResponseNote = u.Note
	}
	m.UpdatedAt = now
	metrics.OfferTransitions.WithLabelValues(string(to)).Inc()
	s.publish(EventOfferUpdated, m, m.SenderID, m.RecipientID)
	return nil
}

// activeListing loads the offer's listing. When it has left the market the
// pending offer is rejected and a conflict returned.
func (s *Service) activeListing(ctx context.Context, m *Message) (*marketplace.Listing, error) {
	l, err := s.listings.Get(ctx, m.ListingID)
	if err != nil {
		return nil, err
	}
	if l.Status == marketplace.StatusActive {
		return l, nil
	}
	if err := s.transition(ctx, m, OfferRejected, fmt.Sprintf("listing is %s", l.Status)); err != nil {
		return nil, err
	}
	return nil, apperr.Conflict("listing is %s", l.Status)
}

func requireRecipient(m *Message, userID string) error {
	if m.RecipientID != userID {
		return apperr.Forbidden("only the recipient can answer this offer")
	}
	return nil
}

// Accept closes the negotiation, reserves the listing for the buyer and
// rejects the remaining pending offers on it. If the listing cannot be
// reserved the offer ends rejected and Accept reports a conflict.
func (s *Service) Accept(ctx context.Context, userID, id string, in RespondInput) (*Message, error) {
	m, err := s.loadOffer(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := requireRecipient(m, userID); err != nil {
		return nil, err
	}
	if _, err := s.activeListing(ctx, m); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, m, OfferAccepted, in.Note); err != nil {
		return nil, err
	}

	if _, err := s.listings.Reserve(ctx, m.ListingID, m.Offer.BuyerID, m.Offer.Amount); err != nil {
		logger.Warnf("offer %s accepted but listing %s not reserved: %v", m.ID, m.ListingID, err)
		if rerr := s.transitionFrom(ctx, m, OfferAccepted, OfferRejected, "listing is no longer available"); rerr != nil {
			logger.Errorf("offer %s left accepted on unreserved listing %s: %v", m.ID, m.ListingID, rerr)
		}
		return nil, apperr.Conflict("listing %s could not be reserved", m.ListingID)
	}
	logger.Infof("offer %s accepted on listing %s (%s %s)", m.ID, m.ListingID, m.Offer.Amount.StringFixed(2), m.Offer.Currency)
	s.rejectPending(ctx, m.ListingID, "listing reserved for another buyer")
	return m, nil
}

func (s *Service) rejectPending(ctx context.Context, listingID, note string) {
	others, err := s.repo.PendingOffers(ctx, listingID)
	if err != nil {
		logger.Errorf("listing %s: pending offers not loaded: %v", listingID, err)
		return
	}
	for i := range others {
		o := &others[i]
		if err := s.transition(ctx, o, OfferRejected, note); err != nil {
			logger.Warnf("offer %s not rejected: %v", o.ID, err)
		}
	}
}

// ListingClosed rejects the offers still pending on a listing that left the market.
func (s *Service) ListingClosed(ctx context.Context, l *marketplace.Listing) {
	s.rejectPending(ctx, l.ID, fmt.Sprintf("listing is %s", l.Status))
}

func (s *Service) Reject(ctx context.Context, userID, id string, in RespondInput) (*Message, error) {
	m, err := s.loadOffer(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := requireRecipient(m, userID); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, m, OfferRejected, in.Note); err != nil {
		return nil, err
	}
	return m, nil
}

// Cancel withdraws an offer; only its sender may do so.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Message, error) {
	m, err := s.loadOffer(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, apperr.Forbidden("only the sender can cancel this offer")
	}
	if err := s.transition(ctx, m, OfferCancelled, ""); err != nil {
		return nil, err
	}
	return m, nil
}

// Counter marks the offer countered and sends a new pending offer back to
// the other party. It returns the new offer.
func (s *Service) Counter(ctx context.Context, responder Participant, id string, in CounterInput) (*Message, error) {
	amount := in.Amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	m, err := s.loadOffer(ctx, responder.ID, id)
	if err != nil {
		return nil, err
	}
	if err := requireRecipient(m, responder.ID); err != nil {
		return nil, err
	}
	if amount.Equal(m.Offer.Amount) {
		return nil, apperr.Invalid("counter with a different amount or accept the offer")
	}
	l, err := s.activeListing(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, m, OfferCountered, in.Note); err != nil {
		return nil, err
	}
	return s.newOffer(ctx, responder, m.SenderID, l, amount, in.Note, m.ID, m.Offer.BuyerID)
}

func (s *Service) Offers(ctx context.Context, q OfferQuery) (models.List[Message], error) {
	q.Role = strings.ToLower(q.Role)
	if q.Role != "" && q.Role != "buyer" && q.Role != "seller" {
		return models.List[Message]{}, apperr.Invalid("role must be buyer or seller")
	}
	if q.Status != "" && !q.Status.Valid() {
		return models.List[Message]{}, apperr.Invalid("unknown status %q", q.Status)
	}
	items, total, err := s.repo.Offers(ctx, q)
	if err != nil {
		return models.List[Message]{}, err
	}
	return models.NewList(items, total, q.Page), nil
}

// ExpireStale stores expired on every pending offer past its deadline.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireOffers(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.OfferTransitions.WithLabelValues(string(OfferExpired)).Add(float64(n))
	}
	return n, nil
}

func (s *Service) OpenOffers(ctx context.Context) (int64, error) {
	return s.repo.CountOffers(ctx, OfferPending)
}
